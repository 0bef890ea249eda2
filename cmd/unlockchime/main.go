// Command unlockchime plays a user-chosen sound when the desktop session is
// unlocked.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/micro-nova/unlockchime/internal/api"
	"github.com/micro-nova/unlockchime/internal/audio"
	"github.com/micro-nova/unlockchime/internal/auth"
	"github.com/micro-nova/unlockchime/internal/config"
	"github.com/micro-nova/unlockchime/internal/controller"
	"github.com/micro-nova/unlockchime/internal/events"
	"github.com/micro-nova/unlockchime/internal/gates"
	"github.com/micro-nova/unlockchime/internal/identity"
	"github.com/micro-nova/unlockchime/internal/logging"
	"github.com/micro-nova/unlockchime/internal/models"
	"github.com/micro-nova/unlockchime/internal/notify"
	"github.com/micro-nova/unlockchime/internal/picker"
	"github.com/micro-nova/unlockchime/internal/playback"
	"github.com/micro-nova/unlockchime/internal/service"
	"github.com/micro-nova/unlockchime/internal/tray"
	"github.com/micro-nova/unlockchime/internal/unlock"
	"github.com/micro-nova/unlockchime/internal/usage"
	"github.com/micro-nova/unlockchime/internal/zeroconf"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"
)

func main() {
	var (
		cfgDir  = flag.String("config-dir", "", "config directory (default: $XDG_CONFIG_HOME/unlockchime)")
		addr    = flag.String("addr", "", "settings page listen address (overrides config)")
		debug   = flag.Bool("debug", false, "enable debug logging")
		withUI  = flag.Bool("tray", false, "show a system tray menu")
		backend = flag.String("store", "", "preference store backend: bolt or json (overrides config)")
	)
	flag.Parse()

	paths := config.DefaultPaths(*cfgDir)
	if err := paths.Ensure(); err != nil {
		log.Fatal().Err(err).Msg("cannot create directories")
	}

	opts, cfgPath, err := config.LoadOptions(paths.ConfigDir)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfgPath).Msg("cannot load config")
	}
	if *addr != "" {
		opts.Server.Listen = *addr
	}
	if *backend != "" {
		opts.Store.Backend = *backend
	}

	if err := logging.Init(paths.StateDir, config.LogFile, *debug || opts.DebugLogging, logging.Console()); err != nil {
		log.Fatal().Err(err).Msg("cannot initialise logging")
	}
	log.Info().Str("config", cfgPath).Str("store", opts.Store.Backend).Msg("unlockchime starting")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := config.OpenStore(opts.Store.Backend, paths.ConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot open preference store")
	}
	defer store.Close()

	bus := events.NewBus()
	osFs := afero.NewOsFs()

	// Foreground tracking for the desktop check.
	tracker := usage.NewTracker(clockwork.NewRealClock())
	access := usage.NewAccess(osFs, paths.ConfigDir)
	go func() {
		fg := &usage.X11Foreground{Tracker: tracker}
		if err := fg.Run(ctx); err != nil {
			log.Warn().Err(err).Msg("foreground tracking unavailable, desktop check will fail")
		}
	}()

	pa := audio.Pulse{AppName: config.AppName}
	desktop := gates.NewDesktop(access, tracker)
	gateSet := gates.Set{
		Headphone:  gates.Headphone{Primary: pa, Legacy: audio.BlueZ{}},
		OtherAudio: gates.OtherAudio{Probes: []gates.PlaybackProbe{pa, audio.MPRIS{}}},
		Desktop:    desktop,
	}

	engine := playback.NewEngine(playback.NewResolver(), playback.MalgoOutput{}, opts.Playback.SampleRate)
	engine.OnFinish = func(ref string, err error) {
		if err != nil {
			log.Debug().Err(err).Str("ref", ref).Msg("playback ended early")
		}
	}

	notifier := notify.New(config.AppName)
	finder := usage.NewLauncherFinder(opts.Desktop.Launchers)

	// The service reports state changes through the controller, which is
	// created after it.
	var ctrl *controller.Controller
	svc, err := service.New(ctx, service.Deps{
		Store:     store,
		Source:    unlock.NewMulti(clockwork.NewRealClock(), &unlock.Logind{}, unlock.ScreenSaver{}),
		Gates:     gateSet,
		Player:    engine,
		Notifier:  notifier,
		Launchers: finder.Find,
		Desktop:   desktop,
		Intent:    service.NewIntent(osFs, paths.StateDir),
		OnState: func(models.ServiceState) {
			if ctrl != nil {
				ctrl.PublishStatus(ctx)
			}
		},
		OnAttempt: func(a service.Attempt) {
			log.Debug().
				Str("source", a.Event.Source).
				Bool("played", a.Played).
				Str("failed_gate", a.Decision.FailedGate).
				AnErr("err", a.Err).
				Msg("unlock handled")
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create service")
	}

	pick := picker.New()
	ctrl = controller.New(controller.Deps{
		Store:       store,
		Bus:         bus,
		Service:     svc,
		Picker:      pick,
		Notifier:    notifier,
		Access:      access,
		DisplayName: picker.DisplayName,
	})

	if err := svc.Resume(ctx); err != nil {
		log.Warn().Err(err).Msg("could not resume service")
	}

	authSvc, err := auth.NewService(paths.ConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("auth service initialisation failed")
	}
	defer authSvc.Close()

	streamsDone := make(chan struct{})
	router := api.NewRouter(ctrl, bus, api.Options{
		Auth:          authSvc,
		Info:          identity.Info(paths.ConfigDir),
		MutationRate:  rate.Limit(5),
		MutationBurst: 10,
		Done:          streamsDone,
	})
	srv := &http.Server{
		Addr:         opts.Server.Listen,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE
		IdleTimeout:  120 * time.Second,
	}
	srv.RegisterOnShutdown(func() { close(streamsDone) })

	go func() {
		log.Info().Str("addr", opts.Server.Listen).Msg("settings page listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	if opts.Server.Advertise {
		port := listenPort(opts.Server.Listen)
		zc := zeroconf.New(identity.GetHostname()+"-unlockchime", port, identity.GetVersionFromDir(paths.ConfigDir))
		go func() {
			if err := zc.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("zeroconf failed")
			}
		}()
	}

	if *withUI {
		t := &tray.Tray{Ctrl: ctrl, Bus: bus, SettingsURL: settingsURL(opts.Server.Listen)}
		// blocks until Quit or ctx ends
		t.Run(ctx, cancel)
	}

	<-ctx.Done()
	log.Info().Msg("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Warn().Err(err).Msg("server shutdown error")
	}
	// wait for the status notification to close; the run intent is kept
	svc.Shutdown(shutCtx)
	if err := store.Flush(); err != nil {
		log.Warn().Err(err).Msg("failed to flush preferences")
	}
	log.Info().Msg("shutdown complete")
}

func listenPort(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return 0
	}
	return port
}

func settingsURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr + "/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}
