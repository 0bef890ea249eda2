// Package service is the unlock listener: while running it turns every
// unlock into a gated playback attempt.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/micro-nova/unlockchime/internal/gates"
	"github.com/micro-nova/unlockchime/internal/models"
	"github.com/micro-nova/unlockchime/internal/unlock"
	"github.com/micro-nova/unlockchime/internal/usage"
	"github.com/rs/zerolog/log"
)

// Text of the resident status notification.
const (
	StatusSummary = "Unlock sound service active"
	StatusBody    = "Listening for device unlock..."
)

// PrefsLoader reads the current preferences.
type PrefsLoader interface {
	Load() (*models.Preferences, error)
}

// Player plays the selected clip.
type Player interface {
	Play(ref string) bool
	Release()
}

// Notifier shows the status notification.
type Notifier interface {
	ShowStatus(ctx context.Context, summary, body string) error
	CloseStatus(ctx context.Context) error
}

// LauncherSink receives the launcher set computed at start.
type LauncherSink interface {
	SetLaunchers(usage.LauncherSet)
}

// Attempt describes how one unlock was handled.
type Attempt struct {
	Event    unlock.Event
	Decision gates.Decision
	Played   bool
	Err      error
}

// Deps are the collaborators of a Service. Store, Source and Player are
// required.
type Deps struct {
	Store     PrefsLoader
	Source    unlock.Source
	Gates     gates.Set
	Player    Player
	Notifier  Notifier
	Launchers func() usage.LauncherSet
	Desktop   LauncherSink
	Intent    *Intent

	// OnState is called after every state transition.
	OnState func(models.ServiceState)
	// OnAttempt is called after each unlock has been handled.
	OnAttempt func(Attempt)
}

// ErrMisconfigured is returned by New when a required dependency is nil.
var ErrMisconfigured = errors.New("service: missing dependency")

// Service owns the unlock subscription and its dispatch goroutine.
type Service struct {
	base context.Context
	deps Deps

	running atomic.Bool

	stateMu sync.RWMutex
	state   models.ServiceState

	mu        sync.Mutex
	unsub     func()
	cancel    context.CancelFunc
	stopAfter func() bool
	wg        sync.WaitGroup
}

// New returns a stopped service. The service stops by itself when base is
// cancelled.
func New(base context.Context, deps Deps) (*Service, error) {
	if deps.Store == nil || deps.Source == nil || deps.Player == nil {
		return nil, ErrMisconfigured
	}
	return &Service{base: base, deps: deps, state: models.ServiceStopped}, nil
}

// Running reports whether the service is between start and stop. It is
// safe to call from any goroutine.
func (s *Service) Running() bool { return s.running.Load() }

// State returns the lifecycle state.
func (s *Service) State() models.ServiceState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Service) setState(st models.ServiceState) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
	log.Info().Str("state", string(st)).Msg("service: state changed")
	if s.deps.OnState != nil {
		s.deps.OnState(st)
	}
}

// Start begins listening. Starting a running service does nothing.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() != models.ServiceStopped {
		return nil
	}
	if s.base.Err() != nil {
		return fmt.Errorf("service: %w", s.base.Err())
	}
	s.setState(models.ServiceStarting)

	if s.deps.Launchers != nil && s.deps.Desktop != nil {
		s.deps.Desktop.SetLaunchers(s.deps.Launchers())
	}
	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.ShowStatus(ctx, StatusSummary, StatusBody); err != nil {
			log.Warn().Err(err).Msg("service: status notification unavailable")
		}
	}

	// set before subscribing so the UI never sees a subscribed-but-stopped
	// service
	s.running.Store(true)

	runCtx, cancel := context.WithCancel(s.base)
	events := make(chan unlock.Event, 16)
	s.wg.Add(1)
	go s.dispatch(runCtx, events)

	unsub, err := s.deps.Source.Subscribe(runCtx, func(ev unlock.Event) {
		select {
		case events <- ev:
		case <-runCtx.Done():
		}
	})
	if err != nil {
		cancel()
		s.wg.Wait()
		s.running.Store(false)
		s.closeStatus(ctx)
		s.setState(models.ServiceStopped)
		return fmt.Errorf("service: subscribe to unlocks: %w", err)
	}

	s.unsub = unsub
	s.cancel = cancel
	s.stopAfter = context.AfterFunc(s.base, func() { s.stop(context.Background(), false) })
	s.saveIntent(true)
	s.setState(models.ServiceRunning)
	return nil
}

// Stop unsubscribes, releases playback and removes the status
// notification. Stopping a stopped service does nothing.
func (s *Service) Stop(ctx context.Context) {
	s.stop(ctx, true)
}

func (s *Service) stop(ctx context.Context, explicit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == models.ServiceStopped {
		return
	}
	if s.stopAfter != nil {
		s.stopAfter()
		s.stopAfter = nil
	}
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.wg.Wait()
	s.deps.Player.Release()
	s.closeStatus(ctx)
	s.running.Store(false)
	if explicit {
		s.saveIntent(false)
	}
	s.setState(models.ServiceStopped)
}

// Shutdown stops the service for daemon exit and returns once the status
// notification is closed. Unlike Stop it keeps the run intent, so the
// service resumes on next launch.
func (s *Service) Shutdown(ctx context.Context) {
	s.stop(ctx, false)
}

// Resume starts the service if the user left it running last time.
func (s *Service) Resume(ctx context.Context) error {
	if s.deps.Intent == nil || !s.deps.Intent.Running() {
		return nil
	}
	log.Info().Msg("service: resuming after restart")
	return s.Start(ctx)
}

func (s *Service) closeStatus(ctx context.Context) {
	if s.deps.Notifier == nil {
		return
	}
	if err := s.deps.Notifier.CloseStatus(ctx); err != nil {
		log.Debug().Err(err).Msg("service: close status notification")
	}
}

func (s *Service) saveIntent(running bool) {
	if s.deps.Intent == nil {
		return
	}
	if err := s.deps.Intent.Save(running); err != nil {
		log.Warn().Err(err).Msg("service: cannot persist run intent")
	}
}

func (s *Service) dispatch(ctx context.Context, events <-chan unlock.Event) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			s.handle(ctx, ev)
		}
	}
}

func (s *Service) handle(ctx context.Context, ev unlock.Event) {
	attempt := Attempt{Event: ev}
	defer func() {
		if r := recover(); r != nil {
			attempt.Err = fmt.Errorf("unlock handler panic: %v", r)
			log.Error().Interface("panic", r).Msg("service: unlock handler failed")
		}
		if s.deps.OnAttempt != nil {
			s.deps.OnAttempt(attempt)
		}
	}()

	if !s.running.Load() {
		return
	}
	prefs, err := s.deps.Store.Load()
	if err != nil {
		attempt.Err = err
		log.Error().Err(err).Msg("service: cannot read preferences")
		return
	}

	attempt.Decision = gates.Evaluate(ctx, *prefs, s.deps.Gates)
	if !attempt.Decision.Play {
		log.Info().Str("source", ev.Source).Str("gate", attempt.Decision.FailedGate).
			Msg("service: unlock, condition not met")
		return
	}
	log.Info().Str("source", ev.Source).Msg("service: unlock, all conditions met, playing")
	attempt.Played = s.deps.Player.Play(prefs.SoundURI)
}
