package usage

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"gopkg.in/ini.v1"
)

// DesktopIdentity is recorded when no application window has focus or
// the focused window is the desktop itself. Every LauncherSet from Find
// contains it.
const DesktopIdentity = "(desktop)"

// builtinLaunchers are processes that only ever draw the desktop or the
// shell. Plain file managers are left out: their desktop windows are
// caught by window type instead.
var builtinLaunchers = []string{
	DesktopIdentity,
	"plasmashell",
	"xfdesktop",
	"nemo-desktop",
	"gnome-shell",
}

// desktopProvides are X-GNOME-Provides components that mark a shell.
var desktopProvides = map[string]bool{
	"panel":         true,
	"windowmanager": true,
}

// LauncherSet is a set of process names.
type LauncherSet map[string]struct{}

// Contains reports whether name is a launcher.
func (s LauncherSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the set sorted.
func (s LauncherSet) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// LauncherFinder discovers launcher process names.
type LauncherFinder struct {
	Fs    afero.Fs
	Dirs  []string
	Extra []string
}

// NewLauncherFinder searches the XDG application directories on the real
// filesystem.
func NewLauncherFinder(extra []string) *LauncherFinder {
	dirs := append([]string{xdg.DataHome}, xdg.DataDirs...)
	for i, d := range dirs {
		dirs[i] = filepath.Join(d, "applications")
	}
	return &LauncherFinder{Fs: afero.NewOsFs(), Dirs: dirs, Extra: extra}
}

// Find returns the built-in launchers, the configured extras and every
// application entry that provides a shell component.
func (f *LauncherFinder) Find() LauncherSet {
	set := make(LauncherSet)
	for _, n := range builtinLaunchers {
		set[n] = struct{}{}
	}
	for _, n := range f.Extra {
		if n = strings.TrimSpace(n); n != "" {
			set[n] = struct{}{}
		}
	}
	for _, dir := range f.Dirs {
		matches, err := afero.Glob(f.Fs, filepath.Join(dir, "*.desktop"))
		if err != nil {
			continue
		}
		for _, path := range matches {
			if name := f.shellExecutable(path); name != "" {
				set[name] = struct{}{}
			}
		}
	}
	log.Debug().Strs("launchers", set.Names()).Msg("usage: launcher set")
	return set
}

func (f *LauncherFinder) shellExecutable(path string) string {
	data, err := afero.ReadFile(f.Fs, path)
	if err != nil {
		return ""
	}
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true, Insensitive: false}, data)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("usage: unreadable desktop entry")
		return ""
	}
	sec, err := cfg.GetSection("Desktop Entry")
	if err != nil {
		return ""
	}
	if !providesShell(sec.Key("X-GNOME-Provides").String()) {
		return ""
	}
	return ExecName(sec.Key("Exec").String())
}

func providesShell(provides string) bool {
	for _, p := range strings.Split(provides, ";") {
		if desktopProvides[strings.TrimSpace(p)] {
			return true
		}
	}
	return false
}

// ExecName extracts the executable base name from a desktop entry Exec
// line, skipping an "env VAR=value" prefix.
func ExecName(exec string) string {
	fields := strings.Fields(exec)
	for len(fields) > 0 {
		head := strings.Trim(fields[0], `"'`)
		switch {
		case filepath.Base(head) == "env":
			fields = fields[1:]
		case strings.Contains(head, "="):
			fields = fields[1:]
		default:
			return filepath.Base(head)
		}
	}
	return ""
}
