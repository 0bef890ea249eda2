package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

const (
	AppName       = "unlockchime"
	SchemaVersion = 1
	CfgFile       = "config.toml"
	CfgEnv        = "UNLOCKCHIME_CFG"
	LogFile       = "unlockchime.log"
)

// Options is the daemon configuration read from config.toml.
type Options struct {
	ConfigSchema int      `toml:"config_schema" validate:"eq=1"`
	DebugLogging bool     `toml:"debug_logging"`
	Server       Server   `toml:"server"`
	Store        StoreCfg `toml:"store"`
	Desktop      Desktop  `toml:"desktop"`
	Playback     Playback `toml:"playback"`
}

type Server struct {
	Listen    string `toml:"listen" validate:"required,hostname_port"`
	Advertise bool   `toml:"advertise"`
}

type StoreCfg struct {
	Backend string `toml:"backend" validate:"oneof=bolt json"`
}

type Desktop struct {
	// Launchers are extra executable names treated as the desktop.
	Launchers []string `toml:"launchers,omitempty,multiline" validate:"dive,required"`
}

type Playback struct {
	SampleRate int `toml:"sample_rate" validate:"min=8000,max=192000"`
}

// BaseDefaults is written to disk when no config file exists.
var BaseDefaults = Options{
	ConfigSchema: SchemaVersion,
	Server: Server{
		Listen: "127.0.0.1:7531",
	},
	Store: StoreCfg{
		Backend: BackendBolt,
	},
	Playback: Playback{
		SampleRate: 48000,
	},
}

// Paths groups the directories the daemon reads and writes.
type Paths struct {
	ConfigDir string
	StateDir  string
}

// DefaultPaths resolves the XDG directories for the daemon. A non-empty
// configDir overrides the config location.
func DefaultPaths(configDir string) Paths {
	if configDir == "" {
		configDir = filepath.Join(xdg.ConfigHome, AppName)
	}
	return Paths{
		ConfigDir: configDir,
		StateDir:  filepath.Join(xdg.StateHome, AppName),
	}
}

// Ensure creates the directories.
func (p Paths) Ensure() error {
	for _, dir := range []string{p.ConfigDir, p.StateDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// LoadOptions reads config.toml from configDir (or the file named by
// UNLOCKCHIME_CFG), writing defaults first if it does not exist. Values
// missing from the file keep their defaults.
func LoadOptions(configDir string) (*Options, string, error) {
	cfgPath := os.Getenv(CfgEnv)
	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		log.Info().Str("path", cfgPath).Msg("saving new default config to disk")
		if err := SaveOptions(cfgPath, &BaseDefaults); err != nil {
			return nil, cfgPath, err
		}
	}

	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("failed to read config file: %w", err)
	}

	opts := BaseDefaults
	opts.Desktop.Launchers = nil
	if err := toml.Unmarshal(data, &opts); err != nil {
		return nil, cfgPath, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if opts.ConfigSchema != SchemaVersion {
		return nil, cfgPath, fmt.Errorf("schema version mismatch: got %d, expecting %d",
			opts.ConfigSchema, SchemaVersion)
	}
	if err := opts.Validate(); err != nil {
		return nil, cfgPath, err
	}
	return &opts, cfgPath, nil
}

// SaveOptions writes opts to path as TOML.
func SaveOptions(path string, opts *Options) error {
	data, err := toml.Marshal(opts)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks option values.
func (o *Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
