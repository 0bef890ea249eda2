// Package identity reports the daemon's version and the host it runs on.
package identity

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/micro-nova/unlockchime/internal/models"
)

// DefaultVersion is used when neither metadata.json nor build info carry a
// version.
const DefaultVersion = "0.1.0-dev"

// MetadataFile may override the version, e.g. for packaged builds.
const MetadataFile = "metadata.json"

// GetHostname returns the system hostname.
func GetHostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "localhost"
	}
	return h
}

// GetVersionFromDir reads the version from metadata.json in dir, then from
// the module build info.
func GetVersionFromDir(dir string) string {
	if v := metadataVersion(dir); v != "" {
		return v
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		if v := bi.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return DefaultVersion
}

func metadataVersion(dir string) string {
	if dir == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return ""
	}
	var meta struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return ""
	}
	return meta.Version
}

// Info returns a function suitable for the /api/info handler. The version
// is read once.
func Info(configDir string) func() models.Info {
	version := GetVersionFromDir(configDir)
	return func() models.Info {
		return models.Info{Version: version, Hostname: GetHostname()}
	}
}
