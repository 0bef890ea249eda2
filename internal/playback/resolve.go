// Package playback plays the selected sound clip.
package playback

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrNoReference is returned when no sound has been selected.
var ErrNoReference = errors.New("no sound selected")

// ErrUnsupported is returned for references that are not local files.
var ErrUnsupported = errors.New("unsupported sound reference")

// Resolver turns a stored sound reference into readable bytes.
type Resolver struct {
	Fs afero.Fs
}

// NewResolver resolves against the real filesystem.
func NewResolver() *Resolver {
	return &Resolver{Fs: afero.NewOsFs()}
}

// Path converts a reference into a local path. Accepted forms are file://
// URIs and absolute paths, which includes document portal paths.
func Path(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrNoReference
	}
	if filepath.IsAbs(ref) {
		return filepath.Clean(ref), nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if u.Scheme != "file" || (u.Host != "" && u.Host != "localhost") {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ref)
	}
	if u.Path == "" || !filepath.IsAbs(u.Path) {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ref)
	}
	return filepath.Clean(u.Path), nil
}

// Open returns the clip and its lower-case extension.
func (r *Resolver) Open(ref string) (io.ReadSeekCloser, string, error) {
	path, err := Path(ref)
	if err != nil {
		return nil, "", err
	}
	f, err := r.Fs.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open sound: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, "", fmt.Errorf("stat sound: %w", err)
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, "", fmt.Errorf("open sound: %s is a directory", path)
	}
	return f, strings.ToLower(filepath.Ext(path)), nil
}
