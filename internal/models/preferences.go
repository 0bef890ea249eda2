// Package models defines the data structures shared by the unlockchime daemon.
// JSON field names match the persisted preference keys exactly.
package models

import "fmt"

// Preference keys. These are the fixed identifiers used by every store
// backend and by the settings API.
const (
	KeyHeadphoneOnly = "headphoneOnly"
	KeyDesktopOnly   = "desktopOnly"
	KeyNoOtherAudio  = "noOtherAudio"
	KeySoundURI      = "soundUri"
)

// BoolKeys lists the boolean preference keys in gate evaluation order.
var BoolKeys = []string{KeyHeadphoneOnly, KeyNoOtherAudio, KeyDesktopOnly}

// Preferences is the flat set of user settings. The three gate flags default
// to false and SoundURI is empty when no sound has been chosen.
type Preferences struct {
	HeadphoneOnly bool   `json:"headphoneOnly"`
	DesktopOnly   bool   `json:"desktopOnly"`
	NoOtherAudio  bool   `json:"noOtherAudio"`
	SoundURI      string `json:"soundUri,omitempty"`
}

// DefaultPreferences returns the preferences used on first launch.
func DefaultPreferences() Preferences {
	return Preferences{}
}

// HasSound reports whether a sound reference has been stored.
func (p Preferences) HasSound() bool { return p.SoundURI != "" }

// Bool returns the value of a boolean preference by key.
func (p Preferences) Bool(key string) (bool, error) {
	switch key {
	case KeyHeadphoneOnly:
		return p.HeadphoneOnly, nil
	case KeyDesktopOnly:
		return p.DesktopOnly, nil
	case KeyNoOtherAudio:
		return p.NoOtherAudio, nil
	}
	return false, fmt.Errorf("unknown boolean preference %q", key)
}

// SetBool sets a boolean preference by key.
func (p *Preferences) SetBool(key string, v bool) error {
	switch key {
	case KeyHeadphoneOnly:
		p.HeadphoneOnly = v
	case KeyDesktopOnly:
		p.DesktopOnly = v
	case KeyNoOtherAudio:
		p.NoOtherAudio = v
	default:
		return fmt.Errorf("unknown boolean preference %q", key)
	}
	return nil
}

// PreferencesUpdate is the PATCH body for changing preferences. Nil fields
// are left untouched.
type PreferencesUpdate struct {
	HeadphoneOnly *bool `json:"headphoneOnly,omitempty"`
	DesktopOnly   *bool `json:"desktopOnly,omitempty"`
	NoOtherAudio  *bool `json:"noOtherAudio,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u PreferencesUpdate) Empty() bool {
	return u.HeadphoneOnly == nil && u.DesktopOnly == nil && u.NoOtherAudio == nil
}

// Apply writes the set fields of u onto p.
func (u PreferencesUpdate) Apply(p *Preferences) {
	if u.HeadphoneOnly != nil {
		p.HeadphoneOnly = *u.HeadphoneOnly
	}
	if u.DesktopOnly != nil {
		p.DesktopOnly = *u.DesktopOnly
	}
	if u.NoOtherAudio != nil {
		p.NoOtherAudio = *u.NoOtherAudio
	}
}

// SoundSelection is the PUT body for choosing a sound by reference.
type SoundSelection struct {
	URI string `json:"uri"`
}

// UsageAccessGrant is the PUT body for granting or revoking usage access.
type UsageAccessGrant struct {
	Granted bool `json:"granted"`
}
