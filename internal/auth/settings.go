package auth

import "time"

// Settings holds the policy values that may change while the server runs.
type Settings struct {
	// RefreshTokenGracePeriod is how long a revoked refresh token stays usable.
	RefreshTokenGracePeriod time.Duration
	LimitClientsToScopes    bool
	LimitClientsToGrants    bool
}

// SettingsProvider returns the settings in effect at the time of the call.
// Implementations are read on every operation and must be safe for concurrent use.
type SettingsProvider interface {
	Settings() Settings
}

// StaticSettings is a SettingsProvider that never changes.
type StaticSettings Settings

func (s StaticSettings) Settings() Settings { return Settings(s) }
