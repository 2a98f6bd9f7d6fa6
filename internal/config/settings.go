package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/franciscosanchezn/gin-oauth2-server/internal/auth"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Keys recognised in the settings file. Keys absent from the file keep the
// value the store was created with.
const (
	keyGracePeriod          = "refresh_token_grace_period"
	keyLimitClientsToScopes = "limit_clients_to_scopes"
	keyLimitClientsToGrants = "limit_clients_to_grants"
)

// SettingsStore serves the token policy currently in effect. Reads are lock
// free, and a reload replaces the whole snapshot at once.
type SettingsStore struct {
	current atomic.Pointer[auth.Settings]
	base    auth.Settings
	path    string
}

// NewSettingsStore creates a store holding base. If path is not empty the file
// is read immediately and its values override base.
func NewSettingsStore(base auth.Settings, path string) (*SettingsStore, error) {
	s := &SettingsStore{base: base, path: path}
	s.current.Store(&base)
	if path == "" {
		return s, nil
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Settings implements auth.SettingsProvider.
func (s *SettingsStore) Settings() auth.Settings {
	return *s.current.Load()
}

// Set replaces the settings in effect.
func (s *SettingsStore) Set(settings auth.Settings) {
	s.current.Store(&settings)
}

// Reload reads the settings file again. On error the previous settings stay
// in effect.
func (s *SettingsStore) Reload() error {
	v := viper.New()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read settings file %s: %w", s.path, err)
	}

	next := s.base
	if v.IsSet(keyGracePeriod) {
		grace, err := durationSetting(v, keyGracePeriod)
		if err != nil {
			return err
		}
		next.RefreshTokenGracePeriod = grace
	}
	if v.IsSet(keyLimitClientsToScopes) {
		next.LimitClientsToScopes = v.GetBool(keyLimitClientsToScopes)
	}
	if v.IsSet(keyLimitClientsToGrants) {
		next.LimitClientsToGrants = v.GetBool(keyLimitClientsToGrants)
	}
	if next.RefreshTokenGracePeriod < 0 {
		return fmt.Errorf("%s must not be negative", keyGracePeriod)
	}

	s.Set(next)
	log.WithFields(logrus.Fields{
		"path":                    s.path,
		"grace_period":            next.RefreshTokenGracePeriod,
		"limit_clients_to_scopes": next.LimitClientsToScopes,
		"limit_clients_to_grants": next.LimitClientsToGrants,
	}).Info("Token settings loaded")
	return nil
}

// durationSetting accepts "90s" style durations as well as bare numbers of
// seconds, matching the environment variables.
func durationSetting(v *viper.Viper, key string) (time.Duration, error) {
	switch raw := v.Get(key).(type) {
	case int:
		return time.Duration(raw) * time.Second, nil
	case int64:
		return time.Duration(raw) * time.Second, nil
	case float64:
		return time.Duration(raw * float64(time.Second)), nil
	case string:
		d, err := parseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("invalid %s: %v", key, raw)
	}
}

// Watch reloads the settings file whenever it changes until ctx is done.
// The directory is watched so editors that replace the file are noticed.
func (s *SettingsStore) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	target := filepath.Clean(s.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch settings directory: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := s.Reload(); err != nil {
					log.WithError(err).Warn("Keeping previous token settings")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("Settings watcher error")
			}
		}
	}()
	return nil
}
