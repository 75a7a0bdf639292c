package superadmin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/tenantgate/pkg/observability"
)

// Settings is the super-admin configuration in effect for one request
type Settings struct {
	Enabled bool
	emails  map[string]struct{}
}

// NewSettings builds settings from an allowlist. Emails are trimmed and
// lowercased; empty entries are dropped.
func NewSettings(enabled bool, emails []string) Settings {
	set := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			set[email] = struct{}{}
		}
	}
	return Settings{Enabled: enabled, emails: set}
}

// Allows reports whether email is on the allowlist, ignoring case
func (s Settings) Allows(email string) bool {
	_, ok := s.emails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// Len returns the number of allowlisted emails
func (s Settings) Len() int {
	return len(s.emails)
}

// Source supplies the current settings. It is read on every request.
type Source interface {
	Settings(ctx context.Context) (Settings, error)
}

// StaticSource serves fixed settings loaded at startup
type StaticSource struct {
	settings Settings
}

// NewStaticSource creates a source with fixed settings
func NewStaticSource(enabled bool, emails []string) *StaticSource {
	return &StaticSource{settings: NewSettings(enabled, emails)}
}

// Settings implements Source
func (s *StaticSource) Settings(context.Context) (Settings, error) {
	return s.settings, nil
}

type settingsFile struct {
	Enabled bool     `yaml:"enabled"`
	Emails  []string `yaml:"emails"`
}

// FileSource serves settings from a YAML file:
//
//	enabled: true
//	emails:
//	  - ops@example.com
//
// Watch reloads the file when it changes. A file that fails to parse
// leaves the previous settings in place.
type FileSource struct {
	path   string
	logger *observability.Logger

	mu       sync.RWMutex
	settings Settings
}

// NewFileSource loads path and returns a source over it
func NewFileSource(path string, logger *observability.Logger) (*FileSource, error) {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	s := &FileSource{path: filepath.Clean(path), logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Settings implements Source
func (s *FileSource) Settings(context.Context) (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

// Reload re-reads the settings file
func (s *FileSource) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read super-admin settings: %w", err)
	}

	var file settingsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse super-admin settings: %w", err)
	}

	settings := NewSettings(file.Enabled, file.Emails)

	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return nil
}

// Watch reloads the file on every write, create or rename in its
// directory until ctx is done. The directory is watched so that editors
// which replace the file are picked up.
func (s *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", s.path, err)
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
				if filepath.Clean(event.Name) != s.path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := s.Reload(); err != nil {
					s.logger.WithError(err).Warn("Keeping previous super-admin settings")
					continue
				}
				s.logger.WithField("path", s.path).Info("Reloaded super-admin settings")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.WithError(err).Warn("Super-admin settings watcher error")
			}
		}
	}()
	return nil
}
