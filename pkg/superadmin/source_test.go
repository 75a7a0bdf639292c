package superadmin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSettings(t *testing.T) {
	s := NewSettings(true, []string{" Ops@Example.com ", "", "root@example.com"})
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Allows("ops@example.com"))
	assert.True(t, s.Allows("OPS@EXAMPLE.COM"))
	assert.False(t, s.Allows("other@example.com"))
}

func TestStaticSource(t *testing.T) {
	src := NewStaticSource(true, []string{"ops@example.com"})
	s, err := src.Settings(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Enabled)
	assert.True(t, s.Allows("ops@example.com"))
}

func writeSettings(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "superadmin.yaml")
	writeSettings(t, path, "enabled: true\nemails:\n  - Ops@Example.com\n")

	src, err := NewFileSource(path, nil)
	require.NoError(t, err)

	s, err := src.Settings(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Enabled)
	assert.True(t, s.Allows("ops@example.com"))

	writeSettings(t, path, "enabled: false\nemails: []\n")
	require.NoError(t, src.Reload())
	s, _ = src.Settings(context.Background())
	assert.False(t, s.Enabled)
}

func TestFileSource_Errors(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeSettings(t, path, "enabled: [")
	_, err = NewFileSource(path, nil)
	assert.ErrorContains(t, err, "failed to parse")
}

func TestFileSource_BadReloadKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "superadmin.yaml")
	writeSettings(t, path, "enabled: true\nemails: [ops@example.com]\n")

	src, err := NewFileSource(path, nil)
	require.NoError(t, err)

	writeSettings(t, path, "enabled: [")
	assert.Error(t, src.Reload())

	s, _ := src.Settings(context.Background())
	assert.True(t, s.Enabled)
	assert.True(t, s.Allows("ops@example.com"))
}

func TestFileSource_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "superadmin.yaml")
	writeSettings(t, path, "enabled: false\n")

	src, err := NewFileSource(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, src.Watch(ctx))

	writeSettings(t, path, "enabled: true\nemails: [ops@example.com]\n")

	assert.Eventually(t, func() bool {
		s, _ := src.Settings(context.Background())
		return s.Enabled && s.Allows("ops@example.com")
	}, 5*time.Second, 20*time.Millisecond)
}
