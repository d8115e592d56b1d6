package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "imdirdiff.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, BackendPixel, cfg.Compare.Backend)
	assert.Equal(t, 1, cfg.Compare.Workers)
	assert.Equal(t, DefaultFlipBinary, cfg.Compare.Flip.Executable)
	assert.Equal(t, DefaultReportRoot, cfg.Report.Root)
	assert.Equal(t, DefaultThumbHeight, cfg.Report.ThumbHeight)
	assert.Equal(t, DefaultThumbSuffix, cfg.Report.ThumbSuffix)
	assert.ElementsMatch(t, DefaultExtensions, cfg.Index.Extensions)
	assert.Empty(t, cfg.History.Database)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
compare:
  backend: flip
  workers: 4
  flip:
    executable: /opt/flip/bin/flip
report:
  root: /tmp/out
  thumb_height: 120
  copy_unmatched: true
index:
  extensions: [PNG, .jpg]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendFlip, cfg.Compare.Backend)
	assert.Equal(t, 4, cfg.Compare.Workers)
	assert.Equal(t, "/opt/flip/bin/flip", cfg.Compare.Flip.Executable)
	assert.Equal(t, "/tmp/out", cfg.Report.Root)
	assert.Equal(t, 120, cfg.Report.ThumbHeight)
	assert.True(t, cfg.Report.CopyUnmatched)
	assert.Equal(t, []string{"png", "jpg"}, cfg.Index.NormalizedExtensions())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("IMDIRDIFF_REPORT_THUMB_HEIGHT", "64")

	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 64, cfg.Report.ThumbHeight)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults", func(*Config) {}, nil},
		{"bad backend", func(c *Config) { c.Compare.Backend = "magic" }, ErrInvalidBackend},
		{"negative workers", func(c *Config) { c.Compare.Workers = -1 }, ErrInvalidWorkers},
		{"zero thumb", func(c *Config) { c.Report.ThumbHeight = 0 }, ErrInvalidThumbHeight},
		{"no extensions", func(c *Config) { c.Index.Extensions = nil }, ErrNoExtensions},
		{"empty root", func(c *Config) { c.Report.Root = " " }, ErrEmptyReportRoot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	_, err := Load(writeConfig(t, "report:\n  thumb_height: -5\n"))
	require.ErrorIs(t, err, ErrInvalidThumbHeight)
}
