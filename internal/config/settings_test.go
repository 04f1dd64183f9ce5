package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, "ftp.ncbi.nlm.nih.gov", s.Host)
	assert.Equal(t, "blast/db", s.RemoteDir)
	assert.Equal(t, 8, s.Workers)
	assert.Equal(t, 2, s.MaxRetries)
	assert.Equal(t, 10*time.Second, s.Timeout)
	assert.Equal(t, 65536, s.BlockSize)
	assert.Equal(t, "ftp.ncbi.nlm.nih.gov:21", s.Address())
	require.NoError(t, s.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestLoad_YAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "workers: 3\nmax_retries: 5\ntimeout: 30s\nkeep_archives: false\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, s.Workers)
	assert.Equal(t, 5, s.MaxRetries)
	assert.Equal(t, 30*time.Second, s.Timeout)
	assert.False(t, s.KeepArchives)
	assert.Equal(t, "blast/db", s.RemoteDir, "unset keys keep their defaults")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BLASTDBGET_WORKERS", "12")
	t.Setenv("BLASTDBGET_HOST", "ftp.example.org")

	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 12, s.Workers)
	assert.Equal(t, "ftp.example.org", s.Host)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	s := DefaultSettings()
	s.Workers = 2
	s.DatedSubdir = true
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Workers)
	assert.True(t, loaded.DatedSubdir)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"unknown protocol", func(s *Settings) { s.Protocol = "gopher" }},
		{"no host", func(s *Settings) { s.Host = "" }},
		{"no remote dir", func(s *Settings) { s.RemoteDir = "" }},
		{"zero workers", func(s *Settings) { s.Workers = 0 }},
		{"negative retries", func(s *Settings) { s.MaxRetries = -1 }},
		{"zero block size", func(s *Settings) { s.BlockSize = 0 }},
		{"zero timeout", func(s *Settings) { s.Timeout = 0 }},
		{"no archive suffix", func(s *Settings) { s.ArchiveSuffix = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestDatabases(t *testing.T) {
	tests := []struct {
		name      string
		include   bool
		requested []string
		want      []string
	}{
		{"empty stays empty", true, nil, nil},
		{"taxonomy appended", true, []string{"nr"}, []string{"nr", "taxdb"}},
		{"taxonomy not duplicated", true, []string{"taxdb", "nt"}, []string{"taxdb", "nt"}},
		{"taxonomy disabled", false, []string{"nr"}, []string{"nr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			s.IncludeTaxonomy = tt.include
			assert.Equal(t, tt.want, s.Databases(tt.requested))
		})
	}
}

func TestServer(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, "ftp.ncbi.nlm.nih.gov:21", s.Server())

	s.Protocol = ProtocolHTTPS
	assert.NoError(t, s.Validate())
	assert.Equal(t, "ftp.ncbi.nlm.nih.gov", s.Server())
	assert.Equal(t, "https://ftp.ncbi.nlm.nih.gov", s.BaseURL())
}

func TestLogValue_RedactsPassword(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	s := DefaultSettings()
	s.Password = "s3cret-token"
	logger.Info("Configuration loaded", slog.Any("settings", s))

	out := buf.String()
	assert.NotContains(t, out, "s3cret-token")
	assert.Contains(t, out, `"password":"REDACTED"`)
	assert.Contains(t, out, `"host":"ftp.ncbi.nlm.nih.gov"`)
	assert.Contains(t, out, `"workers":8`)
}
