package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	l, err := NewFileLoader(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 2*time.Minute, cfg.Scan.UnitTimeout)
	assert.Zero(t, cfg.Scan.Concurrency)
	assert.Equal(t, []string{ServiceELBv2, ServiceVPC}, cfg.EnabledServices())
	assert.Equal(t, MatchARN, cfg.Scan.Match)
}

func TestLoad_ReadsFile(t *testing.T) {
	path := writeFile(t, `
aws:
  profile: audit
  regions: [us-east-1, eu-west-1]
scan:
  services: [vpc]
  concurrency: 4
  unit_timeout: 30s
log:
  level: debug
  format: json
`)
	l, err := NewFileLoader(path)
	require.NoError(t, err)

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "audit", cfg.AWS.Profile)
	assert.Equal(t, []string{"us-east-1", "eu-west-1"}, cfg.AWS.Regions)
	assert.Equal(t, []string{ServiceVPC}, cfg.EnabledServices())
	assert.Equal(t, 4, cfg.Scan.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Scan.UnitTimeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, path, l.ConfigPath())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "aws:\n  profile: audit\n")
	t.Setenv("INV_AWS_PROFILE", "prod")
	t.Setenv("INV_AWS_ENDPOINT_URL", "http://localhost:4566")
	t.Setenv("INV_SCAN_CONCURRENCY", "8")

	l, err := NewFileLoader(path)
	require.NoError(t, err)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.AWS.Profile)
	assert.Equal(t, "http://localhost:4566", cfg.AWS.EndpointURL)
	assert.Equal(t, 8, cfg.Scan.Concurrency)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	path := writeFile(t, "scan:\n  services: [s3]\n  concurrency: -1\n")
	l, err := NewFileLoader(path)
	require.NoError(t, err)

	_, err = l.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown service "s3"`)
	assert.Contains(t, err.Error(), "scan.concurrency")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"negative timeout", func(c *Config) { c.Scan.UnitTimeout = -time.Second }, "scan.unit_timeout"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad match", func(c *Config) { c.Scan.Match = "glob" }, "scan.match"},
		{"cel resources", func(c *Config) {
			c.Scan.Match = MatchCEL
			c.Scan.Resources = []string{`id.startsWith("vpc-")`}
		}, ""},
		{"bad cel resource", func(c *Config) {
			c.Scan.Match = MatchCEL
			c.Scan.Resources = []string{`id ==`}
		}, "scan.resources"},
		{"arn resources are not compiled", func(c *Config) { c.Scan.Resources = []string{`id ==`} }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWrite_RoundTripAndNoClobber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.AWS.Profile = "audit"
	cfg.Scan.Concurrency = 3

	require.NoError(t, Write(path, cfg, false))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	err = Write(path, Default(), false)
	assert.ErrorIs(t, err, ErrConfigExists)

	l, err := NewFileLoader(path)
	require.NoError(t, err)
	loaded, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "audit", loaded.AWS.Profile)
	assert.Equal(t, 3, loaded.Scan.Concurrency)
	assert.Equal(t, 2*time.Minute, loaded.Scan.UnitTimeout)

	require.NoError(t, Write(path, Default(), true))
	loaded, err = l.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded.AWS.Profile)
}

func TestResourceFilter(t *testing.T) {
	cfg := Default()
	f, err := cfg.ResourceFilter()
	require.NoError(t, err)
	assert.True(t, f.Match("vpc-1", []string{"vpc-1"}))
	assert.False(t, f.Match("vpc-1", []string{`id == "vpc-1"`}))

	cfg.Scan.Match = MatchCEL
	f, err = cfg.ResourceFilter()
	require.NoError(t, err)
	assert.True(t, f.Match("vpc-1", []string{`id == "vpc-1"`}))
}
