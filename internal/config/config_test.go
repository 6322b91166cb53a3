package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bakery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaultsForMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultAdminPort, cfg.Admin.Port)
	assert.Equal(t, DefaultBuildCommand, cfg.Build.Command)
	assert.Equal(t, DefaultOutputDir, cfg.Build.OutputDir)
	assert.False(t, cfg.BucketConfigured())
	assert.False(t, cfg.PostPublish.Configured())
}

func TestLoadReadsYAML(t *testing.T) {
	path := writeConfig(t, `
admin:
  port: 9090
build:
  command: hugo
  output_dir: ./public
  skip_static: true
publish:
  bucket: file-bucket
  prefix: site/
  delete_stale: true
post_publish:
  command: purge_cache
  title: Purge CDN cache
schedule:
  interval: 1h
  publish: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Admin.Port)
	assert.Equal(t, "hugo", cfg.Build.Command)
	assert.True(t, cfg.Build.SkipStatic)
	assert.Equal(t, "file-bucket", cfg.Publish.Bucket)
	assert.Equal(t, "purge_cache", cfg.PostPublish.Command)
	assert.Equal(t, "Purge CDN cache", cfg.PostPublish.DisplayTitle())
	assert.Equal(t, "1h", cfg.Schedule.Interval)
	require.NotZero(t, cfg.ScheduleInterval())
}

func TestBucketEnvResolutionOrder(t *testing.T) {
	path := writeConfig(t, "publish:\n  bucket: from-file\n")

	t.Run("file value when no env set", func(t *testing.T) {
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "from-file", cfg.Publish.Bucket)
	})

	t.Run("fallback var overrides file", func(t *testing.T) {
		t.Setenv(EnvBucketNameFallback, "from-fallback")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "from-fallback", cfg.Publish.Bucket)
	})

	t.Run("primary var wins over fallback", func(t *testing.T) {
		t.Setenv(EnvBucketNameFallback, "from-fallback")
		t.Setenv(EnvBucketName, "from-primary")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "from-primary", cfg.Publish.Bucket)
	})
}

func TestEnvOverlayBuildSettings(t *testing.T) {
	t.Setenv(EnvBuildDir, "/srv/site")
	t.Setenv(EnvSkipStatic, "true")
	t.Setenv(EnvAdminToken, "sekret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/srv/site", cfg.Build.OutputDir)
	assert.True(t, cfg.Build.SkipStatic)
	assert.Equal(t, "sekret", cfg.Admin.Token)
}

func TestEnvSkipStaticUnparseableIsIgnored(t *testing.T) {
	t.Setenv(EnvSkipStatic, "yes please")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.False(t, cfg.Build.SkipStatic)
}

func TestInitWritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bakery.yaml")
	require.NoError(t, Init(path, false))

	// A second init refuses without force.
	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultAdminPort, cfg.Admin.Port)
	assert.Equal(t, DefaultBuildCommand, cfg.Build.Command)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Admin.Port = 70000 }},
		{"empty build command", func(c *Config) { c.Build.Command = "" }},
		{"empty output dir", func(c *Config) { c.Build.OutputDir = "" }},
		{"bad schedule interval", func(c *Config) { c.Schedule.Interval = "fortnightly" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.applyDefaults()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
