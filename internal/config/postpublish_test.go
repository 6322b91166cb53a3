package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// The post-publish setting accepts a descriptor object, a bare command name,
// or nothing at all; each shape must map to the documented (command, title)
// pair.
func TestParsePostPublishEnv(t *testing.T) {
	cases := []struct {
		name        string
		value       string
		wantCommand string
		wantTitle   string
	}{
		{"absent", "", "", DefaultPostPublishTitle},
		{"bare command name", "purge_cache", "purge_cache", DefaultPostPublishTitle},
		{"descriptor object", `{"command": "purge_cache", "title": "Purge CDN cache"}`, "purge_cache", "Purge CDN cache"},
		{"descriptor without title", `{"command": "reindex"}`, "reindex", DefaultPostPublishTitle},
		{"whitespace only", "   ", "", DefaultPostPublishTitle},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := ParsePostPublishEnv(tc.value)
			assert.Equal(t, tc.wantCommand, p.Command)
			assert.Equal(t, tc.wantTitle, p.DisplayTitle())
			assert.Equal(t, tc.wantCommand != "", p.Configured())
		})
	}
}

func TestPostPublishYAMLScalar(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte("post_publish: purge_cache\n"), &cfg))
	assert.Equal(t, "purge_cache", cfg.PostPublish.Command)
	assert.Equal(t, DefaultPostPublishTitle, cfg.PostPublish.DisplayTitle())
}

func TestPostPublishYAMLMapping(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte("post_publish:\n  command: purge_cache\n  title: Purge CDN cache\n"), &cfg))
	assert.Equal(t, "purge_cache", cfg.PostPublish.Command)
	assert.Equal(t, "Purge CDN cache", cfg.PostPublish.Title)
}

func TestPostPublishYAMLSequenceRejected(t *testing.T) {
	var cfg Config
	assert.Error(t, yaml.Unmarshal([]byte("post_publish:\n  - purge_cache\n"), &cfg))
}

func TestPostPublishEnvMalformedJSONFallsBackToBareName(t *testing.T) {
	p := ParsePostPublishEnv(`{"command": purge}`)
	assert.Equal(t, `{"command": purge}`, p.Command)
	assert.Equal(t, DefaultPostPublishTitle, p.DisplayTitle())
}
