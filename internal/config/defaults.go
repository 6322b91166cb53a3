package config

import (
	"crypto/rand"
	"encoding/hex"
)

// Default values applied before the environment overlay.
const (
	DefaultAdminPort    = 8087
	DefaultBuildCommand = "bakery-build"
	DefaultOutputDir    = "./build"
	DefaultHistoryPath  = "bakery.db"
	DefaultNATSSubject  = "bakery.runs"
)

func (c *Config) applyDefaults() {
	if c.Admin.Port == 0 {
		c.Admin.Port = DefaultAdminPort
	}
	if c.Build.Command == "" {
		c.Build.Command = DefaultBuildCommand
	}
	if c.Build.OutputDir == "" {
		c.Build.OutputDir = DefaultOutputDir
	}
	if c.History.Path == "" {
		c.History.Path = DefaultHistoryPath
	}
	if c.Events.Subject == "" {
		c.Events.Subject = DefaultNATSSubject
	}
	if c.Admin.Secret == "" {
		c.Admin.Secret = randomSecret()
	}
}

// randomSecret generates a per-process cookie signing key.
func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// Deterministic fallback only ever costs flash integrity.
		return "bakery-insecure-session-secret"
	}
	return hex.EncodeToString(buf)
}
