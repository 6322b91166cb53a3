package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variable names understood by the overlay. The bucket name is
// resolved from BAKERY_AWS_BUCKET_NAME first, AWS_BUCKET_NAME second; AWS
// credential variables are consumed transparently by the SDK.
const (
	EnvBucketName         = "BAKERY_AWS_BUCKET_NAME"
	EnvBucketNameFallback = "AWS_BUCKET_NAME"
	EnvBuildDir           = "BUILD_DIR"
	EnvSkipStatic         = "BAKERY_SKIP_STATIC"
	EnvPostPublishCommand = "BAKERY_POST_PUBLISH_COMMAND"
	EnvAdminToken         = "BAKERY_ADMIN_TOKEN"
	EnvSessionSecret      = "BAKERY_SESSION_SECRET"
)

// loadDotenv loads .env/.env.local if present. Existing process environment
// variables are never overridden.
func loadDotenv() {
	for _, path := range []string{".env", ".env.local"} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			slog.Warn("Failed to load env file", "path", path, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "path", path)
		return
	}
}

// applyEnv overlays environment variables onto the file configuration.
// Environment always wins over the file.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvBucketName); v != "" {
		c.Publish.Bucket = v
	} else if v := os.Getenv(EnvBucketNameFallback); v != "" {
		c.Publish.Bucket = v
	}

	if v := os.Getenv(EnvBuildDir); v != "" {
		c.Build.OutputDir = v
	}

	if v := os.Getenv(EnvSkipStatic); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Build.SkipStatic = b
		} else {
			slog.Warn("Ignoring unparseable boolean", "var", EnvSkipStatic, "value", v)
		}
	}

	if v, ok := os.LookupEnv(EnvPostPublishCommand); ok {
		c.PostPublish = ParsePostPublishEnv(v)
	}

	if v := os.Getenv(EnvAdminToken); v != "" {
		c.Admin.Token = v
	}

	if v := os.Getenv(EnvSessionSecret); v != "" {
		c.Admin.Secret = v
	}
}
