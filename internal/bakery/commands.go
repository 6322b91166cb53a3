package bakery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	ferrors "git.home.luguber.info/inful/bakery/internal/foundation/errors"
)

// EnvPurgeURL configures the purge_cache builtin. Unset leaves the command a
// no-op so it can sit in config before the CDN exists.
const EnvPurgeURL = "BAKERY_PURGE_URL"

const purgeTimeout = 30 * time.Second

// RegisterBuiltins adds the shipped post-publish commands to the registry.
func RegisterBuiltins(reg *Registry) {
	reg.Register("purge_cache", PurgeCache)
}

// PurgeCache issues an HTTP purge request against the configured URL.
func PurgeCache(ctx context.Context) (string, error) {
	url := os.Getenv(EnvPurgeURL)
	if url == "" {
		return "purge skipped: " + EnvPurgeURL + " not set", nil
	}

	ctx, cancel := context.WithTimeout(ctx, purgeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", ferrors.CommandError("invalid purge URL").
			WithContext("url", url).
			Build()
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryCommand, "cache purge request failed").
			WithContext("url", url).
			Build()
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", ferrors.CommandError("cache purge rejected").
			WithContext("url", url).
			WithContext("status", resp.StatusCode).
			Build()
	}

	return fmt.Sprintf("purged via %s (%d)", url, resp.StatusCode), nil
}
