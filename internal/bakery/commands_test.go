package bakery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/bakery/internal/foundation/errors"
)

func TestPurgeCacheNoopWithoutURL(t *testing.T) {
	t.Setenv(EnvPurgeURL, "")
	out, err := PurgeCache(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "purge skipped")
}

func TestPurgeCachePostsToConfiguredURL(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()
	t.Setenv(EnvPurgeURL, srv.URL)

	out, err := PurgeCache(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Contains(t, out, "202")
}

func TestPurgeCacheRejectedStatusIsCommandError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()
	t.Setenv(EnvPurgeURL, srv.URL)

	_, err := PurgeCache(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryCommand))
}

func TestRegisterBuiltins(t *testing.T) {
	reg := NewRegistry()
	RegisterBuiltins(reg)
	assert.Contains(t, reg.Names(), "purge_cache")
}
