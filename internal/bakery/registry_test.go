package bakery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/bakery/internal/foundation/errors"
)

func TestRegistryResolvesRegisteredCommand(t *testing.T) {
	reg := NewRegistry()
	reg.Register("purge_cache", func(context.Context) (string, error) {
		return "purged", nil
	})

	out, err := reg.Resolve("purge_cache")(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "purged", out)
	assert.Equal(t, []string{"purge_cache"}, reg.Names())
}

func TestRegistryRegisterReplaces(t *testing.T) {
	reg := NewRegistry()
	reg.Register("purge_cache", func(context.Context) (string, error) { return "first", nil })
	reg.Register("purge_cache", func(context.Context) (string, error) { return "second", nil })

	out, err := reg.Resolve("purge_cache")(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", out)
}

func TestRegistryUnknownCommandFallsBackToPath(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Resolve("definitely-not-on-path-bakery")(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryCommand))
}

func TestRegistryExternalCommandRuns(t *testing.T) {
	reg := NewRegistry()
	out, err := reg.Resolve("true")(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
}
