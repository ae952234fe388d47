package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func TestOptionalFailureIsTolerated(t *testing.T) {
	sv := NewServiceValidator(map[string]Check{"redis": down, "database": ok})
	assert.Empty(t, sv.Required())
	assert.NoError(t, sv.ValidateServices(context.Background()))
}

func TestRequiredFailureIsFatal(t *testing.T) {
	t.Setenv("VOTING_REQUIRE_REDIS", "yes")

	sv := NewServiceValidator(map[string]Check{"redis": down, "database": ok})
	assert.Equal(t, []string{"redis"}, sv.Required())

	err := sv.ValidateServices(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRequiredButNotConfigured(t *testing.T) {
	t.Setenv("VOTING_REQUIRE_ELASTICSEARCH", "1")

	sv := NewServiceValidator(map[string]Check{"database": ok})
	err := sv.ValidateServices(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestIsTruthy(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", " yes ", "on"} {
		assert.True(t, isTruthy(v), v)
	}
	for _, v := range []string{"", "0", "false", "nope"} {
		assert.False(t, isTruthy(v), v)
	}
}
