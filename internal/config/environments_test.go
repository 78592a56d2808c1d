package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvironment(t *testing.T) {
	for _, name := range []string{"sandbox", "production"} {
		t.Run("valid_"+name, func(t *testing.T) {
			env, err := GetEnvironment(name)
			require.NoError(t, err)
			assert.NotEmpty(t, env.APIBase)
			assert.NotEmpty(t, env.AppCenter)
		})
	}

	t.Run("invalid environment returns error", func(t *testing.T) {
		_, err := GetEnvironment("staging")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown QuickBooks environment")
	})

	t.Run("sandbox has sandbox host", func(t *testing.T) {
		env, err := GetEnvironment("sandbox")
		require.NoError(t, err)
		assert.Equal(t, "https://sandbox-quickbooks.api.intuit.com", env.APIBase)
	})
}

func TestValidEnvironments(t *testing.T) {
	assert.Equal(t, []string{"production", "sandbox"}, ValidEnvironments())
}
