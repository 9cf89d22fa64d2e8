//go:build e2e

package zerohunger_test

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHealthEndpoints(t *testing.T) {
	baseURL := setupContainer(t, nil)
	c := newClient(t, baseURL)

	health, err := c.Liveness(t.Context())
	assertHealthy(t, health, err)

	health, err = c.Readiness(t.Context())
	assertHealthy(t, health, err)
	require.NotNil(t, health.Checks)
	require.Equal(t, "ok", health.Checks.Database)
	require.Equal(t, "ok", health.Checks.Signer)
}
