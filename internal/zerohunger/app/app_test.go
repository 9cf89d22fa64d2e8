package app

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/zerohunger/pkg/zhclient"
	"github.com/stretchr/testify/require"
)

func TestApplicationLifecycle(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Env:                  "test",
		LogLevel:             "error",
		LogFormat:            "text",
		Port:                 0,
		DatabaseFile:         filepath.Join(dir, "zh.db"),
		PepperFile:           filepath.Join(dir, "pepper"),
		SessionKeyFile:       filepath.Join(dir, "session.pem"),
		SessionTTL:           time.Hour,
		MFAIssuer:            "ZeroHunger",
		LocationPushInterval: time.Second,
		ShutdownGracePeriod:  time.Second,
		HousekeepingInterval: time.Hour,
	}

	app, err := New(cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(app.router)
	c, err := zhclient.New(srv.URL)
	require.NoError(t, err)

	ready, err := c.Readiness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)

	srv.Close()
	require.NoError(t, app.Shutdown())

	// The session key is persisted, so a second start reuses it.
	again, err := New(cfg)
	require.NoError(t, err)
	require.Equal(t, app.signer.KID(), again.signer.KID())
	require.NoError(t, again.Shutdown())
}
