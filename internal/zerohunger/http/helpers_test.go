package http

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/events"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/service"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/store/drivers/sqlite"
	"github.com/aussiebroadwan/zerohunger/pkg/httpx"
	"github.com/aussiebroadwan/zerohunger/pkg/cryptox"
	"github.com/aussiebroadwan/zerohunger/pkg/jwtx"
	"github.com/aussiebroadwan/zerohunger/pkg/zhclient"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

const testIssuer = "zerohunger-test"

type testServer struct {
	*httptest.Server
	store  *sqlite.Store
	events *events.Recorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	// Every test signs several users up from the same address.
	generous := httpx.RateLimitConfig{RequestsPerWindow: 10000, Window: time.Minute, Burst: 10000}
	saved := []httpx.RateLimitConfig{httpx.AuthLimit, httpx.WriteLimit, httpx.ReadLimit}
	httpx.AuthLimit, httpx.WriteLimit, httpx.ReadLimit = generous, generous, generous
	t.Cleanup(func() {
		httpx.AuthLimit, httpx.WriteLimit, httpx.ReadLimit = saved[0], saved[1], saved[2]
	})

	cryptox.SetPepperPath(filepath.Join(t.TempDir(), "pepper"))

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "zh.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA(priv)
	require.NoError(t, err)
	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := events.NewRecorder()

	r := NewRouter(keys, Options{
		BuildVersion:         "test",
		SessionTTL:           time.Hour,
		LocationPushInterval: 50 * time.Millisecond,
	}, st, logger)
	r.AuthService = &service.AuthService{
		Store:    st,
		Signer:   signer,
		Verifier: jwtx.NewVerifierEdDSA(keys, testIssuer),
		Issuer:   testIssuer,
		TTL:      time.Hour,
	}
	r.MFAService = &service.MFAService{Store: st, Issuer: "ZeroHunger"}
	r.UserService = &service.UserService{Store: st}
	r.DonationService = &service.DonationService{Store: st, Events: rec}
	r.FeedbackService = &service.FeedbackService{Store: st}
	r.LocationService = &service.LocationService{Locations: st.Locations()}
	r.DashboardService = &service.DashboardService{Store: st}
	r.ApplyRoutes()

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, store: st, events: rec}
}

func (s *testServer) client(t *testing.T) *zhclient.Client {
	t.Helper()
	c, err := zhclient.New(s.URL)
	require.NoError(t, err)
	return c
}

// signup registers a user with password "secret" and returns a client
// whose session is verified.
func (s *testServer) signup(t *testing.T, role, email string) (*zhclient.Client, zhclient.User) {
	t.Helper()
	ctx := context.Background()
	c := s.client(t)

	u, err := c.Signup(ctx, zhclient.SignupRequest{
		FirstName:       "Test",
		LastName:        role,
		Email:           email,
		Password:        "secret",
		ConfirmPassword: "secret",
		Role:            role,
	})
	require.NoError(t, err)

	state, err := c.Login(ctx, email, "secret")
	require.NoError(t, err)
	require.Equal(t, zhclient.StateSetupSecondFactor, state.State)

	setup, err := c.GenerateSecondFactor(ctx)
	require.NoError(t, err)
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)

	state, err = c.EnableSecondFactor(ctx, code)
	require.NoError(t, err)
	require.Equal(t, zhclient.StateVerified, state.State)
	return c, *u
}
