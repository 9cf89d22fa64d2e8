package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/events"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/store/drivers/sqlite"
	"github.com/aussiebroadwan/zerohunger/pkg/cryptox"
	"github.com/aussiebroadwan/zerohunger/pkg/jwtx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

const testIssuer = "zerohunger-test"

type fixture struct {
	store     *sqlite.Store
	auth      *AuthService
	mfa       *MFAService
	donations *DonationService
	feedback  *FeedbackService
	locations *LocationService
	dashboard *DashboardService
	users     *UserService
	events    *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

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

	rec := events.NewRecorder()
	return &fixture{
		store: st,
		auth: &AuthService{
			Store:    st,
			Signer:   signer,
			Verifier: jwtx.NewVerifierEdDSA(keys, testIssuer),
			Issuer:   testIssuer,
			TTL:      time.Hour,
		},
		mfa:       &MFAService{Store: st, Issuer: "ZeroHunger"},
		donations: &DonationService{Store: st, Events: rec},
		feedback:  &FeedbackService{Store: st},
		locations: &LocationService{Locations: st.Locations()},
		dashboard: &DashboardService{Store: st},
		users:     &UserService{Store: st},
		events:    rec,
	}
}

// signup registers a user with password "secret".
func (f *fixture) signup(t *testing.T, role domain.Role, email string) domain.User {
	t.Helper()
	u, err := f.auth.Signup(context.Background(), SignupInput{
		FirstName:       "Test",
		LastName:        string(role),
		Email:           email,
		Password:        "secret",
		ConfirmPassword: "secret",
		Role:            string(role),
	})
	require.NoError(t, err)
	return u
}

// verifiedSession logs u in and completes second factor enrolment.
func (f *fixture) verifiedSession(t *testing.T, u domain.User) domain.Session {
	t.Helper()
	ctx := context.Background()

	res, err := f.auth.Login(ctx, u.Email, "secret")
	require.NoError(t, err)
	require.Equal(t, domain.SessionSetupSecondFactor, res.Session.State)

	setup, err := f.mfa.Generate(ctx, res.Session)
	require.NoError(t, err)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	sess, err := f.mfa.Enable(ctx, res.Session, code)
	require.NoError(t, err)
	require.True(t, sess.Verified())
	return sess
}

// wrongCode returns a six digit code that is not valid for secret in the
// current validation window.
func wrongCode(t *testing.T, secret string) string {
	t.Helper()
	now := time.Now()
	valid := map[string]bool{}
	for _, d := range []time.Duration{-totpPeriod * time.Second, 0, totpPeriod * time.Second} {
		c, err := totp.GenerateCode(secret, now.Add(d))
		require.NoError(t, err)
		valid[c] = true
	}
	for _, c := range []string{"000000", "111111", "222222", "333333"} {
		if !valid[c] {
			return c
		}
	}
	t.Fatal("no invalid code found")
	return ""
}
