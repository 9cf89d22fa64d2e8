package service

import (
	"bytes"
	"context"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/metrics"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/store"
	"github.com/aussiebroadwan/zerohunger/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// MaxSecondFactorAttempts is the number of wrong codes a session may submit
// before it is discarded and the user has to log in again.
const MaxSecondFactorAttempts = 5

const (
	totpPeriod = 30
	totpSkew   = 1
	qrSize     = 200
)

// SecondFactorSetup is shown once while enrolling an authenticator app.
type SecondFactorSetup struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauth_url"`
	QRCode string `json:"qr_code"` // PNG data URL
}

// MFAService drives a session through the second factor states.
type MFAService struct {
	Store    store.Store
	Sessions store.Sessions
	Issuer   string // Issuer name shown in authenticator apps

	Now func() time.Time
}

func (s *MFAService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *MFAService) sessions() store.Sessions {
	if s.Sessions != nil {
		return s.Sessions
	}
	return s.Store.Sessions()
}

func (s *MFAService) pendingUser(ctx context.Context, sess domain.Session) (domain.User, error) {
	id := sess.PendingUserID()
	if id == "" {
		return domain.User{}, ErrNotAuthenticated
	}
	u, err := s.Store.Users().GetUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotAuthenticated
	}
	return u, mapStoreErr(err)
}

// Generate returns the user's TOTP secret, creating and storing one on the
// first call. Only allowed while the session is in the setup state.
func (s *MFAService) Generate(ctx context.Context, sess domain.Session) (SecondFactorSetup, error) {
	if sess.State != domain.SessionSetupSecondFactor {
		return SecondFactorSetup{}, ErrSecondFactorState
	}
	u, err := s.pendingUser(ctx, sess)
	if err != nil {
		return SecondFactorSetup{}, err
	}

	opts := totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: u.Email,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	}
	if u.MFASecret != nil && *u.MFASecret != "" {
		raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(*u.MFASecret)
		if err != nil {
			return SecondFactorSetup{}, fmt.Errorf("decode stored TOTP secret: %w", err)
		}
		opts.Secret = raw
	}

	key, err := totp.Generate(opts)
	if err != nil {
		return SecondFactorSetup{}, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	if u.MFASecret == nil || *u.MFASecret != key.Secret() {
		if err := s.Store.Users().UpdateMFASecret(ctx, u.ID, key.Secret()); err != nil {
			return SecondFactorSetup{}, mapStoreErr(err)
		}
	}

	qr, err := qrDataURL(key)
	if err != nil {
		return SecondFactorSetup{}, err
	}

	return SecondFactorSetup{Secret: key.Secret(), URL: key.URL(), QRCode: qr}, nil
}

func qrDataURL(key *otp.Key) (string, error) {
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return "", fmt.Errorf("render QR code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode QR code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Enable finishes enrolment: the code must match the stored secret. The
// session becomes verified and is bound to the user.
func (s *MFAService) Enable(ctx context.Context, sess domain.Session, code string) (domain.Session, error) {
	if sess.State != domain.SessionSetupSecondFactor {
		return sess, ErrSecondFactorState
	}
	if err := s.checkAttempts(ctx, sess, "enable"); err != nil {
		return sess, err
	}
	u, err := s.pendingUser(ctx, sess)
	if err != nil {
		return sess, err
	}
	if u.MFASecret == nil || *u.MFASecret == "" {
		return sess, ErrSecondFactorState
	}

	if !s.validCode(code, *u.MFASecret) {
		return s.recordFailure(ctx, sess, "enable")
	}

	if err := s.Store.Users().EnableMFA(ctx, u.ID); err != nil {
		return sess, mapStoreErr(err)
	}
	return s.markVerified(ctx, sess, u, "enable")
}

// Verify checks a login's second factor. A wrong code counts a failed
// attempt and leaves the session pending, until MaxSecondFactorAttempts
// is reached and the session is deleted.
func (s *MFAService) Verify(ctx context.Context, sess domain.Session, code string) (domain.Session, error) {
	if sess.State != domain.SessionPendingSecondFactor {
		return sess, ErrSecondFactorState
	}
	if err := s.checkAttempts(ctx, sess, "verify"); err != nil {
		return sess, err
	}
	u, err := s.pendingUser(ctx, sess)
	if err != nil {
		return sess, err
	}
	if !u.HasSecondFactor() || u.MFASecret == nil {
		return sess, ErrSecondFactorState
	}

	if !s.validCode(code, *u.MFASecret) {
		return s.recordFailure(ctx, sess, "verify")
	}
	return s.markVerified(ctx, sess, u, "verify")
}

// Disable removes the user's second factor. The current session stays
// verified; the next login goes through setup again.
func (s *MFAService) Disable(ctx context.Context, sess domain.Session) error {
	if !sess.Verified() {
		return ErrNotAuthenticated
	}
	if err := s.Store.Users().DisableMFA(ctx, sess.UserID); err != nil {
		return mapStoreErr(err)
	}
	slogx.FromContext(ctx).Info("second factor disabled", "user_id", sess.UserID)
	return nil
}

func (s *MFAService) validCode(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, s.now(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func (s *MFAService) recordFailure(ctx context.Context, sess domain.Session, step string) (domain.Session, error) {
	metrics.AuthAttempts.WithLabelValues(step, metrics.Rejected).Inc()
	sess.FailedAttempts++
	if sess.FailedAttempts >= MaxSecondFactorAttempts {
		return sess, s.discard(ctx, sess, step)
	}
	if err := s.sessions().UpdateSession(ctx, sess); err != nil {
		return sess, mapStoreErr(err)
	}
	slogx.FromContext(ctx).Warn("second factor rejected",
		"user_id", sess.PendingUserID(),
		"step", step,
		"failed_attempts", sess.FailedAttempts,
	)
	return sess, ErrInvalidCode
}

// checkAttempts refuses a session that already used up its attempts.
func (s *MFAService) checkAttempts(ctx context.Context, sess domain.Session, step string) error {
	if sess.FailedAttempts < MaxSecondFactorAttempts {
		return nil
	}
	return s.discard(ctx, sess, step)
}

// discard deletes a session that hit the attempt limit.
func (s *MFAService) discard(ctx context.Context, sess domain.Session, step string) error {
	if err := s.sessions().DeleteSession(ctx, sess.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return mapStoreErr(err)
	}
	metrics.AuthAttempts.WithLabelValues(step, metrics.Locked).Inc()
	slogx.FromContext(ctx).Warn("second factor attempts exhausted, session deleted",
		"user_id", sess.PendingUserID(),
		"step", step,
		"failed_attempts", sess.FailedAttempts,
	)
	return ErrTooManyAttempts
}

func (s *MFAService) markVerified(ctx context.Context, sess domain.Session, u domain.User, step string) (domain.Session, error) {
	sess.State = domain.SessionVerified
	sess.UserID = u.ID
	sess.TempUserID = ""
	if err := s.sessions().UpdateSession(ctx, sess); err != nil {
		return sess, mapStoreErr(err)
	}
	metrics.AuthAttempts.WithLabelValues(step, metrics.OK).Inc()
	slogx.FromContext(ctx).Info("session verified", "user_id", u.ID, "step", step)
	return sess, nil
}
