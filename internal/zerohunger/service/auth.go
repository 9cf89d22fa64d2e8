package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/metrics"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/store"
	"github.com/aussiebroadwan/zerohunger/pkg/cryptox"
	"github.com/aussiebroadwan/zerohunger/pkg/idx"
	"github.com/aussiebroadwan/zerohunger/pkg/jwtx"
	"github.com/aussiebroadwan/zerohunger/pkg/slogx"
)

const minPasswordLength = 4

// SignupInput is the registration form.
type SignupInput struct {
	FirstName       string `json:"first_name" validate:"notblank"`
	LastName        string `json:"last_name" validate:"notblank"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=4"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"required,role"`
	Gender          string `json:"gender"`
	Address         string `json:"address"`
	Phone           string `json:"phone"`
}

// LoginResult is what the transport needs to hand a browser its session.
type LoginResult struct {
	Token   string // signed session token for the cookie
	Session domain.Session
	User    domain.User
}

// AuthService owns the login half of the session gate. Sessions may live in
// a different backend from users, so they are injected separately.
type AuthService struct {
	Store    store.Store
	Sessions store.Sessions
	Signer   jwtx.Signer
	Verifier jwtx.Verifier
	Issuer   string
	TTL      time.Duration

	// Now is overridable for tests.
	Now func() time.Time
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *AuthService) sessions() store.Sessions {
	if s.Sessions != nil {
		return s.Sessions
	}
	return s.Store.Sessions()
}

func (s *AuthService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return jwtx.DefaultSessionTTL
}

// Signup registers a new user. The role is fixed from here on.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (domain.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validateStruct(in); err != nil {
		return domain.User{}, err
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return domain.User{}, invalidField("role", err.Error())
	}

	hash, err := cryptox.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	u := domain.User{
		ID:           idx.New().String(),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		Gender:       in.Gender,
		Address:      in.Address,
		Phone:        in.Phone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, mapStoreErr(err)
	}

	slogx.FromContext(ctx).Info("user signed up", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// Login checks credentials and opens a session that still needs the second
// factor. It never returns a verified session.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	u, err := s.Store.Users().GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		metrics.AuthAttempts.WithLabelValues("login", metrics.Rejected).Inc()
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, mapStoreErr(err)
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		metrics.AuthAttempts.WithLabelValues("login", metrics.Rejected).Inc()
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			slogx.FromContext(ctx).Warn("stored password hash unreadable", "user_id", u.ID, "error", err)
		}
		return LoginResult{}, ErrInvalidCredentials
	}

	// Imported bcrypt hashes are upgraded on the first successful login.
	if cryptox.NeedsRehash(u.PasswordHash) {
		if hash, err := cryptox.HashPassword(password); err == nil {
			if err := s.Store.Users().UpdatePasswordHash(ctx, u.ID, hash); err != nil {
				slogx.FromContext(ctx).Warn("failed to upgrade password hash", "user_id", u.ID, "error", err)
			}
		}
	}

	state := domain.SessionSetupSecondFactor
	if u.HasSecondFactor() {
		state = domain.SessionPendingSecondFactor
	}

	sid, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return LoginResult{}, fmt.Errorf("generate session id: %w", err)
	}

	now := s.now()
	sess := domain.Session{
		ID:         cryptox.FingerprintToken(sid),
		TempUserID: u.ID,
		State:      state,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl()),
	}
	if err := s.sessions().CreateSession(ctx, sess); err != nil {
		return LoginResult{}, mapStoreErr(err)
	}

	token, err := s.Signer.Sign(jwtx.NewSessionClaims(sid, s.Issuer, s.ttl(), now))
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign session token: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("login", metrics.OK).Inc()
	slogx.FromContext(ctx).Info("login accepted", "user_id", u.ID, "state", state)
	return LoginResult{Token: token, Session: sess, User: u}, nil
}

// Resolve maps a session token onto its stored session. Any failure means
// the caller is not authenticated.
func (s *AuthService) Resolve(ctx context.Context, token string) (domain.Session, error) {
	if token == "" {
		return domain.Session{}, ErrNotAuthenticated
	}
	claims, err := s.Verifier.Verify(token)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}

	sess, err := s.sessions().GetSession(ctx, cryptox.FingerprintToken(claims.SID))
	if errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, ErrNotAuthenticated
	}
	if err != nil {
		return domain.Session{}, mapStoreErr(err)
	}
	if sess.Expired(s.now()) {
		return domain.Session{}, ErrNotAuthenticated
	}
	return sess, nil
}

// Authorize admits a verified session whose user currently holds required.
// An empty required role admits any verified user. The user is always
// re-read so the session never caches the role.
func (s *AuthService) Authorize(ctx context.Context, sess domain.Session, required domain.Role) (domain.User, error) {
	if !sess.Verified() || sess.Expired(s.now()) {
		return domain.User{}, ErrNotAuthenticated
	}

	u, err := s.Store.Users().GetUserByID(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotAuthenticated
	}
	if err != nil {
		return domain.User{}, mapStoreErr(err)
	}

	if required != "" && u.Role != required {
		return u, ErrWrongRole
	}
	return u, nil
}

// Logout forgets the session. Logging out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, sess domain.Session) error {
	if sess.ID == "" {
		return nil
	}
	return mapStoreErr(s.sessions().DeleteSession(ctx, sess.ID))
}
