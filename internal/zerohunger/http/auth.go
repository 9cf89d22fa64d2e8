package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/service"
	"github.com/aussiebroadwan/zerohunger/pkg/httpx"
	"github.com/aussiebroadwan/zerohunger/pkg/slogx"
	"github.com/aussiebroadwan/zerohunger/pkg/zhclient"
)

// AuthHandler serves signup, login and logout.
type AuthHandler struct {
	AuthService  *service.AuthService
	CookieSecure bool
	TTL          time.Duration
}

// HandleSignup handles POST /auth/signup
//
//	@Summary		Register a user
//	@Description	Creates a user with a fixed role. Passwords must match and be at least 4 characters.
//	@Tags			Auth
//	@Accept			json,x-www-form-urlencoded
//	@Produce		json
//	@Param			request	body		zhclient.SignupRequest	true	"Signup form"
//	@Success		201		{object}	httpx.Envelope{data=zhclient.User}
//	@Failure		400		{object}	httpx.Envelope	"Validation failed"
//	@Failure		409		{object}	httpx.Envelope	"Email already registered"
//	@Router			/auth/signup [post]
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req zhclient.SignupRequest
	if err := httpx.DecodeBody(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}

	u, err := h.AuthService.Signup(r.Context(), service.SignupInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Role:            req.Role,
		Gender:          req.Gender,
		Address:         req.Address,
		Phone:           req.Phone,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, "Account created, please log in", toUser(u), "/auth/login")
}

// HandleLogin handles POST /auth/login
//
//	@Summary		Log in
//	@Description	Checks credentials and sets the session cookie. The session still needs the second factor:
//	@Description	setup_second_factor for users without 2FA, pending_second_factor otherwise.
//	@Tags			Auth
//	@Accept			json,x-www-form-urlencoded
//	@Produce		json
//	@Param			request	body		zhclient.LoginRequest	true	"Credentials"
//	@Success		200		{object}	httpx.Envelope{data=zhclient.SessionState}
//	@Failure		401		{object}	httpx.Envelope	"Invalid email or password"
//	@Failure		429		{string}	string			"Too many requests"
//	@Router			/auth/login [post]
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req zhclient.LoginRequest
	if err := httpx.DecodeBody(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}

	res, err := h.AuthService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   int(h.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	state := stateOf(res.Session, res.User.Role)
	respond(w, r, http.StatusOK, "Logged in, second factor required", state, state.Next)
}

// HandleLogout handles GET /auth/logout
//
//	@Summary		Log out
//	@Description	Forgets the session and clears the cookie. Safe to call without a session.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	httpx.Envelope
//	@Router			/auth/logout [get]
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if sess, err := h.AuthService.Resolve(ctx, sessionToken(r)); err == nil {
		if err := h.AuthService.Logout(ctx, sess); err != nil {
			slogx.FromContext(ctx).Warn("failed to delete session", "err", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	respond(w, r, http.StatusOK, "Logged out", nil, "/auth/login")
}
