package http

import (
	"net/http"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/domain"
	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/service"
	"github.com/aussiebroadwan/zerohunger/pkg/httpx"
	"github.com/aussiebroadwan/zerohunger/pkg/slogx"
	"github.com/aussiebroadwan/zerohunger/pkg/zhclient"
)

// SecondFactorHandler serves the 2FA steps that follow a login.
type SecondFactorHandler struct {
	MFAService  *service.MFAService
	UserService *service.UserService
}

// roleOf looks up the role for the Next hint. Failures only cost the hint.
func (h *SecondFactorHandler) roleOf(r *http.Request, sess domain.Session) domain.Role {
	u, err := h.UserService.GetUserByID(r.Context(), sess.PendingUserID())
	if err != nil {
		slogx.FromContext(r.Context()).Warn("failed to load session user", "err", err)
		return ""
	}
	return u.Role
}

// HandleGenerate handles GET /2fa/generate
//
//	@Summary		Start 2FA enrolment
//	@Description	Returns the TOTP secret, otpauth URL and a PNG QR code. Only valid while the session is in setup_second_factor.
//	@Tags			Second Factor
//	@Security		SessionCookie
//	@Produce		json
//	@Success		200	{object}	httpx.Envelope{data=zhclient.SecondFactorSetup}
//	@Failure		401	{object}	httpx.Envelope	"No session"
//	@Failure		409	{object}	httpx.Envelope	"Session is not in setup state"
//	@Router			/2fa/generate [get]
func (h *SecondFactorHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())

	setup, err := h.MFAService.Generate(r.Context(), sess)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteOK(w, http.StatusOK, "Scan the code with your authenticator app", zhclient.SecondFactorSetup{
		Secret:     setup.Secret,
		OTPAuthURL: setup.URL,
		QRCode:     setup.QRCode,
	})
}

// HandleEnable handles POST /2fa/enable
//
//	@Summary		Finish 2FA enrolment
//	@Description	Validates the first code, enables 2FA and verifies the session.
//	@Tags			Second Factor
//	@Security		SessionCookie
//	@Accept			json,x-www-form-urlencoded
//	@Produce		json
//	@Param			request	body		zhclient.CodeRequest	true	"TOTP code"
//	@Success		200		{object}	httpx.Envelope{data=zhclient.SessionState}
//	@Failure		400		{object}	httpx.Envelope	"Invalid code"
//	@Failure		401		{object}	httpx.Envelope	"Too many wrong codes, session ended"
//	@Failure		409		{object}	httpx.Envelope	"Session is not in setup state"
//	@Router			/2fa/enable [post]
func (h *SecondFactorHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())

	var req zhclient.CodeRequest
	if err := httpx.DecodeBody(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}

	sess, err := h.MFAService.Enable(r.Context(), sess, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	state := stateOf(sess, h.roleOf(r, sess))
	respond(w, r, http.StatusOK, "Two-factor authentication enabled", state, state.Next)
}

// HandleState handles GET /2fa/verify
//
//	@Summary		Current session state
//	@Tags			Second Factor
//	@Security		SessionCookie
//	@Produce		json
//	@Success		200	{object}	httpx.Envelope{data=zhclient.SessionState}
//	@Failure		401	{object}	httpx.Envelope	"No session"
//	@Router			/2fa/verify [get]
func (h *SecondFactorHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())
	httpx.WriteOK(w, http.StatusOK, "", stateOf(sess, h.roleOf(r, sess)))
}

// HandleVerify handles POST /2fa/verify
//
//	@Summary		Verify the second factor
//	@Description	Checks a TOTP code for a session in pending_second_factor. Wrong codes count as failed attempts.
//	@Tags			Second Factor
//	@Security		SessionCookie
//	@Accept			json,x-www-form-urlencoded
//	@Produce		json
//	@Param			request	body		zhclient.CodeRequest	true	"TOTP code"
//	@Success		200		{object}	httpx.Envelope{data=zhclient.SessionState}
//	@Failure		400		{object}	httpx.Envelope	"Invalid code"
//	@Failure		401		{object}	httpx.Envelope	"Too many wrong codes, session ended"
//	@Failure		409		{object}	httpx.Envelope	"Session is not awaiting a code"
//	@Router			/2fa/verify [post]
func (h *SecondFactorHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())

	var req zhclient.CodeRequest
	if err := httpx.DecodeBody(r, &req); err != nil {
		badRequest(w, r, err)
		return
	}

	sess, err := h.MFAService.Verify(r.Context(), sess, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	state := stateOf(sess, h.roleOf(r, sess))
	respond(w, r, http.StatusOK, "Verified", state, state.Next)
}

// HandleDisable handles POST /2fa/disable
//
//	@Summary		Disable 2FA
//	@Description	Clears the TOTP secret. The current session stays verified; the next login enrols again.
//	@Tags			Second Factor
//	@Security		SessionCookie
//	@Produce		json
//	@Success		200	{object}	httpx.Envelope
//	@Failure		401	{object}	httpx.Envelope	"Not authenticated"
//	@Router			/2fa/disable [post]
func (h *SecondFactorHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())

	if err := h.MFAService.Disable(r.Context(), sess); err != nil {
		writeServiceError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, "Two-factor authentication disabled", nil, "/dashboard")
}
