package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/service"
	"github.com/aussiebroadwan/zerohunger/pkg/httpx"
	"github.com/aussiebroadwan/zerohunger/pkg/idx"
	"github.com/aussiebroadwan/zerohunger/pkg/slogx"
)

// statusFor maps the service error taxonomy onto HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidCode),
		errors.Is(err, service.ErrInvalidTransition):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrNotAuthenticated),
		errors.Is(err, service.ErrTooManyAttempts):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrWrongRole):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrSecondFactorState):
		return http.StatusConflict
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// messageFor keeps driver details out of responses.
func messageFor(err error, code int) string {
	switch code {
	case http.StatusInternalServerError:
		return "Internal server error"
	case http.StatusServiceUnavailable:
		return service.ErrStoreUnavailable.Error()
	case http.StatusUnauthorized:
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			return service.ErrInvalidCredentials.Error()
		case errors.Is(err, service.ErrTooManyAttempts):
			return service.ErrTooManyAttempts.Error()
		}
		return service.ErrNotAuthenticated.Error()
	}

	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return service.ErrValidation.Error()
	}
	return err.Error()
}

// writeServiceError answers err as a JSON envelope, or as a redirect with a
// flash message for browsers.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := messageFor(err, code)

	log := slogx.FromContext(r.Context())
	if code >= http.StatusInternalServerError {
		log.Error("request failed", "status", code, "err", err)
	} else {
		log.Debug("request rejected", "status", code, "err", err)
	}

	if httpx.WantsHTML(r) {
		httpx.Redirect(w, r, errorLocation(r, code), "error", msg)
		return
	}

	var ve *service.ValidationError
	if errors.As(err, &ve) {
		httpx.WriteJSON(w, code, httpx.Envelope{
			Success: false,
			Message: msg,
			Data:    map[string]any{"fields": ve.Fields},
		})
		return
	}
	httpx.WriteError(w, code, msg)
}

// errorLocation sends unauthenticated browsers to login and everyone else
// back where they came from.
func errorLocation(r *http.Request, code int) string {
	if code == http.StatusUnauthorized {
		return "/auth/login"
	}
	if back, ok := sameHostPath(r); ok {
		return back
	}
	return "/dashboard"
}

// sameHostPath returns the Referer as a local path when it points back at
// this host.
func sameHostPath(r *http.Request) (string, bool) {
	ref := r.Referer()
	if ref == "" {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil || u.User != nil {
		return "", false
	}
	if u.Host != "" && u.Host != r.Host {
		return "", false
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") || strings.Contains(u.Path, "\\") {
		return "", false
	}
	return u.RequestURI(), true
}

// respond writes a success envelope, or redirects browsers to next with a
// success flash. An empty next always answers JSON.
func respond(w http.ResponseWriter, r *http.Request, code int, msg string, data any, next string) {
	if next != "" && httpx.WantsHTML(r) {
		httpx.Redirect(w, r, next, "success", msg)
		return
	}
	httpx.WriteOK(w, code, msg, data)
}

// badRequest reports a body that could not be decoded.
func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	slogx.FromContext(r.Context()).Warn("failed to parse request", "err", err)
	if httpx.WantsHTML(r) {
		httpx.Redirect(w, r, errorLocation(r, http.StatusBadRequest), "error", "Invalid request body")
		return
	}
	httpx.WriteError(w, http.StatusBadRequest, "Invalid request body")
}

// pathID reads an id path parameter. Anything that is not a well formed id
// is answered as not found without touching the store.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id, err := idx.Parse(r.PathValue(name))
	if err != nil {
		writeServiceError(w, r, fmt.Errorf("%w: %s %q", service.ErrNotFound, name, r.PathValue(name)))
		return "", false
	}
	return id.String(), true
}
