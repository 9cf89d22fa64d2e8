package zhclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvelopeDecoding(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"message":"invalid email or password"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "zh_session", Value: "tok", Path: "/"})
		_, _ = w.Write([]byte(`{"success":true,"data":{"state":"setup_second_factor","next":"/2fa/generate"}}`))
	})
	mux.HandleFunc("GET /dashboard", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("zh_session")
		if err != nil || c.Value != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"message":"not authenticated"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"role":"donor","donations":{"pending":2}}}`))
	})
	mux.HandleFunc("POST /auth/signup", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"message":"validation failed","data":{"fields":{"email":"email must be a valid email address"}}}`))
	})
	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","version":"v1"}`))
	})
	mux.HandleFunc("GET /boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := New(srv.URL + "/")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Dashboard(ctx)
	require.True(t, IsUnauthorized(err))

	_, err = c.Login(ctx, "a@example.com", "wrong")
	require.True(t, IsUnauthorized(err))
	require.Contains(t, err.Error(), "invalid email or password")

	state, err := c.Login(ctx, "a@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, StateSetupSecondFactor, state.State)

	dash, err := c.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, "donor", dash.Role)
	require.EqualValues(t, 2, dash.Donations["pending"])

	_, err = c.Signup(ctx, SignupRequest{Email: "nope"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.Contains(t, apiErr.Fields, "email")
	require.Contains(t, apiErr.Error(), "email: ")

	live, err := c.Liveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "v1", live.Version)

	err = c.do(ctx, http.MethodGet, "/boom", nil, nil)
	require.Equal(t, http.StatusBadGateway, StatusOf(err))
	require.Contains(t, err.Error(), "upstream down")

	require.Zero(t, StatusOf(context.Canceled))
}
