package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/service"
	"github.com/aussiebroadwan/zerohunger/pkg/httpx"
	"github.com/aussiebroadwan/zerohunger/pkg/zhclient"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client(t)
	ctx := context.Background()

	live, err := c.Liveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)

	ready, err := c.Readiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Signer)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionGate(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	t.Run("no session", func(t *testing.T) {
		_, err := srv.client(t).Dashboard(ctx)
		require.True(t, zhclient.IsUnauthorized(err), err)
	})

	t.Run("login alone is not enough", func(t *testing.T) {
		c := srv.client(t)
		_, err := c.Signup(ctx, zhclient.SignupRequest{
			FirstName: "Half", LastName: "Way", Email: "half@example.com",
			Password: "secret", ConfirmPassword: "secret", Role: "donor",
		})
		require.NoError(t, err)

		state, err := c.Login(ctx, "half@example.com", "secret")
		require.NoError(t, err)
		require.Equal(t, zhclient.StateSetupSecondFactor, state.State)
		require.Equal(t, "/2fa/generate", state.Next)

		_, err = c.Dashboard(ctx)
		require.True(t, zhclient.IsUnauthorized(err), err)

		// Verify belongs to users who already enrolled.
		_, err = c.VerifySecondFactor(ctx, "123456")
		require.True(t, zhclient.IsConflict(err), err)
	})

	t.Run("wrong role", func(t *testing.T) {
		donor, _ := srv.signup(t, "donor", "donor@example.com")
		_, err := donor.AdminPending(ctx)
		require.True(t, zhclient.IsForbidden(err), err)
	})

	t.Run("bad credentials", func(t *testing.T) {
		_, err := srv.client(t).Login(ctx, "donor@example.com", "nope")
		require.True(t, zhclient.IsUnauthorized(err), err)
	})

	t.Run("logout ends the session", func(t *testing.T) {
		c, _ := srv.signup(t, "collector", "leaving@example.com")
		_, err := c.Dashboard(ctx)
		require.NoError(t, err)

		require.NoError(t, c.Logout(ctx))
		_, err = c.Dashboard(ctx)
		require.True(t, zhclient.IsUnauthorized(err), err)

		require.NoError(t, c.Logout(ctx))
	})

	t.Run("second login asks for the code", func(t *testing.T) {
		c, _ := srv.signup(t, "agent", "again@example.com")
		require.NoError(t, c.Logout(ctx))

		state, err := c.Login(ctx, "again@example.com", "secret")
		require.NoError(t, err)
		require.Equal(t, zhclient.StatePendingSecondFactor, state.State)

		_, err = c.GenerateSecondFactor(ctx)
		require.True(t, zhclient.IsConflict(err), err)
	})

	t.Run("too many wrong codes end the session", func(t *testing.T) {
		c, _ := srv.signup(t, "donor", "guesser@example.com")
		require.NoError(t, c.Logout(ctx))
		_, err := c.Login(ctx, "guesser@example.com", "secret")
		require.NoError(t, err)

		for range service.MaxSecondFactorAttempts - 1 {
			_, err = c.VerifySecondFactor(ctx, "nodigit")
			require.True(t, zhclient.IsBadRequest(err), err)
		}
		_, err = c.VerifySecondFactor(ctx, "nodigit")
		require.True(t, zhclient.IsUnauthorized(err), err)

		_, err = c.SessionState(ctx)
		require.True(t, zhclient.IsUnauthorized(err), err)
	})
}

func TestSignupValidation(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, err := srv.client(t).Signup(ctx, zhclient.SignupRequest{
		FirstName: "A", LastName: "B", Email: "a@example.com",
		Password: "secret", ConfirmPassword: "other", Role: "donor",
	})
	require.True(t, zhclient.IsBadRequest(err), err)

	var apiErr *zhclient.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Contains(t, apiErr.Fields, "confirm_password")

	srv.signup(t, "donor", "taken@example.com")
	_, err = srv.client(t).Signup(ctx, zhclient.SignupRequest{
		FirstName: "A", LastName: "B", Email: "taken@example.com",
		Password: "secret", ConfirmPassword: "secret", Role: "admin",
	})
	require.True(t, zhclient.IsConflict(err), err)
}

func TestBrowsersAreRedirected(t *testing.T) {
	srv := newTestServer(t)

	noFollow := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/dashboard", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/html")

	resp, err := noFollow.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/auth/login", resp.Header.Get("Location"))

	var flash *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == httpx.FlashCookie {
			flash = c
		}
	}
	require.NotNil(t, flash)
	require.NotEmpty(t, flash.Value)
}

func TestErrorRedirectsStayOnSite(t *testing.T) {
	srv := newTestServer(t)
	admin, _ := srv.signup(t, "admin", "admin@example.com")

	browse := func(path, referer string) *http.Response {
		t.Helper()
		req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		require.NoError(t, err)
		req.Header.Set("Accept", "text/html")
		if referer != "" {
			req.Header.Set("Referer", referer)
		}
		resp, err := admin.HTTPClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	for _, ref := range []string{"https://evil.example/phish", "//evil.example/x", "javascript:alert(1)", ""} {
		resp := browse("/admin/donation/not-an-id", ref)
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		require.Equal(t, "/dashboard", resp.Header.Get("Location"), "referer %q", ref)
	}

	resp := browse("/admin/donation/not-an-id", srv.URL+"/admin/donations/pending?page=2")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/admin/donations/pending?page=2", resp.Header.Get("Location"))

	// The dashboard picks the flash up once.
	dashboardMessage := func() string {
		t.Helper()
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/dashboard", nil)
		require.NoError(t, err)
		req.Header.Set("Accept", "application/json")
		resp, err := admin.HTTPClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var env httpx.Envelope
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
		return env.Message
	}
	require.NotEmpty(t, dashboardMessage())
	require.Empty(t, dashboardMessage())
}

func TestMalformedPathIDsAreNotFound(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	admin, _ := srv.signup(t, "admin", "admin@example.com")

	_, err := admin.AdminDonation(ctx, "not-an-id")
	require.True(t, zhclient.IsNotFound(err), err)
	_, err = admin.Accept(ctx, "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3Z")
	require.True(t, zhclient.IsNotFound(err), err)
	_, err = admin.Location(ctx, "nobody")
	require.True(t, zhclient.IsNotFound(err), err)
}

func TestFormEncodedLogin(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "donor", "form@example.com")

	form := url.Values{"email": {"form@example.com"}, "password": {"secret"}}
	resp, err := http.Post(srv.URL+"/auth/login", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookie {
			found = true
			require.True(t, c.HttpOnly)
		}
	}
	require.True(t, found)
}

func TestDonationLifecycle(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	admin, _ := srv.signup(t, "admin", "admin@example.com")
	donor, _ := srv.signup(t, "donor", "donor@example.com")
	collector, _ := srv.signup(t, "collector", "collector@example.com")
	agentClient, agent := srv.signup(t, "agent", "agent@example.com")

	d, err := donor.Donate(ctx, zhclient.DonationRequest{
		FoodType:    "rice",
		Quantity:    10,
		CookingTime: "2026-10-15T11:30",
		Address:     "1 Main St",
		Phone:       "0400000000",
		Message:     "still warm",
	})
	require.NoError(t, err)
	require.Equal(t, "pending", d.Status)
	require.EqualValues(t, 10, d.OriginalQuantity)
	require.NotNil(t, d.CookingTime)

	pending, err := admin.AdminPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].Donor)
	require.Equal(t, "donor@example.com", pending[0].Donor.Email)

	// Collecting before acceptance is not allowed.
	_, err = collector.Collect(ctx, d.ID, 1)
	require.True(t, zhclient.IsBadRequest(err), err)

	_, err = admin.Accept(ctx, d.ID)
	require.NoError(t, err)

	res, err := collector.Collect(ctx, d.ID, 4)
	require.NoError(t, err)
	require.EqualValues(t, 6, res.Parent.Quantity)
	require.Equal(t, "accepted", res.Parent.Status)
	require.Equal(t, d.ID, res.Child.ParentID)
	require.EqualValues(t, 4, res.Child.Quantity)

	_, err = collector.Collect(ctx, d.ID, 7)
	require.True(t, zhclient.IsBadRequest(err), err)

	res, err = collector.Collect(ctx, d.ID, 6)
	require.NoError(t, err)
	require.Equal(t, "collected", res.Parent.Status)
	require.EqualValues(t, 0, res.Parent.Quantity)

	previous, err := collector.CollectorPrevious(ctx)
	require.NoError(t, err)
	require.Len(t, previous, 2)

	donorPrev, err := donor.DonorPrevious(ctx)
	require.NoError(t, err)
	require.Len(t, donorPrev, 1)

	t.Run("assign and agent collect", func(t *testing.T) {
		d2, err := donor.Donate(ctx, zhclient.DonationRequest{FoodType: "bread", Quantity: 3, Address: "2 Side St", Phone: "0400000001"})
		require.NoError(t, err)
		_, err = admin.Accept(ctx, d2.ID)
		require.NoError(t, err)

		agents, err := admin.Agents(ctx)
		require.NoError(t, err)
		require.Len(t, agents, 1)

		_, err = admin.Assign(ctx, d2.ID, zhclient.AssignRequest{AgentID: agents[0].ID, Message: "back door"})
		require.NoError(t, err)

		mine, err := agentClient.AgentPending(ctx)
		require.NoError(t, err)
		require.Len(t, mine, 1)
		require.Equal(t, "back door", mine[0].AdminToAgentMsg)

		got, err := agentClient.AgentCollection(ctx, d2.ID)
		require.NoError(t, err)
		require.Equal(t, agent.ID, got.Agent.ID)

		done, err := agentClient.AgentCollect(ctx, d2.ID)
		require.NoError(t, err)
		require.Equal(t, "collected", done.Status)
		require.NotNil(t, done.CollectionTime)
	})

	t.Run("reject and delete", func(t *testing.T) {
		d3, err := donor.Donate(ctx, zhclient.DonationRequest{FoodType: "soup", Quantity: 1, Address: "3 Side St", Phone: "0400000002"})
		require.NoError(t, err)

		_, err = admin.Reject(ctx, d3.ID)
		require.NoError(t, err)
		_, err = admin.Accept(ctx, d3.ID)
		require.True(t, zhclient.IsBadRequest(err), err)

		require.NoError(t, donor.DeleteDonation(ctx, d3.ID))
		_, err = admin.AdminDonation(ctx, d3.ID)
		require.True(t, zhclient.IsNotFound(err), err)
	})

	t.Run("dashboards", func(t *testing.T) {
		dash, err := admin.Dashboard(ctx)
		require.NoError(t, err)
		require.Equal(t, "admin", dash.Role)
		require.EqualValues(t, 1, dash.Users["donor"])
		require.EqualValues(t, 2, dash.Donations["collected"])

		dash, err = collector.Dashboard(ctx)
		require.NoError(t, err)
		require.NotNil(t, dash.Collected)
		require.EqualValues(t, 2, *dash.Collected)
	})

	require.NotEmpty(t, srv.events.Events())
}

func TestFeedbackOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	admin, _ := srv.signup(t, "admin", "admin@example.com")
	donor, _ := srv.signup(t, "donor", "donor@example.com")

	sent, err := donor.SendFeedback(ctx, zhclient.FeedbackRequest{Message: "pickup was late"})
	require.NoError(t, err)
	require.Len(t, sent, 1)

	_, err = donor.SendFeedback(ctx, zhclient.FeedbackRequest{Message: "   "})
	require.True(t, zhclient.IsBadRequest(err), err)

	inbox, err := admin.Feedback(ctx)
	require.NoError(t, err)
	require.Len(t, inbox.Received, 1)
	require.Equal(t, "donor@example.com", inbox.Received[0].Sender.Email)

	_, err = donor.Reply(ctx, sent[0].ID, "not mine to answer")
	require.True(t, zhclient.IsForbidden(err), err)

	reply, err := admin.Reply(ctx, sent[0].ID, "sorry, fixed")
	require.NoError(t, err)
	require.Equal(t, "replied", reply.Status)

	mine, err := donor.Feedback(ctx)
	require.NoError(t, err)
	require.Len(t, mine.Sent, 1)
	require.Equal(t, "replied", mine.Sent[0].Status)
	require.Len(t, mine.Received, 1)
	require.Equal(t, "sorry, fixed", mine.Received[0].Reply)
}

func TestLocationFeed(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	admin, _ := srv.signup(t, "admin", "admin@example.com")
	agent, agentUser := srv.signup(t, "agent", "agent@example.com")

	_, err := agent.UpdateLocation(ctx, 91, 0)
	require.True(t, zhclient.IsBadRequest(err), err)

	_, err = admin.UpdateLocation(ctx, 1, 1)
	require.True(t, zhclient.IsForbidden(err), err)

	_, err = agent.UpdateLocation(ctx, -33.86, 151.2)
	require.NoError(t, err)

	loc, err := admin.Location(ctx, agentUser.ID)
	require.NoError(t, err)
	require.InDelta(t, -33.86, loc.Latitude, 1e-9)

	_, err = admin.Location(ctx, "nobody")
	require.True(t, zhclient.IsNotFound(err), err)

	t.Run("websocket", func(t *testing.T) {
		base, err := url.Parse(srv.URL)
		require.NoError(t, err)

		header := http.Header{}
		for _, c := range admin.HTTPClient.Jar.Cookies(base) {
			header.Add("Cookie", c.String())
		}

		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/locations"
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
		require.NoError(t, err)
		defer resp.Body.Close()
		defer conn.Close()

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var first []zhclient.Location
		require.NoError(t, conn.ReadJSON(&first))
		require.Len(t, first, 1)
		require.Equal(t, agentUser.ID, first[0].AgentID)

		_, err = agent.UpdateLocation(ctx, -33.87, 151.21)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			var next []zhclient.Location
			if err := conn.ReadJSON(&next); err != nil || len(next) != 1 {
				return false
			}
			return next[0].Latitude < -33.865
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("websocket requires admin", func(t *testing.T) {
		base, err := url.Parse(srv.URL)
		require.NoError(t, err)
		header := http.Header{}
		for _, c := range agent.HTTPClient.Jar.Cookies(base) {
			header.Add("Cookie", c.String())
		}

		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/locations"
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
		require.Error(t, err)
		require.NotNil(t, resp)
		defer resp.Body.Close()
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestProfileUpdate(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	c, _ := srv.signup(t, "donor", "me@example.com")
	u, err := c.UpdateProfile(ctx, zhclient.ProfileRequest{FirstName: "New", LastName: "Name", Phone: "0411111111"})
	require.NoError(t, err)
	require.Equal(t, "New", u.FirstName)
	require.Equal(t, "donor", u.Role)
	require.True(t, u.MFAEnabled)

	_, err = c.UpdateProfile(ctx, zhclient.ProfileRequest{FirstName: " ", LastName: "Name"})
	require.True(t, zhclient.IsBadRequest(err), err)
}
