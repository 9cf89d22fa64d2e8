package zhclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// Client talks to one Zero Hunger server as one user at a time.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New returns a client with its own cookie jar.
func New(baseURL string) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
			// Surface redirects instead of following them; the API answers
			// JSON clients directly.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// do sends body as JSON and decodes the envelope's data into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if resp.StatusCode >= 300 || !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: env.Message}
		if len(env.Data) > 0 {
			var fields struct {
				Fields map[string]string `json:"fields"`
			}
			if json.Unmarshal(env.Data, &fields) == nil {
				apiErr.Fields = fields.Fields
			}
		}
		return apiErr
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// getRaw fetches an endpoint that does not use the envelope.
func (c *Client) getRaw(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// ============================================================================
// Health
// ============================================================================

func (c *Client) Liveness(ctx context.Context) (*HealthResponse, error) {
	var h HealthResponse
	if _, err := c.getRaw(ctx, "/livez", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Readiness returns the health report even when the server is degraded;
// check Status.
func (c *Client) Readiness(ctx context.Context) (*HealthResponse, error) {
	var h HealthResponse
	if _, err := c.getRaw(ctx, "/readyz", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ============================================================================
// Auth
// ============================================================================

func (c *Client) Signup(ctx context.Context, req SignupRequest) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodPost, "/auth/signup", req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login starts a session. The returned state says which second factor step
// follows.
func (c *Client) Login(ctx context.Context, email, password string) (*SessionState, error) {
	var s SessionState
	if err := c.do(ctx, http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: password}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/auth/logout", nil, nil)
}

func (c *Client) GenerateSecondFactor(ctx context.Context) (*SecondFactorSetup, error) {
	var s SecondFactorSetup
	if err := c.do(ctx, http.MethodGet, "/2fa/generate", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) EnableSecondFactor(ctx context.Context, code string) (*SessionState, error) {
	var s SessionState
	if err := c.do(ctx, http.MethodPost, "/2fa/enable", CodeRequest{Code: code}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) VerifySecondFactor(ctx context.Context, code string) (*SessionState, error) {
	var s SessionState
	if err := c.do(ctx, http.MethodPost, "/2fa/verify", CodeRequest{Code: code}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) SessionState(ctx context.Context) (*SessionState, error) {
	var s SessionState
	if err := c.do(ctx, http.MethodGet, "/2fa/verify", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) DisableSecondFactor(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/2fa/disable", nil, nil)
}

// ============================================================================
// Users
// ============================================================================

func (c *Client) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	if err := c.do(ctx, http.MethodGet, "/dashboard", nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) UpdateProfile(ctx context.Context, req ProfileRequest) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodPut, "/profile", req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Agents(ctx context.Context) ([]UserSummary, error) {
	var out []UserSummary
	err := c.do(ctx, http.MethodGet, "/admin/agents", nil, &out)
	return out, err
}

// ============================================================================
// Donations
// ============================================================================

func (c *Client) donation(ctx context.Context, method, path string, body any) (*Donation, error) {
	var d Donation
	if err := c.do(ctx, method, path, body, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) donations(ctx context.Context, path string) ([]Donation, error) {
	var out []Donation
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) Donate(ctx context.Context, req DonationRequest) (*Donation, error) {
	return c.donation(ctx, http.MethodPost, "/donor/donate", req)
}

func (c *Client) DonorPending(ctx context.Context) ([]Donation, error) {
	return c.donations(ctx, "/donor/donations/pending")
}

func (c *Client) DonorPrevious(ctx context.Context) ([]Donation, error) {
	return c.donations(ctx, "/donor/donations/previous")
}

func (c *Client) DeleteDonation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/donor/donations/"+id, nil, nil)
}

func (c *Client) AdminPending(ctx context.Context) ([]Donation, error) {
	return c.donations(ctx, "/admin/donations/pending")
}

func (c *Client) AdminCollected(ctx context.Context) ([]Donation, error) {
	return c.donations(ctx, "/admin/donations/collected")
}

func (c *Client) AdminDonation(ctx context.Context, id string) (*Donation, error) {
	return c.donation(ctx, http.MethodGet, "/admin/donation/"+id, nil)
}

func (c *Client) Accept(ctx context.Context, id string) (*Donation, error) {
	return c.donation(ctx, http.MethodGet, "/admin/donation/accept/"+id, nil)
}

func (c *Client) Reject(ctx context.Context, id string) (*Donation, error) {
	return c.donation(ctx, http.MethodGet, "/admin/donation/reject/"+id, nil)
}

func (c *Client) Assign(ctx context.Context, id string, req AssignRequest) (*Donation, error) {
	return c.donation(ctx, http.MethodPost, "/admin/donation/assign/"+id, req)
}

func (c *Client) CollectorAvailable(ctx context.Context) ([]Donation, error) {
	return c.donations(ctx, "/collector/donations/available")
}

func (c *Client) CollectorAssigned(ctx context.Context) ([]Donation, error) {
	return c.donations(ctx, "/collector/donations/assigned")
}

func (c *Client) CollectorPrevious(ctx context.Context) ([]Donation, error) {
	return c.donations(ctx, "/collector/donations/previous")
}

func (c *Client) Collect(ctx context.Context, id string, quantity int64) (*CollectResponse, error) {
	var out CollectResponse
	if err := c.do(ctx, http.MethodPost, "/collector/donation/collect/"+id, CollectRequest{Quantity: quantity}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AgentPending(ctx context.Context) ([]Donation, error) {
	return c.donations(ctx, "/agent/collections/pending")
}

func (c *Client) AgentPrevious(ctx context.Context) ([]Donation, error) {
	return c.donations(ctx, "/agent/collections/previous")
}

func (c *Client) AgentCollection(ctx context.Context, id string) (*Donation, error) {
	return c.donation(ctx, http.MethodGet, "/agent/collection/"+id, nil)
}

func (c *Client) AgentCollect(ctx context.Context, id string) (*Donation, error) {
	return c.donation(ctx, http.MethodGet, "/agent/collection/collect/"+id, nil)
}

// ============================================================================
// Locations
// ============================================================================

func (c *Client) UpdateLocation(ctx context.Context, lat, lon float64) (*Location, error) {
	var l Location
	if err := c.do(ctx, http.MethodPost, "/update-location", LocationRequest{Latitude: lat, Longitude: lon}, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *Client) Location(ctx context.Context, agentID string) (*Location, error) {
	var l Location
	if err := c.do(ctx, http.MethodGet, "/location/"+agentID, nil, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *Client) Locations(ctx context.Context) ([]Location, error) {
	var out []Location
	err := c.do(ctx, http.MethodGet, "/locations", nil, &out)
	return out, err
}

// ============================================================================
// Feedback
// ============================================================================

// SendFeedback sends to req.ReceiverID, or to every admin when it is empty.
func (c *Client) SendFeedback(ctx context.Context, req FeedbackRequest) ([]Feedback, error) {
	var out []Feedback
	err := c.do(ctx, http.MethodPost, "/feedback", req, &out)
	return out, err
}

func (c *Client) Feedback(ctx context.Context) (*FeedbackList, error) {
	var out FeedbackList
	if err := c.do(ctx, http.MethodGet, "/feedback", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Reply(ctx context.Context, feedbackID, reply string) (*Feedback, error) {
	var f Feedback
	if err := c.do(ctx, http.MethodPost, "/admin/feedbacks", ReplyRequest{FeedbackID: feedbackID, Reply: reply}, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
