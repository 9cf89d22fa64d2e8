package zhclient

import "time"

// Session states reported by the second factor endpoints.
const (
	StateNotStarted          = "not_started"
	StatePendingSecondFactor = "pending_second_factor"
	StateSetupSecondFactor   = "setup_second_factor"
	StateVerified            = "verified"
)

// ============================================================================
// Health
// ============================================================================

// HealthResponse is returned by /livez and /readyz. Only /readyz fills
// Checks.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports each critical dependency as "ok" or an error string.
type HealthChecks struct {
	Database  string `json:"database"`
	Signer    string `json:"signer"`
	Sessions  string `json:"sessions"`
	Locations string `json:"locations"`
}

// ============================================================================
// Auth
// ============================================================================

type SignupRequest struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Role            string `json:"role"`
	Gender          string `json:"gender,omitempty"`
	Address         string `json:"address,omitempty"`
	Phone           string `json:"phone,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionState tells the client which second factor step comes next.
type SessionState struct {
	State          string `json:"state"`
	FailedAttempts int    `json:"failed_attempts,omitempty"`
	Next           string `json:"next,omitempty"` // path of the next step or the role dashboard
}

type CodeRequest struct {
	Code string `json:"code"`
}

// SecondFactorSetup carries the TOTP enrolment material.
type SecondFactorSetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
	QRCode     string `json:"qr_code"`
}

// ============================================================================
// Users
// ============================================================================

type User struct {
	ID         string    `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Gender     string    `json:"gender,omitempty"`
	Address    string    `json:"address,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	MFAEnabled bool      `json:"mfa_enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserSummary is the short form embedded in donations and feedback.
type UserSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	Role      string `json:"role"`
}

type ProfileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Gender    string `json:"gender,omitempty"`
	Address   string `json:"address,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Dashboard holds the counters for the caller's role. Fields that do not
// apply to the role are omitted.
type Dashboard struct {
	Role      string           `json:"role"`
	Users     map[string]int64 `json:"users,omitempty"`
	Donations map[string]int64 `json:"donations,omitempty"`
	Assigned  *int64           `json:"assigned,omitempty"`
	Collected *int64           `json:"collected,omitempty"`
	Available *int64           `json:"available,omitempty"`
}

// ============================================================================
// Donations
// ============================================================================

type DonationRequest struct {
	FoodType    string `json:"food_type"`
	Quantity    int64  `json:"quantity"`
	CookingTime string `json:"cooking_time,omitempty"` // RFC 3339 or 2006-01-02T15:04
	Address     string `json:"address"`
	Phone       string `json:"phone"`
	Message     string `json:"donor_to_admin_msg,omitempty"`
}

type AssignRequest struct {
	AgentID string `json:"agent_id"`
	Message string `json:"admin_to_agent_msg,omitempty"`
}

type CollectRequest struct {
	Quantity int64 `json:"quantity"`
}

type Donation struct {
	ID               string       `json:"id"`
	ParentID         string       `json:"parent_donation_id,omitempty"`
	FoodType         string       `json:"food_type"`
	Quantity         int64        `json:"quantity"`
	OriginalQuantity int64        `json:"original_quantity"`
	CookingTime      *time.Time   `json:"cooking_time,omitempty"`
	Address          string       `json:"address"`
	Phone            string       `json:"phone"`
	DonorToAdminMsg  string       `json:"donor_to_admin_msg,omitempty"`
	AdminToAgentMsg  string       `json:"admin_to_agent_msg,omitempty"`
	Status           string       `json:"status"`
	CollectionTime   *time.Time   `json:"collection_time,omitempty"`
	Donor            *UserSummary `json:"donor,omitempty"`
	Agent            *UserSummary `json:"agent,omitempty"`
	Collector        *UserSummary `json:"collector,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// CollectResponse is the parent after a collection and the split-off child.
type CollectResponse struct {
	Parent Donation `json:"parent"`
	Child  Donation `json:"child"`
}

// ============================================================================
// Locations
// ============================================================================

type LocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Location struct {
	AgentID   string    `json:"agent_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ============================================================================
// Feedback
// ============================================================================

// FeedbackRequest goes to ReceiverID, or to every admin when it is empty.
type FeedbackRequest struct {
	ReceiverID string `json:"receiver_id,omitempty"`
	Message    string `json:"message"`
}

type ReplyRequest struct {
	FeedbackID string `json:"feedback_id"`
	Reply      string `json:"reply"`
}

type Feedback struct {
	ID        string       `json:"id"`
	ParentID  string       `json:"parent_id,omitempty"`
	Sender    *UserSummary `json:"sender,omitempty"`
	Receiver  *UserSummary `json:"receiver,omitempty"`
	Message   string       `json:"message"`
	Reply     string       `json:"reply,omitempty"`
	Status    string       `json:"status"`
	RepliedAt *time.Time   `json:"replied_at,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	Replies   []Feedback   `json:"replies,omitempty"`
}

type FeedbackList struct {
	Received []Feedback `json:"received"`
	Sent     []Feedback `json:"sent"`
}
