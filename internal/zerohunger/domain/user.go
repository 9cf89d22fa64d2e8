package domain

import "time"

type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string // argon2id PHC string, or bcrypt for imported accounts
	Role         Role
	Gender       string
	Address      string
	Phone        string
	MFASecret    *string    // TOTP secret (nullable, base32 encoded)
	MFAEnabled   *time.Time // Timestamp when 2FA was enabled (nullable)
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasSecondFactor reports whether the user finished 2FA enrolment.
func (u User) HasSecondFactor() bool { return u.MFAEnabled != nil }

func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// Summary is the projection embedded when a donation or feedback entry is
// listed together with the people it references.
func (u User) Summary() *UserSummary {
	return &UserSummary{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
		Address:   u.Address,
		Role:      u.Role,
	}
}

type UserSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	Role      Role   `json:"role"`
}

// ProfileUpdate holds the user fields that may change after signup. Role
// and email are deliberately absent.
type ProfileUpdate struct {
	FirstName string
	LastName  string
	Gender    string
	Address   string
	Phone     string
}
