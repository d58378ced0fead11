package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Registration statuses. The only legal transition is pending -> registered.
const (
	StatusPending    = "pending"
	StatusRegistered = "registered"
)

// Registration is a single pre-launch sign-up record.
// VerificationToken and VerificationExpiresAt are present only while the
// registration is pending; both are cleared when the email is verified.
type Registration struct {
	ID                    string     `json:"id"`
	Email                 string     `json:"email"`
	FullName              string     `json:"fullName,omitempty"`
	Status                string     `json:"status"`
	CreatedAt             time.Time  `json:"createdAt"`
	VerificationToken     string     `json:"verificationToken,omitempty"`
	VerificationExpiresAt *time.Time `json:"verificationExpiresAt,omitempty"`
	VerifiedAt            *time.Time `json:"verifiedAt,omitempty"`
}

// Pending reports whether the registration still awaits verification.
func (r *Registration) Pending() bool {
	return r.Status == StatusPending
}

// Expired reports whether the verification window has closed at the given time.
func (r *Registration) Expired(now time.Time) bool {
	return r.VerificationExpiresAt != nil && now.After(*r.VerificationExpiresAt)
}

// Stats is a derived snapshot over the registration collection.
// DisplayCount is the only number shown to end users.
type Stats struct {
	TotalRegistered int       `json:"totalRegistered"`
	TotalPending    int       `json:"totalPending"`
	Total           int       `json:"total"`
	FakeBaseCount   int       `json:"fakeBaseCount"`
	DisplayCount    int       `json:"displayCount"`
	LastUpdated     time.Time `json:"lastUpdated,omitempty"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName,omitempty"`
}

type VerifyRequest struct {
	Token string `json:"token"`
}

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail lower-cases and trims an address. All storage backends key
// registrations by the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail checks the local@domain shape after normalization.
func ValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

func (r *RegisterRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.FullName = strings.TrimSpace(r.FullName)
}

func (r *RegisterRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("email is required")
	}
	if !ValidEmail(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}
