package domain

import "time"

// AMR values recorded on sessions.
const (
	AMRPassword = "pwd"
	AMRRefresh  = "refresh"
)

// TokenPair is what the token endpoint hands back for both grants: the
// short-lived access token (JWT), the rotated opaque refresh token and the
// user the pair was minted for.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	ExpiresAt    time.Time
	User         User
}

// RefreshToken models the stored refresh token record in the DB.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string // deterministic fingerprint (base64url SHA-256)
	SessionID string // Session ID (SID) that persists across token refreshes
	AMR       []string
	ExpiresAt time.Time
	Revoked   bool

	// ReplacedBy is the id of the token this one was rotated into. A revoked
	// token with a successor was "used"; one without was revoked by sign-out.
	ReplacedBy string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Rotated reports whether the token was spent by a refresh.
func (t RefreshToken) Rotated() bool { return t.Revoked && t.ReplacedBy != "" }
