package domain

import "time"

// Session is the persisted access credential for one installed shop.
type Session struct {
	Shop        string     `json:"shop" bson:"shop"`
	AccessToken string     `json:"-" bson:"accessToken"`
	Scope       string     `json:"scope" bson:"scope"`
	Expires     *time.Time `json:"expires,omitempty" bson:"expires,omitempty"`
	CreatedAt   time.Time  `json:"created_at" bson:"createdAt"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updatedAt"`
}

// IsExpired reports whether an online-mode token has passed its expiry.
// Offline tokens carry no expiry and never expire here.
func (s *Session) IsExpired(now time.Time) bool {
	return s.Expires != nil && !now.Before(*s.Expires)
}

// OAuthState is the single-use nonce issued when an install is requested.
type OAuthState struct {
	State     string    `json:"state" bson:"state"`
	Shop      string    `json:"shop" bson:"shop"`
	Scopes    []string  `json:"scopes" bson:"scopes"`
	ExpiresAt time.Time `json:"expires_at" bson:"expiresAt"`
	CreatedAt time.Time `json:"created_at" bson:"createdAt"`
}

// AccessToken is the result of a successful authorization code exchange.
type AccessToken struct {
	Token string
	Scope string
}

// ProbeResult is the outcome of a token liveness probe.
type ProbeResult int

const (
	ProbeValid ProbeResult = iota
	ProbeRejected
)
