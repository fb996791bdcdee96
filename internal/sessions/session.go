// Package sessions keeps the server side of a signed-in identity: one refresh
// session per sign-in, and a blacklist of revoked session credentials.
package sessions

import "time"

// Session is the persisted record behind a session credential. ID matches the
// credential's "sid" claim.
type Session struct {
	ID         string    `bson:"_id" json:"id"`
	IdentityID string    `bson:"identityId" json:"identityId"`
	Email      string    `bson:"email" json:"email"`
	ExpiresAt  time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
}

func (s *Session) Expired(now time.Time) bool { return now.After(s.ExpiresAt) }
