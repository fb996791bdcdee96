package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Service wraps repository operations with business logic
type Service struct {
	repo      Repository
	blacklist Blacklist
}

// NewService builds a Service. A nil blacklist falls back to an in-memory one.
func NewService(r Repository, bl Blacklist) *Service {
	if bl == nil {
		bl = NewMemoryBlacklist()
	}
	return &Service{repo: r, blacklist: bl}
}

// Open stores a new session for the identity and returns it.
func (s *Service) Open(ctx context.Context, identityID, email string, ttl time.Duration) (*Session, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &Session{
		ID:         hex.EncodeToString(b),
		IdentityID: identityID,
		Email:      email,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Validate returns the session if it exists and has not expired.
func (s *Service) Validate(ctx context.Context, id string) (*Session, error) {
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if sess.Expired(time.Now().UTC()) {
		// cleanup expired session
		_ = s.repo.Delete(ctx, id)
		return nil, nil
	}
	return sess, nil
}

// Close deletes the session and revokes the credential that referenced it for
// the rest of its lifetime.
func (s *Service) Close(ctx context.Context, id, credentialID string, remaining time.Duration) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if credentialID == "" {
		return nil
	}
	return s.blacklist.Revoke(ctx, credentialID, remaining)
}

func (s *Service) IsRevoked(ctx context.Context, credentialID string) (bool, error) {
	return s.blacklist.IsRevoked(ctx, credentialID)
}
