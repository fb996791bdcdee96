package identity

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrDuplicateAccount is returned by repositories when the email is taken.
var ErrDuplicateAccount = errors.New("account already exists")

// Account is the stored credential record behind an Identity.
type Account struct {
	ID           string    `bson:"_id" json:"id"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"passwordHash,omitempty" json:"-"`
	Subject      string    `bson:"subject,omitempty" json:"subject,omitempty"` // SSO subject
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (a *Account) Identity() Identity { return Identity{ID: a.ID, Email: a.Email} }

// AccountRepository defines persistence operations for accounts. Lookups
// return (nil, nil) when nothing matches.
type AccountRepository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetBySubject(ctx context.Context, subject string) (*Account, error)
	LinkSubject(ctx context.Context, id, subject string) error
}

// MemoryAccountRepository keeps accounts in process.
type MemoryAccountRepository struct {
	mu       sync.Mutex
	accounts map[string]Account
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[string]Account)}
}

func (r *MemoryAccountRepository) Create(ctx context.Context, a *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Email == a.Email {
			return ErrDuplicateAccount
		}
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	r.accounts[a.ID] = *a
	return nil
}

func (r *MemoryAccountRepository) find(match func(Account) bool) *Account {
	for _, a := range r.accounts {
		if match(a) {
			a := a
			return &a
		}
	}
	return nil
}

func (r *MemoryAccountRepository) GetByID(ctx context.Context, id string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(a Account) bool { return a.ID == id }), nil
}

func (r *MemoryAccountRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(a Account) bool { return a.Email == email }), nil
}

func (r *MemoryAccountRepository) GetBySubject(ctx context.Context, subject string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(a Account) bool { return a.Subject != "" && a.Subject == subject }), nil
}

func (r *MemoryAccountRepository) LinkSubject(ctx context.Context, id, subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return errors.New("account not found")
	}
	a.Subject = subject
	a.UpdatedAt = time.Now().UTC()
	r.accounts[id] = a
	return nil
}
