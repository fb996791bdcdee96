package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/deptconnect/portal/internal/live"
	"github.com/deptconnect/portal/internal/oidc"
	"github.com/deptconnect/portal/internal/sessions"
	"github.com/deptconnect/portal/internal/tokens"
	"github.com/deptconnect/portal/pkg/errs"
	"github.com/deptconnect/portal/pkg/logger"
	"github.com/deptconnect/portal/pkg/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password sign-up accepts.
const MinPasswordLength = 6

// Options configures a Service.
type Options struct {
	Secret      string
	SessionTTL  time.Duration
	Verifier    oidc.TokenVerifier // nil disables SSO
	Credentials CredentialStore    // nil keeps the credential in memory only
	BcryptCost  int
}

// snapshot is what the identity broadcaster carries. Nothing is reported to
// listeners until ready.
type snapshot struct {
	ready    bool
	identity *Identity
}

// Service implements Client on top of an account repository, the session
// service and signed session credentials.
type Service struct {
	accounts AccountRepository
	sessions *sessions.Service
	opts     Options
	validate *validator.Validate
	log      zerolog.Logger

	mu      sync.Mutex
	started bool
	raw     string
	claims  *tokens.Claims
	changes *live.Broadcaster[snapshot]
}

func NewService(accounts AccountRepository, sess *sessions.Service, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 7 * 24 * time.Hour
	}
	if opts.Credentials == nil {
		opts.Credentials = &memoryCredentials{}
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		accounts: accounts,
		sessions: sess,
		opts:     opts,
		validate: validator.New(),
		log:      logger.With("identity"),
		changes:  live.NewBroadcaster(snapshot{}),
	}
}

// Start restores a persisted sign-in, if any, and reports the first identity
// to listeners. Calling it again has no effect.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true

	id, err := s.restoreLocked(ctx)
	if err != nil {
		// a broken saved credential is not fatal; start signed out
		s.log.Warn().Err(err).Msg("discarding saved sign-in")
		_ = s.opts.Credentials.Clear()
		id = nil
	}
	s.changes.Publish(snapshot{ready: true, identity: id})
	return nil
}

func (s *Service) restoreLocked(ctx context.Context) (*Identity, error) {
	raw, err := s.opts.Credentials.Load()
	if err != nil || raw == "" {
		return nil, err
	}
	claims, err := tokens.Parse(s.opts.Secret, raw)
	if err != nil {
		return nil, err
	}
	revoked, err := s.sessions.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, errors.New("credential was revoked")
	}
	sess, err := s.sessions.Validate(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.IdentityID != claims.IdentityID() {
		return nil, errors.New("session no longer exists")
	}
	acct, err := s.accounts.GetByID(ctx, claims.IdentityID())
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, errors.New("account no longer exists")
	}
	s.raw, s.claims = raw, claims
	id := acct.Identity()
	return &id, nil
}

// Current returns the signed-in identity or nil.
func (s *Service) Current() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claims == nil {
		return nil
	}
	return &Identity{ID: s.claims.IdentityID(), Email: s.claims.Email}
}

func (s *Service) Credential() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw
}

// Authorize accepts only the credential of the current session. Credentials
// from earlier sessions fail even while their signature is still valid.
func (s *Service) Authorize(ctx context.Context, raw string) (string, error) {
	claims, err := tokens.Parse(s.opts.Secret, raw)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	cur := s.claims
	s.mu.Unlock()
	if cur == nil || cur.ID != claims.ID {
		return "", errs.Auth(errs.CodeInvalidToken, "the session credential is not valid", nil)
	}
	return claims.IdentityID(), nil
}

func (s *Service) OnIdentityChanged(fn func(*Identity)) live.Cancel {
	return s.changes.Subscribe(func(snap snapshot) {
		if snap.ready {
			fn(snap.identity)
		}
	})
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func (s *Service) fail(err *errs.AuthError) error {
	metrics.AuthFailures.WithLabelValues(string(err.Code)).Inc()
	return err
}

func (s *Service) backendFailure(err error) error {
	return s.fail(errs.Auth(errs.CodeNetwork, "could not reach the sign-in service, please try again", err))
}

func (s *Service) SignUp(ctx context.Context, email, password string) (Identity, error) {
	email = normalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return Identity{}, s.fail(errs.Auth(errs.CodeInvalidEmail, "enter a valid email address", err))
	}
	if len(password) < MinPasswordLength {
		return Identity{}, s.fail(errs.Auth(errs.CodeWeakPassword, "password must be at least 6 characters", nil))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return Identity{}, s.fail(errs.Auth(errs.CodeWeakPassword, "password cannot be used", err))
	}
	acct := &Account{ID: uuid.NewString(), Email: email, PasswordHash: string(hash)}
	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			return Identity{}, s.fail(errs.Auth(errs.CodeDuplicateAccount, "an account with this email already exists", err))
		}
		return Identity{}, s.backendFailure(err)
	}
	return s.establish(ctx, acct)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Identity, error) {
	email = normalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return Identity{}, s.fail(errs.Auth(errs.CodeInvalidEmail, "enter a valid email address", err))
	}
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return Identity{}, s.backendFailure(err)
	}
	if acct == nil || acct.PasswordHash == "" {
		return Identity{}, s.fail(errs.Auth(errs.CodeBadCredential, "incorrect email or password", nil))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return Identity{}, s.fail(errs.Auth(errs.CodeBadCredential, "incorrect email or password", nil))
	}
	return s.establish(ctx, acct)
}

// SignInWithIDToken signs in with a department SSO ID token. An unknown
// subject is linked to the account with the same email when the provider
// vouches for that email, or gets a new account.
func (s *Service) SignInWithIDToken(ctx context.Context, raw string) (Identity, error) {
	if s.opts.Verifier == nil {
		return Identity{}, s.fail(errs.Auth(errs.CodeInvalidToken, "single sign-on is not configured", nil))
	}
	tok, err := s.opts.Verifier.Verify(ctx, raw)
	if err != nil {
		return Identity{}, s.fail(errs.Auth(errs.CodeInvalidToken, "the sign-on token was rejected", err))
	}
	claims, err := oidc.ReadClaims(tok)
	if err != nil {
		return Identity{}, s.fail(errs.Auth(errs.CodeInvalidToken, "the sign-on token was rejected", err))
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return Identity{}, s.fail(errs.Auth(errs.CodeInvalidEmail, "the sign-on email address is not verified", nil))
	}
	email := normalizeEmail(claims.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return Identity{}, s.fail(errs.Auth(errs.CodeInvalidEmail, "the sign-on token carries no usable email", err))
	}

	acct, err := s.accounts.GetBySubject(ctx, claims.Subject)
	if err != nil {
		return Identity{}, s.backendFailure(err)
	}
	if acct == nil {
		acct, err = s.accounts.GetByEmail(ctx, email)
		if err != nil {
			return Identity{}, s.backendFailure(err)
		}
		if acct != nil {
			if claims.EmailVerified == nil || !*claims.EmailVerified {
				return Identity{}, s.fail(errs.Auth(errs.CodeInvalidEmail, "verify your email with the sign-on provider before linking this account", nil))
			}
			if err := s.accounts.LinkSubject(ctx, acct.ID, claims.Subject); err != nil {
				return Identity{}, s.backendFailure(err)
			}
		} else {
			acct = &Account{ID: uuid.NewString(), Email: email, Subject: claims.Subject}
			if err := s.accounts.Create(ctx, acct); err != nil {
				return Identity{}, s.backendFailure(err)
			}
		}
	}
	return s.establish(ctx, acct)
}

// establish opens a session for acct, persists its credential and reports the
// new identity. Any previous session is closed first.
func (s *Service) establish(ctx context.Context, acct *Account) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claims != nil {
		if err := s.closeLocked(ctx); err != nil {
			s.log.Warn().Err(err).Msg("closing previous session")
		}
	}
	sess, err := s.sessions.Open(ctx, acct.ID, acct.Email, s.opts.SessionTTL)
	if err != nil {
		return Identity{}, s.backendFailure(err)
	}
	raw, claims, err := tokens.Issue(s.opts.Secret, acct.ID, acct.Email, sess.ID, s.opts.SessionTTL)
	if err != nil {
		return Identity{}, s.backendFailure(err)
	}
	if err := s.opts.Credentials.Save(raw); err != nil {
		s.log.Warn().Err(err).Msg("could not persist sign-in")
	}
	s.raw, s.claims = raw, claims
	id := acct.Identity()
	s.log.Info().Str("identity", id.ID).Msg("signed in")
	s.publishLocked(&id)
	return id, nil
}

// publishLocked reports id. Sign-in before Start also counts as the first
// determination of the identity.
func (s *Service) publishLocked(id *Identity) {
	s.started = true
	s.changes.Publish(snapshot{ready: true, identity: id})
}

func (s *Service) closeLocked(ctx context.Context) error {
	claims := s.claims
	s.raw, s.claims = "", nil
	clearErr := s.opts.Credentials.Clear()
	if err := s.sessions.Close(ctx, claims.SessionID, claims.ID, claims.Remaining()); err != nil {
		return err
	}
	return clearErr
}

// SignOut ends the current session. Signing out while signed out is a no-op.
// The identity change is reported even if the session backend fails.
func (s *Service) SignOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claims == nil {
		if !s.started {
			s.publishLocked(nil)
		}
		return nil
	}
	err := s.closeLocked(ctx)
	s.log.Info().Msg("signed out")
	s.publishLocked(nil)
	if err != nil {
		return s.backendFailure(err)
	}
	return nil
}

// Close detaches every identity listener.
func (s *Service) Close() { s.changes.Close() }
