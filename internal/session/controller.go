package session

import (
	"context"
	"strings"
	"sync"

	"github.com/deptconnect/portal/internal/identity"
	"github.com/deptconnect/portal/internal/live"
	"github.com/deptconnect/portal/internal/profile"
	"github.com/deptconnect/portal/pkg/errs"
	"github.com/deptconnect/portal/pkg/logger"
	"github.com/deptconnect/portal/pkg/metrics"
	"github.com/rs/zerolog"
)

// Profiles is the profile surface the controller depends on.
type Profiles interface {
	Watch(id string, cb profile.Callback) live.Cancel
	Create(ctx context.Context, id, email string, form profile.SignUpForm) (*profile.Profile, error)
}

// Controller drives the session state machine. Identity callbacks and profile
// snapshots arrive on their own goroutines; the controller serializes them
// with its mutex and drops profile snapshots from superseded epochs.
type Controller struct {
	ident    identity.Client
	profiles Profiles
	log      zerolog.Logger

	mu        sync.Mutex
	epoch     uint64
	scope     *live.Scope
	signingUp string // email of an in-flight sign-up
	stopIdent live.Cancel
	state     *live.Broadcaster[State]
}

func NewController(ident identity.Client, profiles Profiles) *Controller {
	return &Controller{
		ident:    ident,
		profiles: profiles,
		log:      logger.With("session"),
		scope:    live.NewScope(),
		state:    live.NewBroadcaster(State{Status: StatusUninitialized}),
	}
}

// NewUnavailable returns a controller that stays Uninitialized with cause
// attached. Every operation fails with cause.
func NewUnavailable(cause error) *Controller {
	c := NewController(identity.Unavailable{Err: cause}, nil)
	c.state.Publish(State{Status: StatusUninitialized, Err: cause, Unavailable: true})
	return c
}

// Start begins following identity changes. The first identity callback moves
// the controller out of Uninitialized.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopIdent != nil {
		return
	}
	c.stopIdent = c.ident.OnIdentityChanged(c.onIdentity)
}

// State returns the current state.
func (c *Controller) State() State { return c.state.Get() }

// Subscribe delivers the current state immediately, then every change in
// order, on a goroutine owned by the subscription.
func (c *Controller) Subscribe(fn func(State)) live.Cancel { return c.state.Subscribe(fn) }

// Close stops following identity changes, cancels the profile subscription and
// detaches all state subscribers.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.stopIdent != nil {
		c.stopIdent()
	}
	c.scope.Close()
	c.mu.Unlock()
	c.state.Close()
}

func (c *Controller) publishLocked(s State) {
	prev := c.state.Get()
	c.state.Publish(s)
	if prev.Status != s.Status {
		metrics.SessionTransitions.WithLabelValues(string(s.Status)).Inc()
		c.log.Debug().Uint64("epoch", s.Epoch).Str("status", string(s.Status)).Msg("session transition")
	}
}

func (c *Controller) onIdentity(id *identity.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// the previous identity's profile subscription goes before anything else
	c.scope.Close()
	c.scope = live.NewScope()
	c.epoch++
	epoch := c.epoch

	if id == nil {
		c.publishLocked(State{Status: StatusSignedOut, Epoch: epoch})
		return
	}
	ident := *id
	c.publishLocked(State{Status: StatusResolvingProfile, Epoch: epoch, Identity: &ident})
	scope := c.scope
	scope.Add(c.profiles.Watch(ident.ID, func(p *profile.Profile, err error) {
		c.onProfile(scope, epoch, p, err)
	}))
}

func (c *Controller) onProfile(scope *live.Scope, epoch uint64, p *profile.Profile, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch || scope.Closed() {
		return
	}
	cur := c.state.Get()
	next := State{Status: StatusResolvingProfile, Epoch: epoch, Identity: cur.Identity}

	switch {
	case err != nil:
		if errs.CodeOf(err) == errs.CodeNotFound && c.awaitingProfileLocked(cur.Identity) {
			// sign-up is still writing it
			next.Err = nil
		} else {
			c.log.Warn().Err(err).Uint64("epoch", epoch).Msg("profile unavailable")
			next.Err = err
		}
	case p.ID != cur.Identity.ID:
		next.Err = errs.Store(errs.CodeInvalidArgument, "profile does not belong to the signed-in account", nil)
	default:
		status, ok := statusFor(p)
		if !ok {
			next.Err = errs.Store(errs.CodeInvalidArgument, "profile has an unknown approval status", nil)
			break
		}
		prof := *p
		next.Status = status
		next.Profile = &prof
	}
	c.publishLocked(next)
}

func (c *Controller) awaitingProfileLocked(id *identity.Identity) bool {
	return id != nil && c.signingUp != "" && strings.EqualFold(c.signingUp, id.Email)
}

// unavailable returns the configuration error a controller built by
// NewUnavailable carries.
func (c *Controller) unavailable() error {
	if u, ok := c.ident.(identity.Unavailable); ok {
		return u.Err
	}
	return nil
}

// attachLocked records err on the current state without changing its status.
func (c *Controller) attachLocked(err error) {
	c.state.Update(func(s State) State {
		s.Err = err
		return s
	})
}

func (c *Controller) attach(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attachLocked(err)
}

// SignUp creates the account and its pending profile. The new identity is
// reported through the usual identity callback.
func (c *Controller) SignUp(ctx context.Context, email, password string, form profile.SignUpForm) error {
	if err := c.unavailable(); err != nil {
		return err
	}
	if err := form.Validate(); err != nil {
		verr := errs.Store(errs.CodeInvalidArgument, "the profile form is incomplete", err)
		c.attach(verr)
		return verr
	}
	normalized := strings.ToLower(strings.TrimSpace(email))
	c.mu.Lock()
	c.signingUp = normalized
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.signingUp == normalized {
			c.signingUp = ""
		}
		c.mu.Unlock()
	}()

	id, err := c.ident.SignUp(ctx, email, password)
	if err != nil {
		c.attach(err)
		return err
	}
	if _, err := c.profiles.Create(ctx, id.ID, id.Email, form); err != nil {
		c.log.Error().Err(err).Str("identity", id.ID).Msg("profile creation failed")
		c.mu.Lock()
		if cur := c.state.Get(); cur.Identity != nil && cur.Identity.ID == id.ID {
			c.attachLocked(err)
		}
		c.mu.Unlock()
		return err
	}
	return nil
}

func (c *Controller) SignIn(ctx context.Context, email, password string) error {
	if _, err := c.ident.SignIn(ctx, email, password); err != nil {
		c.attach(err)
		return err
	}
	return nil
}

func (c *Controller) SignInWithIDToken(ctx context.Context, raw string) error {
	if _, err := c.ident.SignInWithIDToken(ctx, raw); err != nil {
		c.attach(err)
		return err
	}
	return nil
}

func (c *Controller) SignOut(ctx context.Context) error {
	if err := c.ident.SignOut(ctx); err != nil {
		c.attach(err)
		return err
	}
	return nil
}

// CompleteProfile creates the missing profile of the signed-in identity.
func (c *Controller) CompleteProfile(ctx context.Context, form profile.SignUpForm) error {
	if err := c.unavailable(); err != nil {
		return err
	}
	cur := c.State()
	if cur.Identity == nil {
		return errs.Auth(errs.CodeBadCredential, "sign in first", nil)
	}
	if cur.Profile != nil {
		return errs.Store(errs.CodeInvalidArgument, "a profile already exists for this account", nil)
	}
	if _, err := c.profiles.Create(ctx, cur.Identity.ID, cur.Identity.Email, form); err != nil {
		c.mu.Lock()
		if c.epoch == cur.Epoch {
			c.attachLocked(err)
		}
		c.mu.Unlock()
		return err
	}
	return nil
}

// Credential returns the session credential of the signed-in identity.
func (c *Controller) Credential() string { return c.ident.Credential() }

// Authorize checks raw against the current session credential and returns
// the identity it was issued to.
func (c *Controller) Authorize(ctx context.Context, raw string) (string, error) {
	return c.ident.Authorize(ctx, raw)
}

// OpenProfileSubscriptions reports how many profile subscriptions the
// controller holds. It is never more than one.
func (c *Controller) OpenProfileSubscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scope.Len()
}
