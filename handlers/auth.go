package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/deptconnect/portal/internal/profile"
	"github.com/deptconnect/portal/internal/session"
	"github.com/deptconnect/portal/pkg/errs"
	"github.com/gin-gonic/gin"
)

// settleTimeout bounds how long an auth response waits for the session to
// reflect the call. Clients that need later changes follow /view/stream.
const settleTimeout = 3 * time.Second

// SignUpRequest carries credentials plus the profile collected at sign-up.
type SignUpRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	profile.SignUpForm
}

type SignInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SSORequest carries an ID token obtained from the department identity provider.
type SSORequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

// AuthResponse is the view after an auth call plus the session credential
// to send as a bearer token on later requests.
type AuthResponse struct {
	ViewModel
	Token string `json:"token,omitempty"`
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error(), "code": errs.CodeInvalidArgument})
}

// settle blocks until done accepts a session state, ctx ends or
// settleTimeout passes.
func (h *Host) settle(ctx context.Context, done func(session.State) bool) {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	reached := make(chan struct{})
	var once sync.Once
	stop := h.sessions.Subscribe(func(s session.State) {
		if done(s) {
			once.Do(func() { close(reached) })
		}
	})
	defer stop()
	select {
	case <-reached:
	case <-ctx.Done():
	}
}

// signedInAfter accepts the first state of a later epoch whose profile
// lookup has finished.
func signedInAfter(epoch uint64) func(session.State) bool {
	return func(s session.State) bool {
		return s.Epoch > epoch && (s.Status != session.StatusResolvingProfile || s.Err != nil)
	}
}

func (h *Host) respondAuth(c *gin.Context, status int) {
	c.JSON(status, AuthResponse{ViewModel: h.current(), Token: h.sessions.Credential()})
}

// SignUp creates an account and its pending profile.
func (h *Host) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	epoch := h.sessions.State().Epoch
	if err := h.sessions.SignUp(c.Request.Context(), req.Email, req.Password, req.SignUpForm); err != nil {
		h.log.Info().Err(err).Msg("sign-up rejected")
		respondError(c, err)
		return
	}
	h.settle(c.Request.Context(), signedInAfter(epoch))
	h.respondAuth(c, http.StatusCreated)
}

func (h *Host) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	epoch := h.sessions.State().Epoch
	if err := h.sessions.SignIn(c.Request.Context(), req.Email, req.Password); err != nil {
		h.log.Info().Err(err).Msg("sign-in rejected")
		respondError(c, err)
		return
	}
	h.settle(c.Request.Context(), signedInAfter(epoch))
	h.respondAuth(c, http.StatusOK)
}

// SignInSSO signs in with a department ID token.
func (h *Host) SignInSSO(c *gin.Context) {
	var req SSORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	epoch := h.sessions.State().Epoch
	if err := h.sessions.SignInWithIDToken(c.Request.Context(), req.IDToken); err != nil {
		h.log.Info().Err(err).Msg("sso sign-in rejected")
		respondError(c, err)
		return
	}
	h.settle(c.Request.Context(), signedInAfter(epoch))
	h.respondAuth(c, http.StatusOK)
}

func (h *Host) SignOut(c *gin.Context) {
	if err := h.sessions.SignOut(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	h.settle(c.Request.Context(), func(s session.State) bool { return s.Identity == nil })
	c.JSON(http.StatusOK, h.current())
}

// CompleteProfile creates the profile of an identity that has none, such as a
// first SSO sign-in.
func (h *Host) CompleteProfile(c *gin.Context) {
	var form profile.SignUpForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, err)
		return
	}
	epoch := h.sessions.State().Epoch
	if err := h.sessions.CompleteProfile(c.Request.Context(), form); err != nil {
		respondError(c, err)
		return
	}
	h.settle(c.Request.Context(), func(s session.State) bool {
		return s.Epoch != epoch || s.Profile != nil || (s.Err != nil && errs.CodeOf(s.Err) != errs.CodeNotFound)
	})
	h.respondAuth(c, http.StatusCreated)
}
