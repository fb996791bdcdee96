package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/deptconnect/portal/internal/profile"
	"github.com/deptconnect/portal/internal/session"
	"github.com/deptconnect/portal/pkg/errs"
	"github.com/gin-gonic/gin"
)

// Context keys set by SessionContext.
const (
	StateKey      = "session"
	IdentityKey   = "identity"
	CredentialKey = "credential"
)

// SessionSource is the session surface the middleware depends on.
type SessionSource interface {
	State() session.State
	Authorize(ctx context.Context, raw string) (string, error)
}

// Credential extracts the session credential from the Authorization header,
// or from the access_token query parameter for clients that cannot set
// headers (EventSource, img).
func Credential(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return c.Query("access_token")
}

// CallerState returns the session as seen by the holder of raw. Only the
// holder of the current session credential sees the signed-in identity;
// everyone else sees a signed-out session.
func CallerState(ctx context.Context, src SessionSource, raw string) session.State {
	s := src.State()
	if s.Identity == nil {
		return s
	}
	if raw != "" {
		if id, err := src.Authorize(ctx, raw); err == nil && id == s.Identity.ID {
			return s
		}
	}
	return session.State{Status: session.StatusSignedOut, Epoch: s.Epoch, Unavailable: s.Unavailable}
}

// SessionContext stores the caller's view of the session on the request so
// later handlers (and the rate limiter) see one consistent value.
func SessionContext(src SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := Credential(c)
		s := CallerState(c.Request.Context(), src, raw)
		c.Set(StateKey, s)
		c.Set(CredentialKey, raw)
		if s.Identity != nil {
			c.Set(IdentityKey, s.Identity.ID)
		}
		c.Next()
	}
}

// StateFrom returns the state stored by SessionContext, or resolves it for
// the request when SessionContext did not run.
func StateFrom(c *gin.Context, src SessionSource) session.State {
	if v, ok := c.Get(StateKey); ok {
		if s, ok := v.(session.State); ok {
			return s
		}
	}
	return CallerState(c.Request.Context(), src, Credential(c))
}

func unavailable(s session.State) bool { return s.Unavailable || errs.IsConfig(s.Err) }

func abortUnavailable(c *gin.Context, s session.State) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable", "details": errs.Message(s.Err)})
}

// RequireSignedIn rejects requests that do not carry the current session
// credential.
func RequireSignedIn(src SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := StateFrom(c, src)
		switch {
		case unavailable(s):
			abortUnavailable(c, s)
		case s.Identity == nil:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "sign in first", "status": s.Status})
		default:
			c.Next()
		}
	}
}

// RequireActive rejects requests unless the caller's session is Active.
func RequireActive(src SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := StateFrom(c, src)
		if s.Active() {
			c.Next()
			return
		}
		switch {
		case unavailable(s):
			abortUnavailable(c, s)
		case s.Identity == nil:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "sign in first", "status": s.Status})
		default:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account is not active", "status": s.Status})
		}
	}
}

// RequireRole rejects requests from active profiles whose role fails allowed.
// Use after RequireActive.
func RequireRole(src SessionSource, allowed func(profile.Role) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := StateFrom(c, src)
		if s.Profile == nil || !allowed(s.Profile.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "your role cannot do this"})
			return
		}
		c.Next()
	}
}
