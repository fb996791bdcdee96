package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deptconnect/portal/internal/identity"
	"github.com/deptconnect/portal/internal/profile"
	"github.com/deptconnect/portal/internal/session"
	"github.com/deptconnect/portal/pkg/errs"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// Test credentials are "tok-" followed by the identity id.
func tokenFor(id string) string { return "tok-" + id }

func identityOf(raw string) (string, error) {
	if !strings.HasPrefix(raw, "tok-") {
		return "", errors.New("unknown credential")
	}
	return strings.TrimPrefix(raw, "tok-"), nil
}

type fixedState struct{ s session.State }

func (f fixedState) State() session.State { return f.s }

func (f fixedState) Authorize(_ context.Context, raw string) (string, error) { return identityOf(raw) }

func activeState(role profile.Role) fixedState {
	return fixedState{session.State{
		Status:   session.StatusActive,
		Epoch:    1,
		Identity: &identity.Identity{ID: "u1", Email: "u1@dept.test"},
		Profile:  &profile.Profile{ID: "u1", Role: role, Status: profile.StatusApproved},
	}}
}

func serveAs(t *testing.T, src SessionSource, credential string, handlers ...gin.HandlerFunc) int {
	t.Helper()
	g := gin.New()
	chain := append([]gin.HandlerFunc{SessionContext(src)}, handlers...)
	chain = append(chain, func(c *gin.Context) { c.Status(http.StatusOK) })
	g.POST("/", chain...)
	rw := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	g.ServeHTTP(rw, req)
	return rw.Code
}

func TestRequireActive(t *testing.T) {
	cases := []struct {
		name string
		src  fixedState
		want int
	}{
		{"active", activeState(profile.RoleStudent), http.StatusOK},
		{"signed out", fixedState{session.State{Status: session.StatusSignedOut}}, http.StatusUnauthorized},
		{"pending", fixedState{session.State{
			Status:   session.StatusPendingApproval,
			Identity: &identity.Identity{ID: "u1"},
			Profile:  &profile.Profile{ID: "u1", Role: profile.RoleProfessor, Status: profile.StatusPending},
		}}, http.StatusForbidden},
		{"resolving", fixedState{session.State{Status: session.StatusResolvingProfile, Identity: &identity.Identity{ID: "u1"}}}, http.StatusForbidden},
		{"misconfigured", fixedState{session.State{Status: session.StatusUninitialized, Err: errs.Config("JWT_SECRET", "is required")}}, http.StatusServiceUnavailable},
		{"backend down", fixedState{session.State{
			Status:      session.StatusUninitialized,
			Err:         errs.Store(errs.CodeNetwork, "document store unreachable", nil),
			Unavailable: true,
		}}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, serveAs(t, tc.src, tokenFor("u1"), RequireActive(tc.src)))
		})
	}
}

func TestCallerWithoutCurrentCredentialIsSignedOut(t *testing.T) {
	src := activeState(profile.RoleProfessor)
	require.Equal(t, http.StatusUnauthorized, serveAs(t, src, "", RequireActive(src)))
	require.Equal(t, http.StatusUnauthorized, serveAs(t, src, "forged", RequireActive(src)))
	// a valid credential for another identity does not unlock this session
	require.Equal(t, http.StatusUnauthorized, serveAs(t, src, tokenFor("u2"), RequireActive(src)))
	require.Equal(t, http.StatusUnauthorized, serveAs(t, src, "", RequireSignedIn(src)))
	require.Equal(t, http.StatusOK, serveAs(t, src, tokenFor("u1"), RequireSignedIn(src)))

	s := CallerState(context.Background(), src, "")
	require.Equal(t, session.StatusSignedOut, s.Status)
	require.Nil(t, s.Identity)
	require.Nil(t, s.Profile)
	require.Equal(t, src.s.Epoch, s.Epoch)
}

func TestCredentialFromQuery(t *testing.T) {
	src := activeState(profile.RoleStudent)
	g := gin.New()
	g.GET("/", SessionContext(src), RequireActive(src), func(c *gin.Context) {
		require.Equal(t, tokenFor("u1"), c.GetString(CredentialKey))
		c.Status(http.StatusOK)
	})
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/?access_token="+tokenFor("u1"), nil))
	require.Equal(t, http.StatusOK, rw.Code)
}

func TestRequireRole(t *testing.T) {
	for _, role := range profile.Roles {
		src := activeState(role)
		want := http.StatusForbidden
		if role.CanPost() {
			want = http.StatusOK
		}
		require.Equal(t, want, serveAs(t, src, tokenFor("u1"), RequireActive(src), RequireRole(src, profile.Role.CanPost)), string(role))
	}
}

func TestSessionContextSetsIdentity(t *testing.T) {
	g := gin.New()
	g.GET("/", SessionContext(activeState(profile.RoleStudent)), func(c *gin.Context) {
		require.Equal(t, "u1", c.GetString(IdentityKey))
		c.Status(http.StatusOK)
	})
	rw := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor("u1"))
	g.ServeHTTP(rw, req)
	require.Equal(t, http.StatusOK, rw.Code)

	g = gin.New()
	g.GET("/", SessionContext(activeState(profile.RoleStudent)), func(c *gin.Context) {
		require.Empty(t, c.GetString(IdentityKey))
		c.Status(http.StatusOK)
	})
	rw = httptest.NewRecorder()
	g.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rw.Code)
}
