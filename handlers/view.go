package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/deptconnect/portal/internal/content"
	"github.com/deptconnect/portal/internal/feed"
	"github.com/deptconnect/portal/internal/identity"
	"github.com/deptconnect/portal/internal/live"
	"github.com/deptconnect/portal/internal/profile"
	"github.com/deptconnect/portal/internal/session"
	"github.com/deptconnect/portal/internal/storage"
	"github.com/deptconnect/portal/pkg/errs"
	"github.com/deptconnect/portal/pkg/logger"
	"github.com/deptconnect/portal/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Sessions is the session controller surface the view host drives.
type Sessions interface {
	State() session.State
	Subscribe(fn func(session.State)) live.Cancel
	SignUp(ctx context.Context, email, password string, form profile.SignUpForm) error
	SignIn(ctx context.Context, email, password string) error
	SignInWithIDToken(ctx context.Context, raw string) error
	SignOut(ctx context.Context) error
	CompleteProfile(ctx context.Context, form profile.SignUpForm) error
	Credential() string
	Authorize(ctx context.Context, raw string) (string, error)
}

// Feed is the feed synchronizer surface the view host renders.
type Feed interface {
	View() feed.View
	Subscribe(fn func(feed.View)) live.Cancel
}

// Publisher submits drafts on behalf of the active session.
type Publisher interface {
	Publish(ctx context.Context, d content.Draft) (string, error)
}

// Host renders the session and feed into view models and turns requests into
// controller and publisher calls. It holds no state of its own.
//
// The portal process serves a single signed-in user. Only requests carrying
// that user's session credential see the session; everyone else is treated
// as signed out.
type Host struct {
	sessions Sessions
	feed     Feed
	pub      Publisher
	files    storage.Attachments
	log      zerolog.Logger
}

// NewHost wires a view host. feed, pub and files may be nil when the backend
// is unavailable; the matching endpoints then answer 503.
func NewHost(s Sessions, f Feed, p Publisher, files storage.Attachments) *Host {
	return &Host{sessions: s, feed: f, pub: p, files: files, log: logger.With("view")}
}

// Register mounts the portal API under /api/v1. mw runs after the session
// is attached to the request, so limiters can key on the identity.
func (h *Host) Register(r gin.IRouter, mw ...gin.HandlerFunc) {
	api := r.Group("/api/v1", append([]gin.HandlerFunc{middleware.SessionContext(h.sessions)}, mw...)...)
	api.GET("/view", h.GetView)
	api.GET("/view/stream", h.StreamView)

	a := api.Group("/auth")
	a.POST("/signup", h.SignUp)
	a.POST("/signin", h.SignIn)
	a.POST("/signin/sso", h.SignInSSO)

	signedIn := api.Group("", middleware.RequireSignedIn(h.sessions))
	signedIn.POST("/auth/signout", h.SignOut)
	signedIn.POST("/profile/complete", h.CompleteProfile)

	active := api.Group("", middleware.RequireActive(h.sessions))
	active.POST("/chat/messages", h.SendMessage)
	active.GET("/attachments/*key", h.GetAttachment)
	posters := active.Group("", middleware.RequireRole(h.sessions, profile.Role.CanPost))
	posters.POST("/posts/:category", h.CreatePost)
	posters.POST("/attachments", h.UploadAttachment)
}

// CategoryView is one rendered feed category.
type CategoryView struct {
	Items    []content.Item `json:"items"`
	Loaded   bool           `json:"loaded"`
	Degraded bool           `json:"degraded"`
	Error    string         `json:"error,omitempty"`
}

// ViewModel is everything a client needs to draw the portal.
type ViewModel struct {
	Status      session.Status                  `json:"status"`
	Epoch       uint64                          `json:"epoch"`
	Identity    *identity.Identity              `json:"identity,omitempty"`
	Profile     *profile.Profile                `json:"profile,omitempty"`
	Banner      string                          `json:"banner,omitempty"`
	Error       string                          `json:"error,omitempty"`
	ErrorCode   errs.Code                       `json:"errorCode,omitempty"`
	Unavailable bool                            `json:"unavailable"`
	CanPost     bool                            `json:"canPost"`
	CanChat     bool                            `json:"canChat"`
	Feed        map[feed.Category]*CategoryView `json:"feed,omitempty"`
}

// Render builds the view model for one session state and feed view. Feed
// content is shown only while the session is active and the view belongs to
// the same epoch.
func Render(s session.State, v feed.View) ViewModel {
	vm := ViewModel{
		Status:   s.Status,
		Epoch:    s.Epoch,
		Identity: s.Identity,
		Profile:  s.Profile,
	}
	if s.Err != nil {
		vm.Error = errs.Message(s.Err)
		vm.ErrorCode = errs.CodeOf(s.Err)
	}
	switch {
	case s.Unavailable || errs.IsConfig(s.Err):
		vm.Unavailable = true
		vm.Banner = "service unavailable"
	case s.Status == session.StatusPendingApproval:
		vm.Banner = "your account is awaiting approval"
	case s.Status == session.StatusRejected:
		vm.Banner = "your account request was rejected"
	case s.Status == session.StatusResolvingProfile && vm.ErrorCode == errs.CodeNotFound:
		vm.Banner = "complete your profile to continue"
	}
	if !s.Active() {
		return vm
	}
	vm.CanChat = true
	vm.CanPost = s.Profile.Role.CanPost()
	if !v.Open || v.Epoch != s.Epoch {
		return vm
	}
	vm.Feed = make(map[feed.Category]*CategoryView, len(feed.Categories))
	for _, c := range feed.Categories {
		cs := v.Category(c)
		cv := &CategoryView{Items: cs.Items, Loaded: cs.Loaded, Degraded: cs.Degraded}
		if cv.Items == nil {
			cv.Items = []content.Item{}
		}
		if cs.Err != nil {
			cv.Error = errs.Message(cs.Err)
		}
		vm.Feed[c] = cv
	}
	return vm
}

func (h *Host) render(s session.State) ViewModel {
	var v feed.View
	if h.feed != nil {
		v = h.feed.View()
	}
	return Render(s, v)
}

// current renders the session as the controller holds it. Use only for
// callers that just proved who they are.
func (h *Host) current() ViewModel { return h.render(h.sessions.State()) }

// GetView returns the view model for the caller.
func (h *Host) GetView(c *gin.Context) {
	c.JSON(http.StatusOK, h.render(middleware.StateFrom(c, h.sessions)))
}

// StreamView pushes a fresh view model as a server-sent event whenever the
// session or the feed changes. Bursts are coalesced; the client always ends
// up with the latest view.
func (h *Host) StreamView(c *gin.Context) {
	changed := make(chan struct{}, 1)
	notify := func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}
	scope := live.NewScope()
	defer scope.Close()
	scope.Add(h.sessions.Subscribe(func(session.State) { notify() }))
	if h.feed != nil {
		scope.Add(h.feed.Subscribe(func(feed.View) { notify() }))
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	ctx := c.Request.Context()
	raw := c.GetString(middleware.CredentialKey)
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-changed:
			c.SSEvent("view", h.render(middleware.CallerState(ctx, h.sessions, raw)))
			return true
		}
	})
}
