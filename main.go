package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deptconnect/portal/handlers"
	"github.com/deptconnect/portal/internal/config"
	"github.com/deptconnect/portal/internal/content"
	"github.com/deptconnect/portal/internal/database"
	"github.com/deptconnect/portal/internal/feed"
	"github.com/deptconnect/portal/internal/identity"
	"github.com/deptconnect/portal/internal/live"
	"github.com/deptconnect/portal/internal/oidc"
	"github.com/deptconnect/portal/internal/profile"
	"github.com/deptconnect/portal/internal/session"
	"github.com/deptconnect/portal/internal/sessions"
	"github.com/deptconnect/portal/internal/storage"
	"github.com/deptconnect/portal/internal/store"
	"github.com/deptconnect/portal/pkg/errs"
	"github.com/deptconnect/portal/pkg/logger"
	"github.com/deptconnect/portal/pkg/metrics"
	"github.com/deptconnect/portal/pkg/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// app is the wired portal. Everything added to closers is released newest
// first on shutdown.
type app struct {
	ctrl    *session.Controller
	feed    *feed.Synchronizer
	pub     *content.Publisher
	files   storage.Attachments
	redis   *redis.Client
	checks  map[string]handlers.Check
	closers *live.Scope
}

func (a *app) Close() { a.closers.Close() }

// unavailableApp serves the portal without a backend; cause is reported by
// the view, every auth operation and /ready.
func unavailableApp(cause error) *app {
	a := &app{ctrl: session.NewUnavailable(cause), closers: live.NewScope()}
	a.ctrl.Start()
	a.closers.Add(a.ctrl.Close)
	return a
}

// buildApp validates cfg and wires the session pipeline onto the configured
// backends.
func buildApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.With("main")
	a := &app{checks: map[string]handlers.Check{}, closers: live.NewScope()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	var (
		docs     store.Client
		accounts identity.AccountRepository
		sessRepo sessions.Repository
		bl       sessions.Blacklist
	)
	switch cfg.Backend.Driver {
	case config.DriverMemory:
		log.Warn().Msg("using the in-memory backend; nothing survives a restart")
		docs = store.NewMemoryStore()
		accounts = identity.NewMemoryAccountRepository()
		sessRepo = sessions.NewMemoryRepository()
	case config.DriverMongo:
		client, err := database.ConnectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
		if err != nil {
			return nil, errs.Store(errs.CodeNetwork, "document store unreachable", err)
		}
		a.closers.Add(func() { _ = client.Disconnect(context.Background()) })
		db := client.Database(cfg.MongoDB.Database)
		docs = store.NewMongoStore(db)

		ar := identity.NewMongoAccountRepository(db.Collection("accounts"))
		if err := ar.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("account indexes not ensured")
		}
		accounts = ar
		sr := sessions.NewMongoRepository(db.Collection("sessions"))
		if err := sr.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("session indexes not ensured")
		}
		sessRepo = sr
		a.checks["mongodb"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	}

	// Prefer Redis-based sessions when configured (fast, in-memory)
	if cfg.Redis.Enabled() {
		rc := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.closers.Add(func() { _ = rc.Close() })
		if err := rc.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr()).Msg("redis ping failed; sessions stay on the primary backend")
		} else {
			a.redis = rc
			sessRepo = sessions.NewRedisRepository(rc, "session:")
			bl = sessions.NewRedisBlacklist(rc)
			a.checks["redis"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
			log.Info().Str("addr", cfg.Redis.Addr()).Msg("using Redis for sessions and revocation")
		}
	}
	sessSvc := sessions.NewService(sessRepo, bl)

	var verifier oidc.TokenVerifier
	if issuer := cfg.Keycloak.Issuer(); issuer != "" {
		v, err := oidc.NewVerifier(ctx, issuer, cfg.Keycloak.ClientID)
		if err != nil {
			log.Warn().Err(err).Str("issuer", issuer).Msg("department SSO disabled")
		} else {
			verifier = v
		}
	}
	if verifier == nil && cfg.Keycloak.AllowInsecure {
		log.Warn().Msg("enabling insecure OIDC verifier (integration mode)")
		verifier = oidc.NewInsecureVerifier()
	}

	opts := identity.Options{Secret: cfg.JWT.Secret, SessionTTL: cfg.JWT.SessionTTL, Verifier: verifier}
	if cfg.Backend.SessionFile != "" {
		opts.Credentials = identity.NewFileCredentialStore(cfg.Backend.SessionFile)
	}
	ident := identity.NewService(accounts, sessSvc, opts)
	a.closers.Add(ident.Close)

	layout := store.NewLayout(cfg.Backend.DeploymentID)
	a.ctrl = session.NewController(ident, profile.NewResolver(docs, layout))
	a.closers.Add(a.ctrl.Close)
	a.feed = feed.NewSynchronizer(docs, layout)
	a.closers.Add(a.feed.Close)
	a.pub = content.NewPublisher(docs, layout, a.ctrl)

	a.feed.Start(a.ctrl)
	a.ctrl.Start()
	if err := ident.Start(ctx); err != nil {
		return nil, err
	}

	if cfg.MinIO.Enabled() {
		files, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			log.Warn().Err(err).Msg("attachments disabled")
		} else {
			a.files = files
		}
	} else if cfg.Backend.Driver == config.DriverMemory {
		a.files = storage.NewMemoryAttachments()
	}
	return a, nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	c.ExposeHeaders = []string{"Content-Length"}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	c.AllowOrigins = origins
	return c
}

func newRouter(cfg *config.Config, a *app, cause error) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), cors.New(corsConfig(cfg.Server.CORSOrigins)))

	handlers.RegisterHealth(r, cause, a.checks)
	handlers.RegisterSwagger(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var mw []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Redis && a.redis != nil {
			mw = append(mw, middleware.RedisRateLimitMiddleware(a.redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.Window))
		} else {
			mw = append(mw, middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// typed nils must not reach the host as non-nil interfaces
	var (
		f     handlers.Feed
		pub   handlers.Publisher
		files storage.Attachments
	)
	if a.feed != nil {
		f = a.feed
	}
	if a.pub != nil {
		pub = a.pub
	}
	if a.files != nil {
		files = a.files
	}
	handlers.NewHost(a.ctrl, f, pub, files).Register(r, mw...)
	return r
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.Environment == "development" {
		logger.SetOutput(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}
	logger.Init(cfg.Server.LogLevel)
	log := logger.With("main")
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.Info().Str("level", logger.LevelString()).Str("env", cfg.Server.Environment).Msg("logger ready")
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cause := buildApp(ctx, cfg)
	if cause != nil {
		// keep serving so the view and /ready can report the problem
		log.Error().Err(cause).Msg("portal backend unavailable")
		a = unavailableApp(cause)
	}
	defer a.Close()

	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:     newRouter(cfg, a, cause),
		ReadTimeout: cfg.Server.ReadTimeout,
		// zero: view streams stay open
		WriteTimeout: cfg.Server.WriteTimeout,
		// request contexts end on shutdown, which ends open view streams
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("driver", cfg.Backend.Driver).Msg("starting portal")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
}
