// Package api wires the console's HTTP server.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/botconsole/internal/api/auth"
	"github.com/jon4hz/botconsole/internal/api/handler"
	"github.com/jon4hz/botconsole/internal/config"
	"github.com/jon4hz/botconsole/internal/gate"
	"github.com/jon4hz/botconsole/internal/platform"
	"github.com/jon4hz/botconsole/internal/session"
	"github.com/jon4hz/botconsole/internal/static"
	"github.com/jon4hz/botconsole/web"
)

const sessionCookieName = "botconsole_session"

type Server struct {
	cfg       *config.Config
	ginEngine *gin.Engine
	registry  *gate.Registry
	handler   *handler.Handler
}

// New creates the console server. Every browser gets its own orchestrator backed by the
// session backend and the platform client.
func New(cfg *config.Config, backend session.Backend, client *platform.Client, debug bool) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	renderer, err := web.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	h, err := handler.New(cfg, renderer, nil)
	if err != nil {
		return nil, err
	}

	opts := gate.Options{
		LoginParam:        cfg.LoginParam,
		MinPasswordLength: cfg.CloudPassword.MinLength,
		StatusTimeout:     cfg.Platform.StatusTimeout,
		MaxVerifyAttempts: cfg.CloudPassword.MaxAttempts,
		VerifyCooldown:    cfg.CloudPassword.Cooldown,
	}
	registry := gate.NewRegistry(cfg.GateIdleTimeout, func(browserID string) *gate.Orchestrator {
		o := opts
		o.Logger = log.WithPrefix("gate").With("browser", shortID(browserID))
		return gate.New(session.NewStore(backend, browserID), client, o)
	})

	engine := gin.New()
	engine.Use(gin.Recovery())
	if debug {
		engine.Use(gin.Logger())
	}

	s := &Server{
		cfg:       cfg,
		ginEngine: engine,
		registry:  registry,
		handler:   h,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupSession() {
	store := cookie.NewStore([]byte(s.cfg.SessionKey))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   s.cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   strings.HasPrefix(s.cfg.ServerURL, "https://"),
		SameSite: http.SameSiteLaxMode,
	})
	s.ginEngine.Use(sessions.Sessions(sessionCookieName, store))
}

func (s *Server) setupRoutes() {
	s.ginEngine.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/"})))
	s.setupSession()

	s.ginEngine.StaticFS("/static", static.FS())

	gated := s.ginEngine.Group("/")
	gated.Use(auth.BrowserSession(), auth.LoadGate(s.registry, s.cfg.LoginParam, "/"))
	gated.GET("/", s.handler.Home)
	gated.GET("/status", s.handler.Status)

	settle := auth.SettleGate(s.cfg.Platform.StatusTimeout)

	actions := gated.Group("/")
	actions.Use(auth.RequireCSRF(), settle)
	actions.POST("/cloud-password/setup", s.handler.SetupCloudPassword)
	actions.POST("/cloud-password/verify", s.handler.VerifyCloudPassword)
	actions.POST("/logout", s.handler.Logout)

	protected := gated.Group("/")
	protected.Use(settle, auth.RequireAuthenticated(), auth.RequireCSRF())
	protected.GET("/me", s.handler.Me)
	protected.Any("/api/*path", s.handler.Proxy)
}

// Handler returns the HTTP handler of the console.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

// Run serves the console until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting console server", "listen", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down console server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
