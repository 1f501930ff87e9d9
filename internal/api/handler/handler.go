// Package handler contains the HTTP handlers of the console.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/botconsole/internal/api/auth"
	"github.com/jon4hz/botconsole/internal/avatar"
	"github.com/jon4hz/botconsole/internal/config"
	"github.com/jon4hz/botconsole/internal/gate"
	"github.com/jon4hz/botconsole/internal/platform"
	"github.com/jon4hz/botconsole/web"
)

// refreshSeconds is how often the loading page reloads itself.
const refreshSeconds = 1

type Handler struct {
	config    *config.Config
	renderer  *web.Renderer
	target    *url.URL
	transport http.RoundTripper
}

// New creates the console handlers. transport is the base transport of the /api pass-through,
// nil means http.DefaultTransport.
func New(cfg *config.Config, renderer *web.Renderer, transport http.RoundTripper) (*Handler, error) {
	target, err := url.Parse(cfg.Platform.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid platform URL: %w", err)
	}
	return &Handler{
		config:    cfg,
		renderer:  renderer,
		target:    target,
		transport: transport,
	}, nil
}

// Home mounts the gate when the URL carries a login token and renders the selected view.
// The token is stripped with a redirect before its exchange completes.
func (h *Handler) Home(c *gin.Context) {
	o := auth.Gate(c)

	if c.Request.URL.Query().Has(h.config.LoginParam) {
		loc := newRequestLocation(c.Request.URL)
		done := make(chan error, 1)
		ctx := context.WithoutCancel(c.Request.Context())
		go func() {
			done <- o.Bootstrap(ctx, loc)
		}()

		select {
		case <-loc.Replaced():
		case err := <-done:
			if err != nil {
				log.Warn("Failed to mount session", "error", err)
			}
		}
		c.Redirect(http.StatusSeeOther, loc.URL().RequestURI())
		return
	}

	h.render(c, http.StatusOK, o.Snapshot(), "")
}

type statusResponse struct {
	State       gate.State       `json:"state"`
	View        gate.View        `json:"view"`
	SetupStatus gate.SetupStatus `json:"setupStatus"`
	Verified    bool             `json:"verified"`
	LockedUntil *time.Time       `json:"lockedUntil,omitempty"`
}

// Status returns the state of the browser's gate.
func (h *Handler) Status(c *gin.Context) {
	snap := auth.Gate(c).Snapshot()
	resp := statusResponse{
		State:       snap.State,
		View:        snap.View,
		SetupStatus: snap.Setup,
		Verified:    snap.Verified,
	}
	if !snap.LockedUntil.IsZero() {
		resp.LockedUntil = &snap.LockedUntil
	}
	c.JSON(http.StatusOK, resp)
}

// SetupCloudPassword handles the cloud password creation form.
func (h *Handler) SetupCloudPassword(c *gin.Context) {
	o := auth.Gate(c)
	err := o.SubmitSetup(c.Request.Context(), c.PostForm("password"), c.PostForm("confirm_password"))
	h.afterAction(c, o, err)
}

// VerifyCloudPassword handles the cloud password prompt.
func (h *Handler) VerifyCloudPassword(c *gin.Context) {
	o := auth.Gate(c)
	err := o.SubmitVerify(c.Request.Context(), c.PostForm("password"))
	h.afterAction(c, o, err)
}

// Logout signs the browser out.
func (h *Handler) Logout(c *gin.Context) {
	o := auth.Gate(c)
	if err := o.SignOut(c.Request.Context()); err != nil {
		log.Debug("Ignoring logout", "error", err)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// afterAction redirects home on success and re-renders the current view with the error otherwise.
func (h *Handler) afterAction(c *gin.Context, o *gate.Orchestrator, err error) {
	if err == nil || errors.Is(err, gate.ErrInvalidTransition) || errors.Is(err, gate.ErrSuperseded) {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	snap := o.Snapshot()
	h.render(c, http.StatusUnprocessableEntity, snap, h.formError(err, snap))
}

type meResponse struct {
	*gate.Profile
	DisplayName string    `json:"displayName"`
	IsAdmin     bool      `json:"isAdmin"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	SignedInAt  time.Time `json:"signedInAt,omitzero"`
}

// Me returns the profile of the signed in user.
func (h *Handler) Me(c *gin.Context) {
	snap := auth.Gate(c).Snapshot()
	if snap.Profile == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	c.JSON(http.StatusOK, meResponse{
		Profile:     snap.Profile,
		DisplayName: snap.Profile.DisplayName(),
		IsAdmin:     snap.Profile.IsAdmin(h.config.AdminRoles),
		AvatarURL:   avatar.URL(snap.Profile.Avatar, snap.Profile.Username, h.config.Gravatar),
		SignedInAt:  snap.SignedInAt,
	})
}

// Proxy forwards /api requests to the platform with the browser's bearer token.
func (h *Handler) Proxy(c *gin.Context) {
	proxy := &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.Out.URL.Path = c.Param("path")
			r.Out.URL.RawPath = ""
			r.SetURL(h.target)
			r.Out.Header.Del("Cookie")
			r.Out.Header.Del(auth.CSRFHeader)
		},
		Transport: platform.NewAuthorizedTransport(h.transport, auth.Gate(c)),
		ErrorHandler: func(w http.ResponseWriter, _ *http.Request, err error) {
			status := http.StatusBadGateway
			if errors.Is(err, platform.ErrNotAuthenticated) {
				status = http.StatusUnauthorized
			} else {
				log.Error("Platform request failed", "error", err)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = fmt.Fprintf(w, `{"error":%q}`, http.StatusText(status))
		},
	}
	proxy.ServeHTTP(c.Writer, c.Request)
}

func (h *Handler) render(c *gin.Context, status int, snap gate.Snapshot, formErr string) {
	page := web.Page{
		View:              snap.View,
		CSRFToken:         auth.CSRFToken(c),
		Error:             formErr,
		Profile:           snap.Profile,
		SignedInAt:        snap.SignedInAt,
		LockedUntil:       snap.LockedUntil,
		MinPasswordLength: h.config.CloudPassword.MinLength,
	}

	switch snap.View {
	case gate.ViewLoadingSpinner:
		page.RefreshSeconds = refreshSeconds
	case gate.ViewNoSessionNotice:
		if page.Error == "" && snap.ExchangeErr != nil {
			page.Error = "This login link is invalid or has expired. Request a new one from the bot."
		}
	case gate.ViewSecondaryPasswordSetupForm:
		if snap.StatusErr != nil {
			page.Notice = "We could not confirm whether you already have a cloud password. If you do, creating one will fail; reload to try again."
		}
	case gate.ViewDashboard:
		page.IsAdmin = snap.Profile.IsAdmin(h.config.AdminRoles)
		page.AvatarURL = avatar.URL(snap.Profile.Avatar, snap.Profile.Username, h.config.Gravatar)
	}

	c.Header("Cache-Control", "no-store")
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := h.renderer.Render(c.Writer, page); err != nil {
		log.Error("Failed to render page", "view", snap.View, "error", err)
	}
}

// formError turns an action error into the message shown next to the form.
func (h *Handler) formError(err error, snap gate.Snapshot) string {
	var apiErr *platform.APIError
	switch {
	case errors.Is(err, gate.ErrPasswordRequired):
		return "Please enter a password."
	case errors.Is(err, gate.ErrPasswordTooShort):
		return fmt.Sprintf("The password must be at least %d characters long.", h.config.CloudPassword.MinLength)
	case errors.Is(err, gate.ErrPasswordMismatch):
		return "The passwords do not match."
	case errors.Is(err, gate.ErrTooManyAttempts):
		if !snap.LockedUntil.IsZero() {
			return fmt.Sprintf("Too many failed attempts. Try again %s.", humanize.Time(snap.LockedUntil))
		}
		return "Too many failed attempts. Try again later."
	case errors.Is(err, platform.ErrWrongPassword):
		return "Wrong password."
	case errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError && apiErr.Detail != "":
		return apiErr.Detail
	case errors.Is(err, gate.ErrSetupFailed):
		return "The password could not be saved. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
