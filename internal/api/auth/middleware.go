// Package auth holds the gin middleware that ties a browser to its authentication gate.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jon4hz/botconsole/internal/gate"
)

const (
	sessionBrowserID = "browser_id"
	sessionCSRFToken = "csrf_token"

	ctxBrowserID = "browser_id"
	ctxCSRFToken = "csrf_token"
	ctxGate      = "gate"

	// CSRFFormField is the form field carrying the CSRF token.
	CSRFFormField = "csrf_token"
	// CSRFHeader is the header carrying the CSRF token for script requests.
	CSRFHeader = "X-CSRF-Token"
)

func getSessionString(session sessions.Session, key string) string {
	if val := session.Get(key); val != nil {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// BrowserSession assigns every browser a stable id and a CSRF token, both kept in the signed cookie.
func BrowserSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		browserID := getSessionString(session, sessionBrowserID)
		csrfToken := getSessionString(session, sessionCSRFToken)

		if browserID == "" || csrfToken == "" {
			if browserID == "" {
				browserID = uuid.NewString()
			}
			csrfToken = uuid.NewString()
			session.Set(sessionBrowserID, browserID)
			session.Set(sessionCSRFToken, csrfToken)
			if err := session.Save(); err != nil {
				log.Error("Failed to save browser session", "error", err)
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
		}

		c.Set(ctxBrowserID, browserID)
		c.Set(ctxCSRFToken, csrfToken)
		c.Next()
	}
}

// BrowserID returns the id of the requesting browser.
func BrowserID(c *gin.Context) string {
	return c.GetString(ctxBrowserID)
}

// CSRFToken returns the CSRF token of the requesting browser.
func CSRFToken(c *gin.Context) string {
	return c.GetString(ctxCSRFToken)
}

// RequireCSRF rejects state changing requests without a matching CSRF token.
func RequireCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		expected := CSRFToken(c)
		got := c.GetHeader(CSRFHeader)
		if got == "" {
			got = c.PostForm(CSRFFormField)
		}
		if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
			log.Warn("Rejected request with invalid CSRF token", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid csrf token"})
			return
		}
		c.Next()
	}
}

// LoadGate attaches the orchestrator of the browser to the request. A freshly created
// orchestrator is mounted by hydrating the persisted session. The one exception is a GET of
// mountPath carrying the login parameter: the page handler mounts that one with the request
// location. Anywhere else the login parameter is just a query parameter.
func LoadGate(registry *gate.Registry, loginParam, mountPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, fresh := registry.Get(BrowserID(c))
		if fresh && !isLoginMount(c, loginParam, mountPath) {
			if err := o.Bootstrap(c.Request.Context(), nil); err != nil {
				log.Warn("Failed to mount session", "error", err)
			}
		}
		c.Set(ctxGate, o)
		c.Next()
	}
}

func isLoginMount(c *gin.Context, loginParam, mountPath string) bool {
	return c.Request.Method == http.MethodGet &&
		c.FullPath() == mountPath &&
		c.Request.URL.Query().Has(loginParam)
}

// Gate returns the orchestrator attached by LoadGate.
func Gate(c *gin.Context) *gate.Orchestrator {
	return c.MustGet(ctxGate).(*gate.Orchestrator)
}

// SettleGate waits up to timeout for a pending setup status check, so actions are judged
// against a settled state.
func SettleGate(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		if err := Gate(c).WaitStatus(ctx); err != nil {
			log.Debug("Setup status still pending", "error", err)
		}
		c.Next()
	}
}

// RequireAuthenticated rejects requests of browsers that are not fully authenticated.
func RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Gate(c).IsAuthenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		c.Next()
	}
}
