// Package web renders the console pages.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jon4hz/botconsole/internal/gate"
	"github.com/mergestat/timediff"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageFiles = map[gate.View]string{
	gate.ViewLoadingSpinner:              "templates/loading.html",
	gate.ViewNoSessionNotice:             "templates/no_session.html",
	gate.ViewSecondaryPasswordSetupForm:  "templates/setup.html",
	gate.ViewSecondaryPasswordPromptForm: "templates/verify.html",
	gate.ViewDashboard:                   "templates/dashboard.html",
}

var pageTitles = map[gate.View]string{
	gate.ViewLoadingSpinner:              "Loading",
	gate.ViewNoSessionNotice:             "Sign in",
	gate.ViewSecondaryPasswordSetupForm:  "Create password",
	gate.ViewSecondaryPasswordPromptForm: "Unlock",
	gate.ViewDashboard:                   "Dashboard",
}

// Page is the data every page template receives.
type Page struct {
	Title          string
	View           gate.View
	CSRFToken      string
	RefreshSeconds int

	// Error is the inline error of the last form submission.
	Error string
	// Notice is a non-blocking hint, e.g. an unconfirmed setup status.
	Notice string

	Profile           *gate.Profile
	IsAdmin           bool
	AvatarURL         string
	SignedInAt        time.Time
	LockedUntil       time.Time
	MinPasswordLength int
}

// Renderer renders one template set per view.
type Renderer struct {
	pages map[gate.View]*template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	funcs := template.FuncMap{
		"relativeTime": FormatRelativeTime,
		"humanTime":    humanize.Time,
	}

	pages := make(map[gate.View]*template.Template, len(pageFiles))
	for view, file := range pageFiles {
		tmpl, err := template.New("base.html").Funcs(funcs).ParseFS(templateFS, "templates/base.html", file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", file, err)
		}
		pages[view] = tmpl
	}
	return &Renderer{pages: pages}, nil
}

// Render writes the page of p.View.
func (r *Renderer) Render(w io.Writer, p Page) error {
	tmpl, ok := r.pages[p.View]
	if !ok {
		return fmt.Errorf("no template for view %s", p.View)
	}
	if p.Title == "" {
		p.Title = pageTitles[p.View]
	}
	return tmpl.Execute(w, p)
}

// FormatRelativeTime formats a time.Time as a relative time string like "3 hours ago".
func FormatRelativeTime(t time.Time) string {
	return timediff.TimeDiff(t)
}
