package web

import (
	"bytes"
	"testing"
	"time"

	"github.com/jon4hz/botconsole/internal/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEveryView(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	profile := &gate.Profile{Username: "alice", FirstName: "Alice", Role: "admin"}
	for view := range pageFiles {
		t.Run(view.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, r.Render(&buf, Page{
				View:              view,
				CSRFToken:         "csrf-1",
				Profile:           profile,
				MinPasswordLength: 8,
			}))
			assert.Contains(t, buf.String(), `data-view="`+view.String()+`"`)
			assert.Contains(t, buf.String(), pageTitles[view])
		})
	}
}

func TestRenderForms(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, Page{
		View:              gate.ViewSecondaryPasswordSetupForm,
		CSRFToken:         "csrf-1",
		Profile:           &gate.Profile{Username: "alice"},
		Error:             "Passwords do not match.",
		MinPasswordLength: 10,
	}))
	html := buf.String()
	assert.Contains(t, html, `name="csrf_token" value="csrf-1"`)
	assert.Contains(t, html, "Passwords do not match.")
	assert.Contains(t, html, `minlength="10"`)
	assert.NotContains(t, html, `name="password" value=`)
}

func TestRenderDashboard(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, Page{
		View:       gate.ViewDashboard,
		Profile:    &gate.Profile{Username: "alice", FirstName: "Alice", Role: "Admin"},
		IsAdmin:    true,
		AvatarURL:  "https://www.gravatar.com/avatar/x?d=identicon",
		SignedInAt: time.Now().Add(-3 * time.Hour),
	}))
	html := buf.String()
	assert.Contains(t, html, "Alice")
	assert.Contains(t, html, "badge")
	assert.Contains(t, html, "3 hours ago")
	assert.Contains(t, html, "gravatar.com")
}

func TestRenderLoadingRefreshes(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, Page{View: gate.ViewLoadingSpinner, RefreshSeconds: 1}))
	assert.Contains(t, buf.String(), `http-equiv="refresh" content="1"`)
}

func TestUnknownView(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	assert.Error(t, r.Render(&bytes.Buffer{}, Page{View: gate.View(42)}))
}
