package handler

import (
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/jon4hz/botconsole/internal/config"
	"github.com/jon4hz/botconsole/internal/gate"
	"github.com/jon4hz/botconsole/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLocation(t *testing.T) {
	u, err := url.Parse("/users?token=T1&tab=all")
	require.NoError(t, err)
	loc := newRequestLocation(u)

	select {
	case <-loc.Replaced():
		t.Fatal("location must not start replaced")
	default:
	}

	stripped, err := url.Parse("/users?tab=all")
	require.NoError(t, err)
	loc.Replace(stripped)
	loc.Replace(stripped)

	<-loc.Replaced()
	assert.Equal(t, "/users?tab=all", loc.URL().RequestURI())
	assert.Equal(t, "/users?token=T1&tab=all", u.RequestURI(), "request URL stays untouched")
}

func TestFormError(t *testing.T) {
	h := &Handler{config: &config.Config{CloudPassword: &config.CloudPasswordConfig{MinLength: 10}}}

	tests := []struct {
		name string
		err  error
		snap gate.Snapshot
		want string
	}{
		{"required", gate.ErrPasswordRequired, gate.Snapshot{}, "Please enter a password."},
		{"too short", fmt.Errorf("%w (minimum 10 characters)", gate.ErrPasswordTooShort), gate.Snapshot{}, "The password must be at least 10 characters long."},
		{"mismatch", gate.ErrPasswordMismatch, gate.Snapshot{}, "The passwords do not match."},
		{"locked", gate.ErrTooManyAttempts, gate.Snapshot{LockedUntil: time.Now().Add(90 * time.Minute)}, "Too many failed attempts. Try again 1 hour from now."},
		{"locked without time", gate.ErrTooManyAttempts, gate.Snapshot{}, "Too many failed attempts. Try again later."},
		{
			"wrong password",
			fmt.Errorf("%w: %w", gate.ErrVerifyFailed, fmt.Errorf("%w: %w", platform.ErrWrongPassword, &platform.APIError{StatusCode: 401, Detail: "Invalid password"})),
			gate.Snapshot{}, "Wrong password.",
		},
		{
			"server detail",
			fmt.Errorf("%w: %w", gate.ErrSetupFailed, &platform.APIError{StatusCode: 422, Detail: "password too common"}),
			gate.Snapshot{}, "password too common",
		},
		{
			"server error",
			fmt.Errorf("%w: %w", gate.ErrSetupFailed, &platform.APIError{StatusCode: 500, Detail: "traceback"}),
			gate.Snapshot{}, "The password could not be saved. Please try again.",
		},
		{"unknown", errors.New("boom"), gate.Snapshot{}, "Something went wrong. Please try again."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, h.formError(tt.err, tt.snap))
		})
	}
}

func TestNewRejectsInvalidPlatformURL(t *testing.T) {
	_, err := New(&config.Config{Platform: &config.PlatformConfig{URL: "://bad"}}, nil, nil)
	assert.Error(t, err)
}
