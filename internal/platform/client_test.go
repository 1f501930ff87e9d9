package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jon4hz/botconsole/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(&config.PlatformConfig{URL: server.URL})
}

func TestLogin(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["token"] != "T1" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"detail": "token already used"}`)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"user": {"id": 42, "username": "alice", "first_name": "Alice", "role": "Admin", "is_blocked": false},
			"token": "bearer-1"
		}`)
	})

	session, err := client.Login(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), session.User.ID)
	assert.Equal(t, "alice", session.User.Username)
	assert.Equal(t, "Alice", session.User.FirstName)
	assert.Equal(t, "Admin", session.User.Role)
	assert.Equal(t, "bearer-1", session.Token)

	_, err = client.Login(context.Background(), "T2")
	require.ErrorIs(t, err, ErrInvalidToken)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "token already used", apiErr.Detail)
}

func TestLogin_ServerErrorIsNotATokenRejection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Login(context.Background(), "T1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestLogin_IncompleteResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"user": {"id": 0, "username": ""}, "token": "x"}`)
	})

	_, err := client.Login(context.Background(), "T1")
	require.Error(t, err)
}

func TestCloudPasswordStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    bool
		wantErr bool
	}{
		{name: "set up", status: http.StatusOK, body: `{"isSetup": true}`, want: true},
		{name: "not set up", status: http.StatusOK, body: `{"isSetup": false}`, want: false},
		{name: "missing field", status: http.StatusOK, body: `{}`, wantErr: true},
		{name: "garbage", status: http.StatusOK, body: `<html>`, wantErr: true},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"detail": "expired"}`, wantErr: true},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/auth/cloud-password/check", r.URL.Path)
				assert.Equal(t, "Bearer bearer-1", r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			got, err := client.CloudPasswordStatus(context.Background(), "bearer-1")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupCloudPassword(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/cloud-password/setup", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] == "taken" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			fmt.Fprint(w, `{"detail": [{"msg": "password too weak"}, {"msg": "password too common"}]}`)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.SetupCloudPassword(context.Background(), "bearer-1", "longenough1"))

	err := client.SetupCloudPassword(context.Background(), "bearer-1", "taken")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "password too weak; password too common", apiErr.Detail)
}

func TestVerifyCloudPassword(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/cloud-password/verify", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch body["password"] {
		case "right":
			w.WriteHeader(http.StatusOK)
		case "boom":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"detail": "Invalid password"}`)
		}
	})

	require.NoError(t, client.VerifyCloudPassword(context.Background(), "bearer-1", "right"))

	err := client.VerifyCloudPassword(context.Background(), "bearer-1", "wrong")
	require.ErrorIs(t, err, ErrWrongPassword)
	assert.Contains(t, err.Error(), "Invalid password")

	err = client.VerifyCloudPassword(context.Background(), "bearer-1", "boom")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrWrongPassword))
}

func TestLogout(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "/auth/logout", r.URL.Path)
		assert.Equal(t, "Bearer bearer-1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.Logout(context.Background(), "bearer-1"))
	assert.True(t, called)
}

func TestParseDetail(t *testing.T) {
	assert.Equal(t, "nope", parseDetail([]byte(`{"detail": "nope"}`)))
	assert.Equal(t, "a; b", parseDetail([]byte(`{"detail": [{"msg": "a"}, {"msg": "b"}]}`)))
	assert.Equal(t, "plain text", parseDetail([]byte("plain text\n")))
	assert.Equal(t, `{"code":1}`, parseDetail([]byte(`{"detail": {"code":1}}`)))
	assert.Equal(t, "", parseDetail(nil))
}
