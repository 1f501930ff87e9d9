// Package platform is the HTTP client for the bot platform's session endpoints.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/botconsole/internal/config"
	"github.com/jon4hz/botconsole/internal/version"
)

var (
	// ErrInvalidToken is returned when a one-time login token is unknown, expired or already consumed.
	ErrInvalidToken = errors.New("invalid or expired login token")
	// ErrWrongPassword is returned when the cloud password does not match.
	ErrWrongPassword = errors.New("wrong cloud password")
)

// APIError is a non-2xx response of the platform.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("platform request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("platform request failed with status %d: %s", e.StatusCode, e.Detail)
}

// User is the identity record issued by the platform.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role"`
	Avatar    string `json:"avatar,omitempty"`
	IsBlocked bool   `json:"is_blocked"`
}

// Valid reports whether the record carries the fields a session needs.
func (u *User) Valid() bool {
	return u != nil && u.ID > 0 && strings.TrimSpace(u.Username) != ""
}

// Session is the result of a token exchange.
type Session struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Client represents a platform API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *log.Logger
}

// New creates a new platform API client.
func New(cfg *config.PlatformConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.WithPrefix("platform"),
	}
}

type loginRequest struct {
	Token string `json:"token"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type statusResponse struct {
	IsSetup *bool `json:"isSetup"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// Login exchanges a one-time login token for a session.
func (c *Client) Login(ctx context.Context, oneTimeToken string) (*Session, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/login", "", loginRequest{Token: oneTimeToken})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && isTokenRejection(apiErr.StatusCode) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, apiErr)
		}
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("error decoding login response: %w", err)
	}
	if !session.User.Valid() || session.Token == "" {
		return nil, fmt.Errorf("login response is missing the user or token")
	}

	c.log.Debug("exchanged login token", "user_id", session.User.ID)
	return &session, nil
}

// CloudPasswordStatus reports whether a cloud password has ever been configured for the account.
func (c *Client) CloudPasswordStatus(ctx context.Context, bearer string) (bool, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/auth/cloud-password/check", bearer, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close() //nolint:errcheck

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false, fmt.Errorf("error decoding cloud password status: %w", err)
	}
	if status.IsSetup == nil {
		return false, fmt.Errorf("cloud password status response is missing isSetup")
	}
	return *status.IsSetup, nil
}

// SetupCloudPassword configures the cloud password of the account.
func (c *Client) SetupCloudPassword(ctx context.Context, bearer, password string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/cloud-password/setup", bearer, passwordRequest{Password: password})
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// VerifyCloudPassword proves knowledge of the cloud password.
func (c *Client) VerifyCloudPassword(ctx context.Context, bearer, password string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/cloud-password/verify", bearer, passwordRequest{Password: password})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && isPasswordRejection(apiErr.StatusCode) {
			return fmt.Errorf("%w: %w", ErrWrongPassword, apiErr)
		}
		return err
	}
	return resp.Body.Close()
}

// Logout ends the session on the platform.
func (c *Client) Logout(ctx context.Context, bearer string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/logout", bearer, nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// doRequest performs an HTTP request to the platform API.
func (c *Client) doRequest(ctx context.Context, method, endpoint, bearer string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "botconsole/"+version.Version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error performing request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close() //nolint:errcheck
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, &APIError{StatusCode: resp.StatusCode, Detail: parseDetail(bodyBytes)}
	}

	return resp, nil
}

// parseDetail extracts the human readable detail of an error body.
// The platform answers with {"detail": "..."} or, for validation errors, {"detail": [{"msg": "..."}]}.
func parseDetail(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil || len(er.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}

	var detail string
	if err := json.Unmarshal(er.Detail, &detail); err == nil {
		return detail
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(er.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}

	return string(er.Detail)
}

func isTokenRejection(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound, http.StatusGone:
		return true
	}
	return false
}

func isPasswordRejection(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}
