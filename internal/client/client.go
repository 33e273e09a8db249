// Package client talks to the broker service from the user's machine.
// It opens the browser for OAuth, polls for the resulting session
// token, caches it, and creates meetings with it.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hangapp/hang/internal/broker"
	"github.com/hangapp/hang/internal/crypto"
	"github.com/hangapp/hang/internal/log"
)

// BrowserOpener opens a URL in the user's browser
type BrowserOpener func(url string) error

// Client drives authentication and meeting creation against a broker
// service.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	tokens       TokenStore
	openBrowser  BrowserOpener
	pollInterval time.Duration
	pollAttempts int
}

// New creates a Client for the configured backend
func New(cfg Config, tokens TokenStore, openBrowser BrowserOpener) *Client {
	return &Client{
		baseURL:      strings.TrimSuffix(cfg.BackendURL, "/"),
		httpClient:   &http.Client{Timeout: cfg.RequestTimeout},
		tokens:       tokens,
		openBrowser:  openBrowser,
		pollInterval: cfg.PollInterval,
		pollAttempts: cfg.PollAttempts,
	}
}

// EnsureSession returns a session token, running the OAuth flow for
// provider if none is cached. The flow opens the user's browser and
// polls the broker until the completed flow's token shows up.
func (c *Client) EnsureSession(ctx context.Context, provider string) (string, error) {
	token, err := c.tokens.Get()
	if err != nil {
		return "", err
	}
	if token != "" {
		return token, nil
	}

	state, err := crypto.GenerateState()
	if err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}

	startURL := fmt.Sprintf("%s/oauth/%s/start?state=%s", c.baseURL, provider, url.QueryEscape(state))
	if err := c.openBrowser(startURL); err != nil {
		return "", fmt.Errorf("opening browser: %w", err)
	}

	log.LogInfoWithFields("client", "Waiting for authentication", map[string]any{
		"provider": provider,
	})

	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}

		token, ok := c.pollToken(ctx, state)
		if ok {
			if err := c.tokens.Set(token); err != nil {
				return "", err
			}
			return token, nil
		}
	}

	return "", fmt.Errorf("authentication timeout: complete authentication in your browser and try again")
}

// pollToken asks the broker whether the flow for state has completed.
// Transient failures are indistinguishable from "not yet" and just
// mean another poll.
func (c *Client) pollToken(ctx context.Context, state string) (string, bool) {
	reqURL := fmt.Sprintf("%s/oauth/token?state=%s", c.baseURL, url.QueryEscape(state))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Token == "" {
		return "", false
	}
	return body.Token, true
}

// CreateMeeting creates a Google Meet link, authenticating first if
// needed.
func (c *Client) CreateMeeting(ctx context.Context) (string, error) {
	return c.createMeeting(ctx, broker.ProviderGoogle, "/api/create-meeting", googleNotLinked)
}

// CreateZoomMeeting creates a Zoom meeting link, authenticating first
// if needed.
func (c *Client) CreateZoomMeeting(ctx context.Context) (string, error) {
	return c.createMeeting(ctx, broker.ProviderZoom, "/api/create-zoom-meeting", zoomNotLinked)
}

// createMeeting runs the create request with the cached session,
// handling the two recoverable failures: an expired session (401, user
// must rerun) and a valid session with no linked provider account (403,
// re-auth once and retry).
func (c *Client) createMeeting(ctx context.Context, provider, path string, notLinked func(string) bool) (string, error) {
	token, err := c.EnsureSession(ctx, provider)
	if err != nil {
		return "", err
	}

	status, body, err := c.postMeeting(ctx, path, token)
	if err != nil {
		return "", err
	}

	switch {
	case status == http.StatusUnauthorized:
		_ = c.tokens.Clear()
		return "", fmt.Errorf("authentication expired, run the command again to re-authenticate")

	case status == http.StatusForbidden && notLinked(body):
		// The session is fine but this provider was never linked.
		// Clear the cache so EnsureSession runs the provider's flow,
		// then retry once.
		if err := c.tokens.Clear(); err != nil {
			return "", err
		}
		newToken, err := c.EnsureSession(ctx, provider)
		if err != nil {
			return "", err
		}
		retryStatus, retryBody, err := c.postMeeting(ctx, path, newToken)
		if err != nil {
			return "", err
		}
		if retryStatus != http.StatusOK {
			return "", fmt.Errorf("failed to create meeting after authentication: %s", retryBody)
		}
		return extractLink(retryBody)

	case status != http.StatusOK:
		return "", fmt.Errorf("failed to create meeting (%d): %s", status, body)
	}

	return extractLink(body)
}

func (c *Client) postMeeting(ctx context.Context, path, token string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return 0, "", fmt.Errorf("building meeting request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("creating meeting: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", fmt.Errorf("reading meeting response: %w", err)
	}
	return resp.StatusCode, string(body), nil
}

func extractLink(body string) (string, error) {
	var parsed struct {
		MeetLink string `json:"meetLink"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return "", fmt.Errorf("unmarshaling meeting response: %w", err)
	}
	if parsed.MeetLink == "" {
		return "", fmt.Errorf("no meeting link found in response")
	}
	return parsed.MeetLink, nil
}

func googleNotLinked(body string) bool {
	return strings.Contains(body, "Google account not authenticated")
}

func zoomNotLinked(body string) bool {
	var parsed struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return false
	}
	return parsed.Code == broker.ZoomNotAuthenticatedCode
}
