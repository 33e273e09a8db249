// Package broker implements the OAuth authorization-code flows the
// service exposes. It holds no per-user state of its own: everything a
// flow needs between redirect and callback lives in the storage layer,
// so any replica can serve any step.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/hangapp/hang/internal/crypto"
	"github.com/hangapp/hang/internal/log"
	"github.com/hangapp/hang/internal/storage"
)

const (
	ProviderGoogle = "google"
	ProviderZoom   = "zoom"

	// pendingTTL bounds how long a user can sit on the provider's
	// consent screen before the flow must be restarted.
	pendingTTL = 10 * time.Minute

	// handoffTTL bounds the window between callback completion and the
	// client picking up its session token.
	handoffTTL = 5 * time.Minute

	sessionTokenTTL = 7 * 24 * time.Hour

	calendarScope = "https://www.googleapis.com/auth/calendar.events"
)

// GoogleEndpoint is the Google OAuth 2.0 endpoint pair. Google reads
// client credentials from the form body.
var GoogleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// ZoomEndpoint is the Zoom OAuth 2.0 endpoint pair. Zoom wants client
// credentials as HTTP basic auth, not form fields.
var ZoomEndpoint = oauth2.Endpoint{
	AuthURL:   "https://zoom.us/oauth/authorize",
	TokenURL:  "https://zoom.us/oauth/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

// Credentials is one provider's confidential OAuth client
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Configured reports whether both halves of the credential are present
func (c Credentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Options configures a Broker
type Options struct {
	// BaseURL is the externally visible origin of this service, used to
	// build redirect URIs and the success page URL.
	BaseURL string

	Google Credentials
	Zoom   Credentials

	// SigningKey keys the session token HMAC
	SigningKey []byte

	// HTTPClient is used for token exchanges. Defaults to a client with
	// a 10s timeout and no retries: authorization codes are single-use,
	// so replaying an exchange can never succeed.
	HTTPClient *http.Client

	// GoogleEndpoint and ZoomEndpoint override the provider endpoints.
	// Tests point these at local fakes.
	GoogleEndpoint oauth2.Endpoint
	ZoomEndpoint   oauth2.Endpoint
}

// Broker drives OAuth flows against the configured providers and mints
// session tokens for completed ones.
type Broker struct {
	store      storage.Store
	baseURL    string
	google     Credentials
	zoom       Credentials
	signer     crypto.TokenSigner
	httpClient *http.Client

	googleEndpoint oauth2.Endpoint
	zoomEndpoint   oauth2.Endpoint
}

// New creates a Broker backed by the given store
func New(store storage.Store, opts Options) *Broker {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	googleEndpoint := opts.GoogleEndpoint
	if googleEndpoint.TokenURL == "" {
		googleEndpoint = GoogleEndpoint
	}
	zoomEndpoint := opts.ZoomEndpoint
	if zoomEndpoint.TokenURL == "" {
		zoomEndpoint = ZoomEndpoint
	}

	return &Broker{
		store:          store,
		baseURL:        strings.TrimSuffix(opts.BaseURL, "/"),
		google:         opts.Google,
		zoom:           opts.Zoom,
		signer:         crypto.NewTokenSigner(opts.SigningKey, sessionTokenTTL),
		httpClient:     httpClient,
		googleEndpoint: googleEndpoint,
		zoomEndpoint:   zoomEndpoint,
	}
}

// pendingAuth is the state persisted between redirect and callback
type pendingAuth struct {
	Provider     string `json:"provider"`
	State        string `json:"state"`
	CodeVerifier string `json:"codeVerifier,omitempty"`
	RedirectURI  string `json:"redirectUri,omitempty"`
}

// sessionClaims is the payload of a session token
type sessionClaims struct {
	UserID string `json:"userId"`
}

func pendingKey(provider, state string) string {
	return fmt.Sprintf("pkce:%s:%s", provider, state)
}

func tokenKey(userID, provider string) string {
	return fmt.Sprintf("user:%s:%s", userID, provider)
}

func handoffKey(state string) string {
	return fmt.Sprintf("callback:%s", state)
}

func (b *Broker) redirectURI() string {
	return b.baseURL + "/oauth/callback"
}

// Start begins an OAuth flow for provider and returns the authorization
// URL to send the user to. Clients that intend to poll for the result
// pass their own state; otherwise one is generated.
func (b *Broker) Start(ctx context.Context, provider, clientState string) (string, error) {
	state := clientState
	if state == "" {
		var err error
		state, err = crypto.GenerateState()
		if err != nil {
			return "", fmt.Errorf("generating state: %w", err)
		}
	}

	switch provider {
	case ProviderGoogle:
		return b.startGoogle(ctx, state)
	case ProviderZoom:
		return b.startZoom(ctx, state)
	default:
		return "", NewError(http.StatusBadRequest, "Unknown provider")
	}
}

func (b *Broker) startGoogle(ctx context.Context, state string) (string, error) {
	verifier, challenge, err := crypto.GeneratePKCE()
	if err != nil {
		return "", fmt.Errorf("generating PKCE pair: %w", err)
	}

	pending := pendingAuth{
		Provider:     ProviderGoogle,
		State:        state,
		CodeVerifier: verifier,
	}
	if err := b.putPending(ctx, pending); err != nil {
		return "", err
	}

	conf := &oauth2.Config{
		ClientID:     b.google.ClientID,
		ClientSecret: b.google.ClientSecret,
		Endpoint:     b.googleEndpoint,
		RedirectURL:  b.redirectURI(),
		Scopes:       []string{calendarScope},
	}

	authURL := conf.AuthCodeURL(ProviderGoogle+":"+state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)

	log.LogInfoWithFields("broker", "Started Google OAuth flow", map[string]any{
		"state": state,
	})
	return authURL, nil
}

func (b *Broker) startZoom(ctx context.Context, state string) (string, error) {
	// Fail before persisting anything so a misconfigured deployment
	// leaves no orphaned flow state behind.
	if b.zoom.ClientID == "" {
		return "", NewError(http.StatusInternalServerError, "Zoom OAuth credentials not configured")
	}

	pending := pendingAuth{
		Provider:    ProviderZoom,
		State:       state,
		RedirectURI: b.redirectURI(),
	}
	if err := b.putPending(ctx, pending); err != nil {
		return "", err
	}

	conf := &oauth2.Config{
		ClientID:    b.zoom.ClientID,
		Endpoint:    b.zoomEndpoint,
		RedirectURL: b.redirectURI(),
	}

	authURL := conf.AuthCodeURL(ProviderZoom + ":" + state)

	log.LogInfoWithFields("broker", "Started Zoom OAuth flow", map[string]any{
		"state": state,
	})
	return authURL, nil
}

func (b *Broker) putPending(ctx context.Context, pending pendingAuth) error {
	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("marshaling pending authorization: %w", err)
	}
	if err := b.store.Set(ctx, pendingKey(pending.Provider, pending.State), string(data), pendingTTL); err != nil {
		return fmt.Errorf("storing pending authorization: %w", err)
	}
	return nil
}

// Callback completes an OAuth flow. It exchanges the authorization code
// for provider tokens, mints a fresh opaque user identifier, issues a
// session token, and parks it under the callback key for the client to
// pick up. Returns the success page URL to redirect the browser to.
func (b *Broker) Callback(ctx context.Context, code, state, oauthErr string) (string, error) {
	log.LogDebugWithFields("broker", "OAuth callback", map[string]any{
		"hasCode":  code != "",
		"hasState": state != "",
		"error":    oauthErr,
	})

	if oauthErr != "" {
		return "", NewError(http.StatusBadRequest, "OAuth error: "+oauthErr)
	}
	if code == "" || state == "" {
		return "", NewError(http.StatusBadRequest, "Missing code or state")
	}

	// States are prefixed "provider:value". Bare states predate the
	// Zoom flow and mean Google.
	provider, actualState, found := strings.Cut(state, ":")
	if !found {
		provider, actualState = ProviderGoogle, state
	}

	raw, err := b.store.Get(ctx, pendingKey(provider, actualState))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", NewError(http.StatusBadRequest, "Invalid or expired state")
		}
		return "", fmt.Errorf("loading pending authorization: %w", err)
	}

	var pending pendingAuth
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return "", fmt.Errorf("unmarshaling pending authorization: %w", err)
	}

	redirectURI := pending.RedirectURI
	if redirectURI == "" {
		redirectURI = b.redirectURI()
	}

	var token *oauth2.Token
	switch provider {
	case ProviderGoogle:
		token, err = b.exchangeGoogle(ctx, code, redirectURI, pending.CodeVerifier)
	case ProviderZoom:
		token, err = b.exchangeZoom(ctx, code, redirectURI)
	default:
		return "", NewError(http.StatusBadRequest, "Unknown provider")
	}
	if err != nil {
		return "", err
	}

	userID, err := crypto.GenerateUserID()
	if err != nil {
		return "", fmt.Errorf("generating user ID: %w", err)
	}

	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(time.Hour)
	}
	record := TokenRecord{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    expiresAt,
	}
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshaling token record: %w", err)
	}
	// Provider tokens live until replaced by a new flow, no TTL
	if err := b.store.Set(ctx, tokenKey(userID, provider), string(recordJSON), 0); err != nil {
		return "", fmt.Errorf("storing provider tokens: %w", err)
	}

	sessionToken, err := b.signer.Sign(sessionClaims{UserID: userID})
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	if err := b.store.Set(ctx, handoffKey(actualState), sessionToken, handoffTTL); err != nil {
		return "", fmt.Errorf("storing session token handoff: %w", err)
	}

	if err := b.store.Delete(ctx, pendingKey(provider, actualState)); err != nil {
		log.LogWarnWithFields("broker", "Failed to delete pending authorization", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("broker", "OAuth flow completed", map[string]any{
		"provider": provider,
		"userId":   userID,
	})

	return fmt.Sprintf("%s/oauth/success?state=%s", b.baseURL, url.QueryEscape(actualState)), nil
}

func (b *Broker) exchangeGoogle(ctx context.Context, code, redirectURI, verifier string) (*oauth2.Token, error) {
	conf := &oauth2.Config{
		ClientID:     b.google.ClientID,
		ClientSecret: b.google.ClientSecret,
		Endpoint:     b.googleEndpoint,
		RedirectURL:  redirectURI,
	}

	token, err := conf.Exchange(b.exchangeContext(ctx), code,
		oauth2.SetAuthURLParam("code_verifier", verifier))
	if err != nil {
		return nil, exchangeError(err)
	}
	return token, nil
}

func (b *Broker) exchangeZoom(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	if !b.zoom.Configured() {
		return nil, NewError(http.StatusInternalServerError, "Zoom OAuth credentials not configured")
	}

	conf := &oauth2.Config{
		ClientID:     b.zoom.ClientID,
		ClientSecret: b.zoom.ClientSecret,
		Endpoint:     b.zoomEndpoint,
		RedirectURL:  redirectURI,
	}

	token, err := conf.Exchange(b.exchangeContext(ctx), code)
	if err != nil {
		return nil, exchangeError(err)
	}
	return token, nil
}

// exchangeContext routes the oauth2 library's token request through the
// broker's HTTP client.
func (b *Broker) exchangeContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
}

// exchangeError maps a token exchange failure to a flow error. Provider
// rejections surface the provider's response body so the user can see
// what the provider objected to.
func exchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return NewError(http.StatusBadRequest, "Token exchange failed: "+string(retrieveErr.Body))
	}
	return fmt.Errorf("token exchange: %w", err)
}

// RetrieveSessionToken returns the session token parked for state and
// consumes it. A second call for the same state misses.
func (b *Broker) RetrieveSessionToken(ctx context.Context, state string) (string, error) {
	token, err := b.store.Get(ctx, handoffKey(state))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", NewError(http.StatusNotFound, "Token not found or expired")
		}
		return "", fmt.Errorf("loading session token handoff: %w", err)
	}

	if err := b.store.Delete(ctx, handoffKey(state)); err != nil {
		return "", fmt.Errorf("consuming session token handoff: %w", err)
	}
	return token, nil
}
