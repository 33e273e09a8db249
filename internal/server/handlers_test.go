package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/hangapp/hang/internal/broker"
	"github.com/hangapp/hang/internal/storage"
)

// stubCreator is a meeting.Creator returning a fixed link or error
type stubCreator struct {
	link       string
	err        error
	calls      int
	lastUserID string
}

func (s *stubCreator) Create(ctx context.Context, userID string) (string, error) {
	s.calls++
	s.lastUserID = userID
	if s.err != nil {
		return "", s.err
	}
	return s.link, nil
}

type testApp struct {
	handler http.Handler
	google  *stubCreator
	zoom    *stubCreator
	broker  *broker.Broker
}

func newTestApp(t *testing.T) *testApp {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"provider-access","token_type":"Bearer","expires_in":3600}`)
	}))
	t.Cleanup(tokenSrv.Close)

	b := broker.New(storage.NewMemoryStore(), broker.Options{
		BaseURL:    "https://hang.test",
		Google:     broker.Credentials{ClientID: "google-client", ClientSecret: "google-secret"},
		Zoom:       broker.Credentials{ClientID: "zoom-client", ClientSecret: "zoom-secret"},
		SigningKey: []byte("0123456789abcdef0123456789abcdef"),
		GoogleEndpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example.com/auth",
			TokenURL:  tokenSrv.URL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		ZoomEndpoint: oauth2.Endpoint{
			AuthURL:   "https://zoom.example.com/authorize",
			TokenURL:  tokenSrv.URL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	})

	google := &stubCreator{link: "https://meet.google.com/abc-defg-hij"}
	zoom := &stubCreator{link: "https://zoom.us/j/123456789"}

	return &testApp{
		handler: NewHandlers(b, google, zoom).Routes(),
		google:  google,
		zoom:    zoom,
		broker:  b,
	}
}

func (app *testApp) do(method, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)
	return rec
}

// authenticate runs the whole flow and returns the session token the
// client would end up holding.
func (app *testApp) authenticate(t *testing.T, provider, state string) string {
	t.Helper()

	rec := app.do(http.MethodGet, fmt.Sprintf("/oauth/%s/start?state=%s", provider, state), nil)
	require.Equal(t, http.StatusFound, rec.Code)

	rec = app.do(http.MethodGet, fmt.Sprintf("/oauth/callback?code=auth-code&state=%s:%s", provider, state), nil)
	require.Equal(t, http.StatusFound, rec.Code)

	rec = app.do(http.MethodGet, "/oauth/token?state="+state, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func TestOAuthFlowEndToEnd(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodGet, "/oauth/google/start?state=abc", nil)
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	query := location.Query()
	assert.Equal(t, "S256", query.Get("code_challenge_method"))
	assert.Equal(t, "google:abc", query.Get("state"))
	assert.NotEmpty(t, query.Get("code_challenge"))

	rec = app.do(http.MethodGet, "/oauth/callback?code=auth-code&state=google:abc", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://hang.test/oauth/success?state=abc", rec.Header().Get("Location"))

	rec = app.do(http.MethodGet, "/oauth/token?state=abc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Token)

	// The handoff is single use
	rec = app.do(http.MethodGet, "/oauth/token?state=abc", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTokenRetrievalValidation(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodGet, "/oauth/token", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing state parameter")

	rec = app.do(http.MethodGet, "/oauth/token?state=never-completed", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCallbackRejections(t *testing.T) {
	app := newTestApp(t)

	t.Run("provider error", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/oauth/callback?error=access_denied", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "access_denied")
	})

	t.Run("unknown state", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/oauth/callback?code=c&state=google:bogus", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid or expired state")
	})
}

func TestSuccessPage(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodGet, "/oauth/success?state=abc", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Authentication Successful")
}

func TestCreateMeeting(t *testing.T) {
	t.Run("requires a session token", func(t *testing.T) {
		app := newTestApp(t)
		rec := app.do(http.MethodPost, "/api/create-meeting", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects a garbage token", func(t *testing.T) {
		app := newTestApp(t)
		rec := app.do(http.MethodPost, "/api/create-meeting", map[string]string{
			"Authorization": "Bearer garbage",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("creates with an authenticated session", func(t *testing.T) {
		app := newTestApp(t)
		token := app.authenticate(t, "google", "meetstate")

		rec := app.do(http.MethodPost, "/api/create-meeting", map[string]string{
			"Authorization": "Bearer " + token,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			MeetLink string `json:"meetLink"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "https://meet.google.com/abc-defg-hij", body.MeetLink)
		assert.Equal(t, 1, app.google.calls)
		assert.Len(t, app.google.lastUserID, 32)
	})

	t.Run("zoom not linked returns the machine-readable code", func(t *testing.T) {
		app := newTestApp(t)
		token := app.authenticate(t, "google", "zoomstate")
		app.zoom.err = broker.NewCodedError(http.StatusForbidden,
			broker.ZoomNotAuthenticatedCode, "Zoom account not authenticated. Please authenticate with Zoom first.")

		rec := app.do(http.MethodPost, "/api/create-zoom-meeting", map[string]string{
			"Authorization": "Bearer " + token,
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		var body struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, broker.ZoomNotAuthenticatedCode, body.Code)
	})
}

func TestCORS(t *testing.T) {
	app := newTestApp(t)

	t.Run("preflight answers empty", func(t *testing.T) {
		rec := app.do(http.MethodOptions, "/api/create-meeting", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type, Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
	})

	t.Run("headers on regular responses", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestNotFound(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not found: /nope")
}
