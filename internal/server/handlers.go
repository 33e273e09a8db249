package server

import (
	"errors"
	"net/http"

	"github.com/hangapp/hang/internal/broker"
	jsonwriter "github.com/hangapp/hang/internal/json"
	"github.com/hangapp/hang/internal/log"
	"github.com/hangapp/hang/internal/meeting"
)

// Handlers holds the HTTP handlers for the OAuth flows and the meeting
// API.
type Handlers struct {
	broker *broker.Broker
	google meeting.Creator
	zoom   meeting.Creator
}

// NewHandlers creates the handler set
func NewHandlers(b *broker.Broker, google, zoom meeting.Creator) *Handlers {
	return &Handlers{
		broker: b,
		google: google,
		zoom:   zoom,
	}
}

// Routes builds the service's HTTP handler with middleware applied
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /oauth/google/start", h.handleGoogleStart)
	mux.HandleFunc("GET /oauth/zoom/start", h.handleZoomStart)
	mux.HandleFunc("GET /oauth/callback", h.handleCallback)
	mux.HandleFunc("GET /oauth/success", h.handleSuccess)
	mux.HandleFunc("GET /oauth/token", h.handleTokenRetrieval)

	mux.Handle("POST /api/create-meeting",
		newSessionAuthMiddleware(h.broker, h.handleCreateMeeting))
	mux.Handle("POST /api/create-zoom-meeting",
		newSessionAuthMiddleware(h.broker, h.handleCreateZoomMeeting))

	mux.Handle("GET /health", NewHealthHandler())

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		jsonwriter.WriteNotFound(w, "Not found: "+r.URL.Path)
	})

	return ChainMiddleware(mux,
		NewLoggerMiddleware("http"),
		NewCORSMiddleware(),
		NewRecoverMiddleware("http"),
	)
}

func (h *Handlers) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	h.handleStart(w, r, broker.ProviderGoogle)
}

func (h *Handlers) handleZoomStart(w http.ResponseWriter, r *http.Request) {
	h.handleStart(w, r, broker.ProviderZoom)
}

func (h *Handlers) handleStart(w http.ResponseWriter, r *http.Request, provider string) {
	authURL, err := h.broker.Start(r.Context(), provider, r.URL.Query().Get("state"))
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *Handlers) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	successURL, err := h.broker.Callback(r.Context(),
		query.Get("code"), query.Get("state"), query.Get("error"))
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, successURL, http.StatusFound)
}

func (h *Handlers) handleSuccess(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := successPageTemplate.Execute(w, nil); err != nil {
		log.LogError("Failed to render success page: %v", err)
	}
}

// tokenResponse carries a retrieved session token
type tokenResponse struct {
	Token string `json:"token"`
}

func (h *Handlers) handleTokenRetrieval(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		jsonwriter.WriteBadRequest(w, "Missing state parameter")
		return
	}

	token, err := h.broker.RetrieveSessionToken(r.Context(), state)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = jsonwriter.Write(w, tokenResponse{Token: token})
}

// meetingResponse carries a created meeting's join link
type meetingResponse struct {
	MeetLink string `json:"meetLink"`
}

func (h *Handlers) handleCreateMeeting(w http.ResponseWriter, r *http.Request, userID string) {
	link, err := h.google.Create(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = jsonwriter.Write(w, meetingResponse{MeetLink: link})
}

func (h *Handlers) handleCreateZoomMeeting(w http.ResponseWriter, r *http.Request, userID string) {
	link, err := h.zoom.Create(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = jsonwriter.Write(w, meetingResponse{MeetLink: link})
}

// writeError maps a flow error to its HTTP response. Anything else is
// an internal failure whose details stay in the logs.
func writeError(w http.ResponseWriter, err error) {
	var flowErr *broker.Error
	if errors.As(err, &flowErr) {
		if flowErr.Code != "" {
			jsonwriter.WriteErrorCode(w, flowErr.Status, flowErr.Message, flowErr.Code)
			return
		}
		jsonwriter.WriteError(w, flowErr.Status, flowErr.Message)
		return
	}

	log.LogError("Request failed: %v", err)
	jsonwriter.WriteInternalServerError(w, "Internal server error: "+err.Error())
}
