package meeting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hangapp/hang/internal/broker"
)

// DefaultZoomAPIBaseURL is the Zoom REST API origin
const DefaultZoomAPIBaseURL = "https://api.zoom.us"

var _ Creator = (*ZoomCreator)(nil)

// ZoomCreator creates Zoom instant meetings
type ZoomCreator struct {
	tokens     TokenSource
	httpClient *http.Client
	baseURL    string
}

// NewZoomCreator creates a Zoom meeting creator. baseURL overrides the
// Zoom API origin; empty means production.
func NewZoomCreator(tokens TokenSource, httpClient *http.Client, baseURL string) *ZoomCreator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultZoomAPIBaseURL
	}
	return &ZoomCreator{
		tokens:     tokens,
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

// zoomMeetingRequest is the instant meeting creation payload. Type 1 is
// an instant meeting with no scheduled start.
type zoomMeetingRequest struct {
	Topic    string       `json:"topic"`
	Type     int          `json:"type"`
	Settings zoomSettings `json:"settings"`
}

type zoomSettings struct {
	JoinBeforeHost   bool   `json:"join_before_host"`
	ParticipantVideo bool   `json:"participant_video"`
	HostVideo        bool   `json:"host_video"`
	MuteUponEntry    bool   `json:"mute_upon_entry"`
	ApprovalType     int    `json:"approval_type"`
	Audio            string `json:"audio"`
	AutoRecording    string `json:"auto_recording"`
}

type zoomMeetingResponse struct {
	ID      int64  `json:"id"`
	JoinURL string `json:"join_url"`
}

// Create makes an instant meeting on userID's linked Zoom account
func (c *ZoomCreator) Create(ctx context.Context, userID string) (string, error) {
	record, err := c.tokens.ProviderToken(ctx, userID, broker.ProviderZoom)
	if err != nil {
		return "", err
	}

	payload := zoomMeetingRequest{
		Topic: "Quick Meeting",
		Type:  1,
		Settings: zoomSettings{
			JoinBeforeHost:   true,
			ParticipantVideo: false,
			HostVideo:        false,
			MuteUponEntry:    false,
			ApprovalType:     0,
			Audio:            "both",
			AutoRecording:    "none",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling meeting request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v2/users/me/meetings", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building meeting request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+record.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("creating Zoom meeting: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading Zoom response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", broker.NewError(resp.StatusCode, "Failed to create Zoom meeting: "+string(respBody))
	}

	var meeting zoomMeetingResponse
	if err := json.Unmarshal(respBody, &meeting); err != nil {
		return "", fmt.Errorf("unmarshaling Zoom response: %w", err)
	}
	if meeting.JoinURL == "" {
		return "", broker.NewError(http.StatusInternalServerError, "No meeting link found in Zoom response")
	}
	return meeting.JoinURL, nil
}
