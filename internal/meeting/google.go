package meeting

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hangapp/hang/internal/broker"
	"github.com/hangapp/hang/internal/log"
)

// meetingDuration is the nominal length of the throwaway calendar
// event. The event is deleted right after creation; only the attached
// Meet link survives.
const meetingDuration = time.Hour

var _ Creator = (*GoogleCreator)(nil)

// GoogleCreator creates Google Meet links by inserting a calendar event
// with a conference request and deleting the event once the link is
// extracted.
type GoogleCreator struct {
	tokens     TokenSource
	httpClient *http.Client

	// endpoint overrides the Calendar API base URL in tests
	endpoint string
}

// NewGoogleCreator creates a Meet link creator
func NewGoogleCreator(tokens TokenSource, httpClient *http.Client) *GoogleCreator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleCreator{
		tokens:     tokens,
		httpClient: httpClient,
	}
}

// Create makes a Meet link for userID's linked Google account
func (c *GoogleCreator) Create(ctx context.Context, userID string) (string, error) {
	record, err := c.tokens.ProviderToken(ctx, userID, broker.ProviderGoogle)
	if err != nil {
		return "", err
	}

	svc, err := c.calendarService(ctx, record.AccessToken)
	if err != nil {
		return "", fmt.Errorf("creating calendar client: %w", err)
	}

	now := time.Now()
	event := &calendar.Event{
		Summary:               "Quick Meeting",
		Visibility:            "public",
		GuestsCanInviteOthers: googleapi.Bool(true),
		GuestsCanModify:       false,
		Start: &calendar.EventDateTime{
			DateTime: now.Format(time.RFC3339),
			TimeZone: "UTC",
		},
		End: &calendar.EventDateTime{
			DateTime: now.Add(meetingDuration).Format(time.RFC3339),
			TimeZone: "UTC",
		},
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: fmt.Sprintf("meet-%d", now.UnixMilli()),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{
					Type: "hangoutsMeet",
				},
			},
		},
	}

	created, err := svc.Events.Insert("primary", event).
		ConferenceDataVersion(1).
		Context(ctx).
		Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return "", broker.NewError(apiErr.Code, "Failed to create event: "+apiErr.Body)
		}
		return "", fmt.Errorf("creating calendar event: %w", err)
	}

	link := meetLink(created)
	// The event only existed to mint the link. Deletion is best effort:
	// a leftover event is cosmetic, a lost link is not.
	if created.Id != "" {
		if err := svc.Events.Delete("primary", created.Id).Context(ctx).Do(); err != nil {
			log.LogWarnWithFields("meeting", "Failed to delete calendar event", map[string]any{
				"eventId": created.Id,
				"error":   err.Error(),
			})
		}
	}

	if link == "" {
		return "", broker.NewError(http.StatusInternalServerError, "No meeting link found")
	}
	return link, nil
}

func (c *GoogleCreator) calendarService(ctx context.Context, accessToken string) (*calendar.Service, error) {
	authClient := &http.Client{
		Timeout: c.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}),
			Base:   c.httpClient.Transport,
		},
	}

	opts := []option.ClientOption{option.WithHTTPClient(authClient)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	return calendar.NewService(ctx, opts...)
}

// meetLink extracts the joinable link from a created event, preferring
// the conference video entry point over the legacy hangoutLink field.
func meetLink(event *calendar.Event) string {
	if event.ConferenceData != nil {
		for _, ep := range event.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" && ep.Uri != "" {
				return ep.Uri
			}
		}
	}
	return event.HangoutLink
}
