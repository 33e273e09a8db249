package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hangapp/hang/internal/storage"
)

// ZoomNotAuthenticatedCode tells clients the failure is a missing Zoom
// link rather than a bad session, so they can start a Zoom flow instead
// of re-authenticating.
const ZoomNotAuthenticatedCode = "ZOOM_NOT_AUTHENTICATED"

// TokenRecord is a provider token set stored for a linked account
type TokenRecord struct {
	AccessToken string `json:"access_token"`

	// RefreshToken is stored but never used: expired access tokens
	// send the user back through the OAuth flow instead.
	RefreshToken string `json:"refresh_token,omitempty"`

	ExpiresAt time.Time `json:"expires_at"`
}

// VerifySession validates a session token and returns the user ID it
// was minted for.
func (b *Broker) VerifySession(token string) (string, error) {
	var claims sessionClaims
	if err := b.signer.Verify(token, &claims); err != nil {
		return "", NewError(http.StatusUnauthorized, "Invalid token")
	}
	return claims.UserID, nil
}

// ProviderToken loads the stored token record for a linked provider
// account. Failures map to the responses meeting endpoints return: 403
// when the account was never linked, 401 when its token has expired.
func (b *Broker) ProviderToken(ctx context.Context, userID, provider string) (*TokenRecord, error) {
	raw, err := b.store.Get(ctx, tokenKey(userID, provider))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notLinkedError(provider)
		}
		return nil, fmt.Errorf("loading provider tokens: %w", err)
	}

	var record TokenRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("unmarshaling provider tokens: %w", err)
	}

	if time.Now().After(record.ExpiresAt) {
		return nil, NewError(http.StatusUnauthorized, "Token expired - please re-authenticate")
	}
	return &record, nil
}

func notLinkedError(provider string) *Error {
	if provider == ProviderZoom {
		return NewCodedError(http.StatusForbidden, ZoomNotAuthenticatedCode,
			"Zoom account not authenticated. Please authenticate with Zoom first.")
	}
	return NewError(http.StatusForbidden,
		"Google account not authenticated. Please authenticate with Google first.")
}
