// Package meeting creates instant meetings against linked provider
// accounts. Creators check the stored provider token before touching
// the provider, so an unlinked or expired account never costs an
// upstream call.
package meeting

import (
	"context"

	"github.com/hangapp/hang/internal/broker"
)

// Creator creates an instant meeting for a user and returns its join
// link.
type Creator interface {
	Create(ctx context.Context, userID string) (string, error)
}

// TokenSource resolves a user's stored provider tokens
type TokenSource interface {
	ProviderToken(ctx context.Context, userID, provider string) (*broker.TokenRecord, error)
}
