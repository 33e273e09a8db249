package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TokenSigner issues HMAC-signed JSON tokens with optional expiry.
// The format is base64url(json).signature, two parts joined by a dot.
// Tokens are signed, not encrypted: claims are readable by the holder.
type TokenSigner struct {
	signingKey []byte
	ttl        time.Duration
}

// NewTokenSigner creates a new token signer
func NewTokenSigner(signingKey []byte, ttl time.Duration) TokenSigner {
	return TokenSigner{
		signingKey: signingKey,
		ttl:        ttl,
	}
}

// TokenData wraps caller claims with expiry metadata
type TokenData struct {
	Data      json.RawMessage `json:"data"`
	ExpiresAt time.Time       `json:"expires_at,omitempty"`
}

// Sign marshals v to JSON, wraps it with expiry metadata, and returns
// the signed token.
func (ts *TokenSigner) Sign(v any) (string, error) {
	claims, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal claims: %w", err)
	}

	tokenData := TokenData{
		Data: claims,
	}
	if ts.ttl > 0 {
		tokenData.ExpiresAt = time.Now().Add(ts.ttl)
	}

	jsonData, err := json.Marshal(tokenData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal token data: %w", err)
	}

	signature := SignData(string(jsonData), ts.signingKey)
	return fmt.Sprintf("%s.%s", base64.RawURLEncoding.EncodeToString(jsonData), signature), nil
}

// Verify validates the signature, checks expiry, and unmarshals the
// claims into v. Any failure is returned as an error, never a panic.
func (ts *TokenSigner) Verify(token string, v any) error {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return fmt.Errorf("invalid token format")
	}

	jsonData, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return fmt.Errorf("failed to decode token data: %w", err)
	}

	if !ValidateSignedData(string(jsonData), parts[1], ts.signingKey) {
		return fmt.Errorf("invalid signature")
	}

	var tokenData TokenData
	if err := json.Unmarshal(jsonData, &tokenData); err != nil {
		return fmt.Errorf("failed to unmarshal token data: %w", err)
	}

	if !tokenData.ExpiresAt.IsZero() && time.Now().After(tokenData.ExpiresAt) {
		return fmt.Errorf("token expired")
	}

	if err := json.Unmarshal(tokenData.Data, v); err != nil {
		return fmt.Errorf("failed to unmarshal claims: %w", err)
	}

	return nil
}

// SignData computes the HMAC-SHA256 signature of data
func SignData(data string, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// ValidateSignedData checks a signature produced by SignData
func ValidateSignedData(data, signature string, key []byte) bool {
	sig, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return hmac.Equal(sig, mac.Sum(nil))
}
