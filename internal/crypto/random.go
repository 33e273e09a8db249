package crypto

import (
	"crypto/rand"
	"fmt"
)

const (
	stateAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// stateLength is shared by OAuth state parameters and user identifiers
	stateLength = 32
)

// randomString draws length characters uniformly from alphabet using
// crypto/rand. Alphabets here are at most 66 symbols, so rejection
// sampling over a single byte stays cheap.
func randomString(alphabet string, length int) (string, error) {
	n := len(alphabet)
	max := 256 - (256 % n)

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= max {
				continue
			}
			out = append(out, alphabet[int(b)%n])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// GenerateState creates a random OAuth state parameter
func GenerateState() (string, error) {
	return randomString(stateAlphabet, stateLength)
}

// GenerateUserID creates a new opaque user identifier. IDs are minted
// fresh for every completed OAuth flow and carry no external identity.
func GenerateUserID() (string, error) {
	return randomString(stateAlphabet, stateLength)
}
