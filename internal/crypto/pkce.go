package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// verifierAlphabet is the full unreserved character set allowed by
// RFC 7636 section 4.1.
const verifierAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// VerifierLength is the maximum verifier length RFC 7636 allows.
// Using the maximum gives ~756 bits of entropy over the 66-symbol set.
const VerifierLength = 128

// GeneratePKCE returns a fresh code verifier and its S256 challenge.
// Verifiers are never reused across authorization requests.
func GeneratePKCE() (verifier, challenge string, err error) {
	verifier, err = randomString(verifierAlphabet, VerifierLength)
	if err != nil {
		return "", "", err
	}
	return verifier, Challenge(verifier), nil
}

// Challenge computes the S256 code challenge for a verifier:
// base64url(SHA-256(verifier)) without padding.
func Challenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// VerifyPKCE reports whether verifier hashes to challenge under S256.
func VerifyPKCE(verifier, challenge string) bool {
	computed := Challenge(verifier)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}
