package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Fingerprint returns a SHA-256 hash of the token string, hex-encoded.
// Sessions and the revocation list key tokens by fingerprint so the raw
// token is never stored server-side.
func Fingerprint(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// FingerprintEqual performs constant-time comparison of the provided token's
// fingerprint with the stored one. Returns true only if they match.
func FingerprintEqual(providedToken, storedFingerprint string) bool {
	provided := Fingerprint(providedToken)
	return subtle.ConstantTimeCompare([]byte(provided), []byte(storedFingerprint)) == 1
}
