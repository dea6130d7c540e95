// Package registry issues and tracks pending link requests keyed by
// one-time tokens. The redis subpackage is the production implementation
// shared by the bot and callback processes; Memory backs tests and
// single-process deployments.
package registry

import (
	"crypto/rand"
	"encoding/base64"
)

// tokenBytes gives 192 bits of entropy, far beyond brute-force reach within
// a token's TTL.
const tokenBytes = 24

// NewToken generates a high-entropy URL-safe one-time token.
func NewToken() (string, error) {
	seed := make([]byte, tokenBytes)
	if _, err := rand.Read(seed); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(seed), nil
}
