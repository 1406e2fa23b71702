// Package orderid generates the opaque identifiers handed to clients when a
// sizing request is admitted.
package orderid

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Length is the number of characters of every identifier.
const Length = 45

// 34 random bytes encode to 46 unpadded URL-safe characters; the first
// Length of them carry 270 random bits.
const entropyBytes = 34

// New returns a fresh URL-safe token of Length characters.
func New() (string, error) {
	buf := make([]byte, entropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)[:Length], nil
}

// Valid reports whether id has the shape of a generated identifier.
func Valid(id string) bool {
	if len(id) != Length {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
