package movieapi

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// NewClientID returns a client-side movie id: "movie-" followed by 12 lowercase
// hex characters taken from a random UUID.
func NewClientID() string {
	return "movie-" + RandomHex(12)
}

// RandomHex returns n lowercase hex characters (n <= 32) from a random UUID.
func RandomHex(n int) string {
	u := uuid.New()
	return hex.EncodeToString(u[:])[:n]
}
