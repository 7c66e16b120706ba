package storage

import (
	"crypto/sha256"
	"encoding/hex"
)

// Checksum returns the hex SHA256 of data, the form stored in object metadata
// and reported in UploadResult.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
