package b3

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"

	"lukechampine.com/blake3"
)

// shortLen is the number of hex characters kept by Short.
const shortLen = 16

// HashReader returns the hex encoded 256-bit blake3 digest of everything read from r.
func HashReader(r io.Reader) (string, error) {
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("calculating blake3 hash: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes is HashReader over an in-memory upload.
func HashBytes(b []byte) string {
	// reading from a bytes.Reader never fails
	sum, _ := HashReader(bytes.NewReader(b))
	return sum
}

// Short truncates a digest for log lines and file names.
func Short(digest string) string {
	if len(digest) <= shortLen {
		return digest
	}
	return digest[:shortLen]
}
