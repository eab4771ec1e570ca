package security

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// HashReader computes the SHA-256 digest of everything read from r and
// returns it hex encoded along with the number of bytes consumed.
func HashReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// HashBytes computes the hex encoded SHA-256 digest of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
