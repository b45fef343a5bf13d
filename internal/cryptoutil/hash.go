package cryptoutil

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"strings"
)

// HashEqual performs constant-time comparison of two hex-encoded hashes.
// Case is ignored so digests from tools printing upper-case hex still match.
func HashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(a)), []byte(strings.ToLower(b))) == 1
}

// SHA256Hex computes the SHA-256 hash of data as lower-case hex.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// IsSHA256Hex reports whether s looks like a hex-encoded SHA-256 digest.
func IsSHA256Hex(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Digest hashes a sequence of string fields. Each field is length-prefixed
// so ("ab", "c") and ("a", "bc") produce different digests.
type Digest struct {
	h hash.Hash
}

func NewDigest() *Digest { return &Digest{h: sha256.New()} }

func (d *Digest) Add(fields ...string) {
	var n [8]byte
	for _, f := range fields {
		binary.BigEndian.PutUint64(n[:], uint64(len(f)))
		d.h.Write(n[:])
		d.h.Write([]byte(f))
	}
}

// Hex returns the lower-case hex digest of everything added so far.
func (d *Digest) Hex() string { return hex.EncodeToString(d.h.Sum(nil)) }
