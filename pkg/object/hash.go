package object

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// OidLength is the length of a hex-encoded oid.
const OidLength = 2 * sha1.Size

// envelope returns the "kind len\0" header that prefixes every payload.
func envelope(kind Kind, size int) []byte {
	return []byte(fmt.Sprintf("%s %d\x00", kind, size))
}

// HashObject computes the oid of a payload without storing it: the SHA-1
// of the envelope "kind len\0payload".
func HashObject(kind Kind, data []byte) Oid {
	h := sha1.New()
	h.Write(envelope(kind, len(data)))
	h.Write(data)
	return Oid(hex.EncodeToString(h.Sum(nil)))
}

// ValidateOid checks that oid is 40 lowercase hex characters.
func ValidateOid(oid Oid) error {
	s := string(oid)
	if len(s) != OidLength {
		return fmt.Errorf("%w: oid %q has length %d, expected %d", ErrInvalidArgument, s, len(s), OidLength)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("%w: oid %q contains non-hex characters", ErrInvalidArgument, s)
		}
	}
	return nil
}
