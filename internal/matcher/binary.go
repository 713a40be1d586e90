package matcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/steveyegge/dupfinder/internal/types"
)

// Binary comparison is two-phase: a cheap (extension, size) bucket pass
// over format metadata, then SHA-256 confirmation of the surviving buckets.
// The functions here are the per-format primitives; the engine owns the
// bucketing and the decision of what to hash.

// hashChunkSize bounds the buffer used while streaming a format through
// the hash. Files are never loaded into memory whole.
const hashChunkSize = 1 << 20

// SizeKey is the phase-one bucket key for a format: extension plus exact
// byte size. Formats in different size buckets cannot be byte-identical.
func SizeKey(f types.FormatRef) string {
	return strings.ToLower(f.Ext) + keySep + strconv.FormatInt(f.Size, 10)
}

// HashKey is the phase-two bucket key: the size key extended with the
// content hash.
func HashKey(f types.FormatRef, hash string) string {
	return SizeKey(f) + keySep + hash
}

// HashReader streams r through SHA-256 and returns the lower-case hex
// digest. Memory use is bounded by hashChunkSize regardless of input size.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("hashing stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
