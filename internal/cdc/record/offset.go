package record

import (
	"bytes"
	"encoding/hex"
	"strings"
)

// OffsetSize is the exact byte width of a partition log position.
const OffsetSize = 24

// Offset marks a position in one partition's change log. It is opaque:
// offsets are compared by raw byte value and are only ordered within a
// single partition. There is no offset arithmetic.
type Offset struct {
	data [OffsetSize]byte
}

// NewOffset builds an Offset from raw bytes. The input must be exactly
// OffsetSize bytes long.
func NewOffset(data []byte) (Offset, error) {
	var o Offset
	if len(data) != OffsetSize {
		return o, &DecodeError{
			Kind: DecodeBadOffset,
			Want: OffsetSize,
			Have: len(data),
			Err:  ErrBadOffsetSize,
		}
	}
	copy(o.data[:], data)
	return o, nil
}

// Bytes returns a copy of the raw offset bytes.
func (o Offset) Bytes() []byte {
	out := make([]byte, OffsetSize)
	copy(out, o.data[:])
	return out
}

// String returns the hex display form used in resume requests and logs.
func (o Offset) String() string {
	return hex.EncodeToString(o.data[:])
}

// Equal reports whether two offsets hold identical bytes.
func (o Offset) Equal(other Offset) bool {
	return o.data == other.data
}

// Compare orders two offsets from the same partition. The result is
// meaningless for offsets taken from different partitions.
func (o Offset) Compare(other Offset) int {
	return bytes.Compare(o.data[:], other.data[:])
}

// SerializeOffsets renders per-partition resume offsets as the
// comma-separated clause body the server expects: the literal NULL for
// an absent entry ("from the beginning of that partition's retained
// log"), a quoted hex string for a present one. Entries are positionally
// aligned to partition index.
func SerializeOffsets(offsets []*Offset) string {
	parts := make([]string, len(offsets))
	for i, o := range offsets {
		if o == nil {
			parts[i] = "NULL"
		} else {
			parts[i] = "'" + o.String() + "'"
		}
	}
	return strings.Join(parts, ",")
}
