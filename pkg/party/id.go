package party

import (
	"encoding/binary"
	"errors"
	"strconv"

	"github.com/cronokirby/saferith"
)

// ByteSize is the number of bytes required to store an ID.
const ByteSize = 2

// MAX is the maximum integer that can represent a party.
const MAX = (1 << (ByteSize * 8)) - 1

var ErrZeroID = errors.New("party: ID cannot be 0")

// ID represents the identifier of a participant holding a key or key share.
//
// IDs double as the evaluation points of a Shamir sharing, which is why 0 is never a valid ID.
type ID uint16

// Nat returns the ID as a saferith.Nat.
func (id ID) Nat() *saferith.Nat {
	return new(saferith.Nat).SetUint64(uint64(id))
}

// Bytes returns a []byte slice of length party.ByteSize
func (id ID) Bytes() []byte {
	bytes := make([]byte, ByteSize)
	binary.BigEndian.PutUint16(bytes, uint16(id))
	return bytes
}

// String returns a base 10 representation of ID
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// FromBytes reads the first party.ByteSize bytes from b and creates an ID from it.
func FromBytes(b []byte) ID {
	return ID(binary.BigEndian.Uint16(b))
}

// IDFromString reads a base 10 string and attempts to generate a non zero ID from it.
func IDFromString(str string) (ID, error) {
	p, err := strconv.ParseUint(str, 10, 16)
	if err != nil {
		return 0, err
	}
	if p == 0 {
		return 0, ErrZeroID
	}
	return ID(p), nil
}
