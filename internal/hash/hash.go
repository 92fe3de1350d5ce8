package hash

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/cronokirby/saferith"
	"github.com/encmarket/threshold-elgamal/internal/params"
	"github.com/zeebo/blake3"
)

const DigestLengthBytes = params.DigestLengthBytes

// Hash is the transcript hash used for Fiat-Shamir challenges and commitments.
//
// Internally, this is a wrapper around blake3, whose extendable output lets
// proofs read as many challenge bytes as the group order requires.
type Hash struct {
	h *blake3.Hasher
}

// New creates a Hash whose state is initialized with the given domain strings.
func New(domains ...string) *Hash {
	hash := &Hash{h: blake3.New()}
	for _, d := range domains {
		_ = hash.WriteAny(&BytesWithDomain{TheDomain: "Domain", Bytes: []byte(d)})
	}
	return hash
}

// Digest returns the extendable output of the current state. The hash can
// still be written to afterwards.
func (hash *Hash) Digest() io.Reader {
	return hash.h.Digest()
}

// Sum returns the first DigestLengthBytes bytes of Digest.
func (hash *Hash) Sum() []byte {
	out := make([]byte, DigestLengthBytes)
	if _, err := io.ReadFull(hash.Digest(), out); err != nil {
		panic(fmt.Sprintf("hash.Sum: internal hash failure: %v", err))
	}
	return out
}

// WriteAny appends each item to the transcript, prefixed by its domain. Items
// may be of type:
//
//   - []byte
//   - *big.Int
//   - *saferith.Nat
//   - *saferith.Modulus
//   - hash.WriterToWithDomain
//
// Integers are written without leading zeros, so that the same value always
// hashes identically regardless of the capacity it was announced with.
func (hash *Hash) WriteAny(data ...interface{}) error {
	var err error
	for _, d := range data {
		switch t := d.(type) {
		case []byte:
			err = writeWithDomain(hash.h, &BytesWithDomain{
				TheDomain: "[]byte",
				Bytes:     t,
			})
			if err != nil {
				return fmt.Errorf("hash.Hash: write []byte: %w", err)
			}
		case *big.Int:
			if t == nil {
				return fmt.Errorf("hash.Hash: write *big.Int: nil")
			}
			if t.Sign() < 0 {
				return fmt.Errorf("hash.Hash: write *big.Int: negative value")
			}
			err = writeWithDomain(hash.h, &BytesWithDomain{
				TheDomain: "big.Int",
				Bytes:     t.Bytes(),
			})
			if err != nil {
				return fmt.Errorf("hash.Hash: write *big.Int: %w", err)
			}
		case *saferith.Nat:
			if t == nil {
				return fmt.Errorf("hash.Hash: write *saferith.Nat: nil")
			}
			err = writeWithDomain(hash.h, &BytesWithDomain{
				TheDomain: "saferith.Nat",
				Bytes:     t.Big().Bytes(),
			})
			if err != nil {
				return fmt.Errorf("hash.Hash: write *saferith.Nat: %w", err)
			}
		case *saferith.Modulus:
			if t == nil {
				return fmt.Errorf("hash.Hash: write *saferith.Modulus: nil")
			}
			err = writeWithDomain(hash.h, &BytesWithDomain{
				TheDomain: "saferith.Modulus",
				Bytes:     t.Big().Bytes(),
			})
			if err != nil {
				return fmt.Errorf("hash.Hash: write *saferith.Modulus: %w", err)
			}
		case WriterToWithDomain:
			if err = writeWithDomain(hash.h, t); err != nil {
				return fmt.Errorf("hash.Hash: write io.WriterTo: %w", err)
			}
		default:
			return fmt.Errorf("hash.Hash: unsupported type %T", d)
		}
	}
	return nil
}

// Clone forks the transcript.
func (hash *Hash) Clone() *Hash {
	return &Hash{h: hash.h.Clone()}
}

// writeLength writes the length prefix of a domain separated item.
func writeLength(w io.Writer, n int) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	_, err := w.Write(buf[:])
	return err
}
