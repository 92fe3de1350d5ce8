package sample

import (
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/encmarket/threshold-elgamal/internal/params"
)

const maxIterations = 255

var ErrMaxIterations = fmt.Errorf("sample: failed to generate after %d iterations", maxIterations)

func readBits(rand io.Reader, buf []byte) error {
	if _, err := io.ReadFull(rand, buf); err != nil {
		return fmt.Errorf("sample: read randomness: %w", err)
	}
	return nil
}

// ModN samples an element of ℤₙ.
//
// Candidates are drawn with exactly n.BitLen() bits, so each attempt succeeds
// with probability at least 1/2.
func ModN(rand io.Reader, n *saferith.Modulus) (*saferith.Nat, error) {
	bits := n.BitLen()
	buf := make([]byte, (bits+7)/8)
	mask := byte(0xFF >> uint(len(buf)*8-bits))
	out := new(saferith.Nat)
	for i := 0; i < maxIterations; i++ {
		if err := readBits(rand, buf); err != nil {
			return nil, err
		}
		buf[0] &= mask
		out.SetBytes(buf)
		if _, _, lt := out.CmpMod(n); lt == 1 {
			return out, nil
		}
	}
	return nil, ErrMaxIterations
}

// NonZeroModN returns x ∈ [1, n-1].
func NonZeroModN(rand io.Reader, n *saferith.Modulus) (*saferith.Nat, error) {
	for i := 0; i < maxIterations; i++ {
		x, err := ModN(rand, n)
		if err != nil {
			return nil, err
		}
		if x.EqZero() != 1 {
			return x, nil
		}
	}
	return nil, ErrMaxIterations
}

// UnitModN returns a u ∈ ℤₙˣ.
func UnitModN(rand io.Reader, n *saferith.Modulus) (*saferith.Nat, error) {
	for i := 0; i < maxIterations; i++ {
		// PERF: Reuse buffer instead of allocating each time
		u, err := ModN(rand, n)
		if err != nil {
			return nil, err
		}
		if u.IsUnit(n) == 1 {
			return u, nil
		}
	}
	return nil, ErrMaxIterations
}

// Challenge reads a Fiat-Shamir challenge in ℤₙ from the output of a hash.
//
// It reads StatParam more bits than n has, so that the bias of the final
// reduction is negligible.
func Challenge(digest io.Reader, n *saferith.Modulus) (*saferith.Nat, error) {
	buf := make([]byte, (n.BitLen()+params.StatParam+7)/8)
	if err := readBits(digest, buf); err != nil {
		return nil, err
	}
	e := new(saferith.Nat).SetBytes(buf)
	return e.Mod(e, n), nil
}
