package group

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/sha3"
)

const deriveDomain = "threshold-elgamal generator"

// DeriveGenerator validates the safe prime p and derives a generator of its
// prime order subgroup from seed.
//
// g = H(seed ‖ ctr)² mod p, where H is cSHAKE256 producing |p| + 128 bits and ctr
// is the first counter giving g ∉ {0, 1}. Anyone holding seed can recompute g,
// so nobody knows its discrete logarithm with respect to another generator.
func DeriveGenerator(p *big.Int, seed []byte) (*Parameters, error) {
	// validate p with a placeholder generator first
	if _, err := New(p, big.NewInt(2)); err != nil {
		return nil, err
	}
	outLen := (p.BitLen() + 128 + 7) / 8
	buf := make([]byte, outLen)
	one := big.NewInt(1)
	for ctr := uint32(0); ctr < 256; ctr++ {
		h := sha3.NewCShake256(nil, []byte(deriveDomain))
		_, _ = h.Write(seed)
		var ctrBytes [4]byte
		binary.BigEndian.PutUint32(ctrBytes[:], ctr)
		_, _ = h.Write(ctrBytes[:])
		if _, err := io.ReadFull(h, buf); err != nil {
			return nil, fmt.Errorf("group: derive generator: %w", err)
		}
		x := new(big.Int).SetBytes(buf)
		x.Mod(x, p)
		x.Exp(x, big.NewInt(2), p)
		if x.Sign() == 0 || x.Cmp(one) == 0 {
			continue
		}
		return New(p, x)
	}
	return nil, fmt.Errorf("%w: could not derive a generator", ErrInvalidParameters)
}
