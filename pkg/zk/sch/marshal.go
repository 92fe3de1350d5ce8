package zksch

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/cronokirby/saferith"
	"github.com/fxamacker/cbor/v2"
)

var errInvalidPublic = errors.New("zksch: public value must be a non identity element")

type proofCBOR struct {
	C, Z []byte
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (p *Proof) MarshalBinary() ([]byte, error) {
	if p.C.C == nil || p.Z == nil {
		return nil, errors.New("zksch: marshal incomplete proof")
	}
	return cbor.Marshal(&proofCBOR{
		C: p.group.ElementBytes(p.C.C),
		Z: p.Z.Big().Bytes(),
	})
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
// The proof must have been created with Empty.
func (p *Proof) UnmarshalBinary(data []byte) error {
	if p.group == nil {
		return errors.New("zksch: unmarshal into a proof without group, use Empty")
	}
	var raw proofCBOR
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("zksch: unmarshal: %w", err)
	}
	c, err := p.group.ElementFromBytes(raw.C)
	if err != nil {
		return fmt.Errorf("zksch: unmarshal C: %w", err)
	}
	order := p.group.Order()
	z := new(big.Int).SetBytes(raw.Z)
	if z.Cmp(order.Big()) >= 0 {
		return errors.New("zksch: unmarshal Z: response out of range")
	}
	p.C = Commitment{C: c}
	p.Z = new(saferith.Nat).SetBig(z, order.BitLen())
	return nil
}
