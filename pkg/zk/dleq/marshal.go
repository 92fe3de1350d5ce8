package zkdleq

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/cronokirby/saferith"
	"github.com/fxamacker/cbor/v2"
)

type proofCBOR struct {
	A, B, Z []byte
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (p *Proof) MarshalBinary() ([]byte, error) {
	if p.Commitment == nil || p.Z == nil {
		return nil, errors.New("zkdleq: marshal incomplete proof")
	}
	return cbor.Marshal(&proofCBOR{
		A: p.group.ElementBytes(p.A),
		B: p.group.ElementBytes(p.B),
		Z: p.Z.Big().Bytes(),
	})
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
// The proof must have been created with Empty.
func (p *Proof) UnmarshalBinary(data []byte) error {
	if p.group == nil {
		return errors.New("zkdleq: unmarshal into a proof without group, use Empty")
	}
	var raw proofCBOR
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("zkdleq: unmarshal: %w", err)
	}
	a, err := p.group.ElementFromBytes(raw.A)
	if err != nil {
		return fmt.Errorf("zkdleq: unmarshal A: %w", err)
	}
	b, err := p.group.ElementFromBytes(raw.B)
	if err != nil {
		return fmt.Errorf("zkdleq: unmarshal B: %w", err)
	}
	order := p.group.Order()
	z := new(big.Int).SetBytes(raw.Z)
	if z.Cmp(order.Big()) >= 0 {
		return errors.New("zkdleq: unmarshal Z: response out of range")
	}
	p.Commitment = &Commitment{A: a, B: b}
	p.Z = new(saferith.Nat).SetBig(z, order.BitLen())
	return nil
}
