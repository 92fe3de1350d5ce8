package group

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/cronokirby/saferith"
	"github.com/fxamacker/cbor/v2"
)

// Format returns the base 10 representation of x.
func Format(x *saferith.Nat) string {
	if x == nil {
		return ""
	}
	return x.Big().String()
}

func parseDecimal(s string) (*big.Int, error) {
	x, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a base 10 integer", ErrInvalidElement, s)
	}
	return x, nil
}

// Element converts x to a group element, checking that x ∈ [1, p-1].
func (g *Parameters) Element(x *big.Int) (*saferith.Nat, error) {
	if x == nil || x.Sign() <= 0 || x.Cmp(g.p.Big()) >= 0 {
		return nil, fmt.Errorf("%w: value outside [1, p-1]", ErrInvalidElement)
	}
	return new(saferith.Nat).SetBig(x, g.p.BitLen()), nil
}

// Exponent converts x to an exponent, checking that x ∈ [1, Order()-1].
func (g *Parameters) Exponent(x *big.Int) (*saferith.Nat, error) {
	if x == nil || x.Sign() <= 0 || x.Cmp(g.order.Big()) >= 0 {
		return nil, fmt.Errorf("%w: exponent outside [1, order-1]", ErrInvalidElement)
	}
	return new(saferith.Nat).SetBig(x, g.order.BitLen()), nil
}

// ParseElement parses a base 10 string into a group element.
func (g *Parameters) ParseElement(s string) (*saferith.Nat, error) {
	x, err := parseDecimal(s)
	if err != nil {
		return nil, err
	}
	return g.Element(x)
}

// ParseExponent parses a base 10 string into an exponent.
func (g *Parameters) ParseExponent(s string) (*saferith.Nat, error) {
	x, err := parseDecimal(s)
	if err != nil {
		return nil, err
	}
	return g.Exponent(x)
}

// ElementBytes returns x as a big endian integer of exactly ByteLen() bytes.
func (g *Parameters) ElementBytes(x *saferith.Nat) []byte {
	return x.Big().FillBytes(make([]byte, g.ByteLen()))
}

// ElementFromBytes decodes an element produced by ElementBytes.
func (g *Parameters) ElementFromBytes(data []byte) (*saferith.Nat, error) {
	if len(data) != g.ByteLen() {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidElement, g.ByteLen(), len(data))
	}
	return g.Element(new(big.Int).SetBytes(data))
}

type parametersCBOR struct {
	P []byte
	G []byte
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (g *Parameters) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(&parametersCBOR{
		P: g.p.Big().Bytes(),
		G: g.g.Big().Bytes(),
	})
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
// The decoded values are validated as with New.
func (g *Parameters) UnmarshalBinary(data []byte) error {
	var raw parametersCBOR
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("group: unmarshal: %w", err)
	}
	decoded, err := New(new(big.Int).SetBytes(raw.P), new(big.Int).SetBytes(raw.G))
	if err != nil {
		return err
	}
	*g = *decoded
	return nil
}

type parametersJSON struct {
	Prime     string `json:"prime"`
	Generator string `json:"generator"`
}

// MarshalJSON encodes p and g as base 10 strings.
func (g *Parameters) MarshalJSON() ([]byte, error) {
	return json.Marshal(parametersJSON{
		Prime:     Format(g.p.Nat()),
		Generator: Format(g.g),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (g *Parameters) UnmarshalJSON(data []byte) error {
	var raw parametersJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p, err := parseDecimal(raw.Prime)
	if err != nil {
		return fmt.Errorf("%w: prime: %v", ErrInvalidParameters, err)
	}
	gen, err := parseDecimal(raw.Generator)
	if err != nil {
		return fmt.Errorf("%w: generator: %v", ErrInvalidParameters, err)
	}
	decoded, err := New(p, gen)
	if err != nil {
		return err
	}
	*g = *decoded
	return nil
}
