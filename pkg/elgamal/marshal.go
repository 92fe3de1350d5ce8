package elgamal

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/cronokirby/saferith"
	"github.com/encmarket/threshold-elgamal/pkg/group"
	"github.com/encmarket/threshold-elgamal/pkg/party"
	zkdleq "github.com/encmarket/threshold-elgamal/pkg/zk/dleq"
	"github.com/fxamacker/cbor/v2"
)

var errNoGroup = errors.New("elgamal: unmarshal without group, use an Empty constructor")

type ciphertextCBOR struct {
	C1, C2 []byte
}

// MarshalBinary encodes c1 and c2 as fixed width big endian integers.
func (c *Ciphertext) MarshalBinary() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: marshal invalid ciphertext", ErrInvalidInput)
	}
	return cbor.Marshal(&ciphertextCBOR{
		C1: c.group.ElementBytes(c.C1),
		C2: c.group.ElementBytes(c.C2),
	})
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
// The ciphertext must have been created with Empty.
func (c *Ciphertext) UnmarshalBinary(data []byte) error {
	if c.group == nil {
		return errNoGroup
	}
	var raw ciphertextCBOR
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("elgamal: unmarshal ciphertext: %w", err)
	}
	return c.setBytes(raw.C1, raw.C2)
}

// SetBytes decodes c1 and c2 from their fixed width encodings, as stored by the market contract.
func (c *Ciphertext) SetBytes(c1, c2 []byte) error {
	if c.group == nil {
		return errNoGroup
	}
	return c.setBytes(c1, c2)
}

func (c *Ciphertext) setBytes(c1Bytes, c2Bytes []byte) error {
	c1, err := c.group.ElementFromBytes(c1Bytes)
	if err != nil {
		return fmt.Errorf("%w: c1: %v", ErrInvalidInput, err)
	}
	// c2 may be 0, which ElementFromBytes rejects
	if len(c2Bytes) != c.group.ByteLen() {
		return fmt.Errorf("%w: c2 must be %d bytes", ErrInvalidInput, c.group.ByteLen())
	}
	c2, err := residue(c.group, new(big.Int).SetBytes(c2Bytes))
	if err != nil {
		return fmt.Errorf("%w: c2: %v", ErrInvalidInput, err)
	}
	decoded, err := NewCiphertext(c.group, c1, c2)
	if err != nil {
		return err
	}
	*c = *decoded
	return nil
}

type ciphertextJSON struct {
	C1 string `json:"c1"`
	C2 string `json:"c2"`
}

// MarshalJSON encodes c1 and c2 as base 10 strings.
func (c *Ciphertext) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: marshal invalid ciphertext", ErrInvalidInput)
	}
	return json.Marshal(ciphertextJSON{C1: group.Format(c.C1), C2: group.Format(c.C2)})
}

// UnmarshalJSON implements json.Unmarshaler.
// The ciphertext must have been created with Empty.
func (c *Ciphertext) UnmarshalJSON(data []byte) error {
	if c.group == nil {
		return errNoGroup
	}
	var raw ciphertextJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c1, err := c.group.ParseElement(raw.C1)
	if err != nil {
		return fmt.Errorf("%w: c1: %v", ErrInvalidInput, err)
	}
	c2, err := parseResidue(c.group, raw.C2)
	if err != nil {
		return fmt.Errorf("%w: c2: %v", ErrInvalidInput, err)
	}
	decoded, err := NewCiphertext(c.group, c1, c2)
	if err != nil {
		return err
	}
	*c = *decoded
	return nil
}

type shareCBOR struct {
	ID    party.ID
	Value []byte
	Proof []byte `cbor:",omitempty"`
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s *DecryptionShare) MarshalBinary() ([]byte, error) {
	raw := shareCBOR{ID: s.ID, Value: s.group.ElementBytes(s.Value)}
	if s.Proof != nil {
		proof, err := s.Proof.MarshalBinary()
		if err != nil {
			return nil, err
		}
		raw.Proof = proof
	}
	return cbor.Marshal(&raw)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
// The share must have been created with EmptyShare.
func (s *DecryptionShare) UnmarshalBinary(data []byte) error {
	if s.group == nil {
		return errNoGroup
	}
	var raw shareCBOR
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("elgamal: unmarshal share: %w", err)
	}
	value, err := s.group.ElementFromBytes(raw.Value)
	if err != nil {
		return fmt.Errorf("%w: share value: %v", ErrInvalidInput, err)
	}
	return s.set(raw.ID, value, raw.Proof)
}

type shareJSON struct {
	ID    party.ID `json:"id,omitempty"`
	Value string   `json:"value"`
	Proof []byte   `json:"proof,omitempty"`
}

// MarshalJSON encodes the share value in base 10, the proof as base64 encoded CBOR.
func (s *DecryptionShare) MarshalJSON() ([]byte, error) {
	raw := shareJSON{ID: s.ID, Value: group.Format(s.Value)}
	if s.Proof != nil {
		proof, err := s.Proof.MarshalBinary()
		if err != nil {
			return nil, err
		}
		raw.Proof = proof
	}
	return json.Marshal(raw)
}

// UnmarshalJSON implements json.Unmarshaler.
// The share must have been created with EmptyShare.
func (s *DecryptionShare) UnmarshalJSON(data []byte) error {
	if s.group == nil {
		return errNoGroup
	}
	var raw shareJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := s.group.ParseElement(raw.Value)
	if err != nil {
		return fmt.Errorf("%w: share value: %v", ErrInvalidInput, err)
	}
	return s.set(raw.ID, value, raw.Proof)
}

func (s *DecryptionShare) set(id party.ID, value *saferith.Nat, proofBytes []byte) error {
	var proof *zkdleq.Proof
	if len(proofBytes) > 0 {
		proof = zkdleq.Empty(s.group)
		if err := proof.UnmarshalBinary(proofBytes); err != nil {
			return fmt.Errorf("%w: share proof: %v", ErrInvalidProof, err)
		}
	}
	s.ID = id
	s.Value = value
	s.Proof = proof
	return nil
}

// EmptyPublicKey returns a public key ready to be unmarshalled for the group g.
func EmptyPublicKey(g *group.Parameters) *PublicKey {
	return &PublicKey{group: g}
}

// MarshalJSON encodes y as a base 10 string.
func (pk *PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(group.Format(pk.y))
}

// UnmarshalJSON implements json.Unmarshaler.
// The key must have been created with EmptyPublicKey.
func (pk *PublicKey) UnmarshalJSON(data []byte) error {
	if pk.group == nil {
		return errNoGroup
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	y, err := pk.group.ParseElement(raw)
	if err != nil {
		return fmt.Errorf("%w: public key: %v", ErrInvalidInput, err)
	}
	pk.y = y
	return nil
}

// MarshalBinary encodes y as a fixed width big endian integer.
func (pk *PublicKey) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(pk.group.ElementBytes(pk.y))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
// The key must have been created with EmptyPublicKey.
func (pk *PublicKey) UnmarshalBinary(data []byte) error {
	if pk.group == nil {
		return errNoGroup
	}
	var raw []byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("elgamal: unmarshal public key: %w", err)
	}
	y, err := pk.group.ElementFromBytes(raw)
	if err != nil {
		return fmt.Errorf("%w: public key: %v", ErrInvalidInput, err)
	}
	pk.y = y
	return nil
}

func residue(g *group.Parameters, x *big.Int) (*saferith.Nat, error) {
	if x.Sign() < 0 || x.Cmp(g.P().Big()) >= 0 {
		return nil, errors.New("value outside [0, p-1]")
	}
	return new(saferith.Nat).SetBig(x, g.Bits()), nil
}

// parseResidue parses a base 10 integer in [0, p-1].
func parseResidue(g *group.Parameters, s string) (*saferith.Nat, error) {
	x, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%q is not a base 10 integer", s)
	}
	return residue(g, x)
}
