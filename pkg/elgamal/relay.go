package elgamal

import (
	"encoding/json"
	"fmt"

	"github.com/cronokirby/saferith"
	"github.com/encmarket/threshold-elgamal/pkg/group"
)

// Relay is the payload handed to an off-chain executor, which can check the
// ciphertext and read the vote without any decryption share.
//
// Producing it discloses the vote to whoever receives it.
type Relay struct {
	Ciphertext *Ciphertext
	// Randomness is the nonce r used to encrypt.
	Randomness       *saferith.Nat
	TaskDefinitionID uint16
}

type relayJSON struct {
	Ciphertext       json.RawMessage `json:"ciphertext"`
	Randomness       string          `json:"randomNumber"`
	TaskDefinitionID uint16          `json:"taskDefinitionId"`
}

// EmptyRelay returns a relay payload ready to be unmarshalled for the group g.
func EmptyRelay(g *group.Parameters) *Relay {
	return &Relay{Ciphertext: Empty(g)}
}

// Open checks that c1 = gʳ and returns m = c2 ⋅ (yʳ)⁻¹.
func (r *Relay) Open(public *PublicKey) (*saferith.Nat, error) {
	if r.Ciphertext == nil || !r.Ciphertext.Valid() || public == nil || !r.Ciphertext.group.Equal(public.group) {
		return nil, fmt.Errorf("%w: relay ciphertext", ErrInvalidInput)
	}
	g := public.group
	if !g.IsExponent(r.Randomness) {
		return nil, fmt.Errorf("%w: relay randomness outside [1, order-1]", ErrInvalidInput)
	}
	if g.ExpBase(r.Randomness).Eq(r.Ciphertext.C1) != 1 {
		return nil, fmt.Errorf("%w: c1 was not computed with the relayed randomness", ErrInvalidProof)
	}
	return Recover(g, r.Ciphertext.C2, g.Exp(public.y, r.Randomness))
}

// MarshalJSON implements json.Marshaler.
func (r *Relay) MarshalJSON() ([]byte, error) {
	ct, err := r.Ciphertext.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(relayJSON{
		Ciphertext:       ct,
		Randomness:       group.Format(r.Randomness),
		TaskDefinitionID: r.TaskDefinitionID,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
// The relay must have been created with EmptyRelay.
func (r *Relay) UnmarshalJSON(data []byte) error {
	if r.Ciphertext == nil || r.Ciphertext.group == nil {
		return errNoGroup
	}
	var raw relayJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := r.Ciphertext.UnmarshalJSON(raw.Ciphertext); err != nil {
		return err
	}
	randomness, err := r.Ciphertext.group.ParseExponent(raw.Randomness)
	if err != nil {
		return fmt.Errorf("%w: randomNumber: %v", ErrInvalidInput, err)
	}
	r.Randomness = randomness
	r.TaskDefinitionID = raw.TaskDefinitionID
	return nil
}
