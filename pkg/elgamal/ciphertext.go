package elgamal

import (
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/encmarket/threshold-elgamal/pkg/group"
)

type Ciphertext struct {
	group *group.Parameters
	// C1 = gʳ
	C1 *saferith.Nat
	// C2 = m⋅yʳ
	C2 *saferith.Nat
}

// Empty returns a ciphertext ready to be unmarshalled for the group g.
func Empty(g *group.Parameters) *Ciphertext {
	return &Ciphertext{group: g}
}

// NewCiphertext rebuilds a ciphertext from its two components, as read from the market state.
func NewCiphertext(g *group.Parameters, c1, c2 *saferith.Nat) (*Ciphertext, error) {
	c := &Ciphertext{group: g, C1: c1, C2: c2}
	if !c.Valid() {
		return nil, fmt.Errorf("%w: ciphertext components out of range", ErrInvalidInput)
	}
	c.C1 = new(saferith.Nat).SetNat(c1)
	c.C2 = new(saferith.Nat).SetNat(c2)
	return c, nil
}

// Valid returns true if c1 ∈ [1, p-1] and c2 ∈ [0, p-1].
// c2 = 0 is the encryption of the message 0.
func (c *Ciphertext) Valid() bool {
	if c == nil || c.group == nil || c.C1 == nil || c.C2 == nil {
		return false
	}
	if !c.group.IsElement(c.C1) {
		return false
	}
	_, _, lt := c.C2.CmpMod(c.group.P())
	return lt == 1
}

// Group returns the parameters of the ciphertext.
func (c *Ciphertext) Group() *group.Parameters { return c.group }

func (c *Ciphertext) Equal(other *Ciphertext) bool {
	return c.group.Equal(other.group) && c.C1.Eq(other.C1) == 1 && c.C2.Eq(other.C2) == 1
}

// WriteTo implements io.WriterTo and should be used within the hash.Hash function.
func (c *Ciphertext) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, x := range []*saferith.Nat{c.C1, c.C2} {
		n, err := w.Write(c.group.ElementBytes(x))
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (Ciphertext) Domain() string {
	return "ElGamal Ciphertext"
}

// Encrypt encrypts m ∈ [0, p-1] under public, with a fresh nonce r ∈ [1, order-1].
//
// The nonce is returned for relaying to an off-chain verifier. Anyone holding it
// can recompute the blinding factor yʳ, so callers that do not relay should drop it.
func Encrypt(rand io.Reader, public *PublicKey, m *saferith.Nat) (*Ciphertext, *saferith.Nat, error) {
	if err := checkMessage(public, m); err != nil {
		return nil, nil, err
	}
	r, err := public.group.SampleExponent(rand)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRandomnessExhausted, err)
	}
	return encrypt(public, m, r), r, nil
}

// EncryptWithNonce is the deterministic variant of Encrypt, with a caller supplied nonce r ∈ [1, order-1].
func EncryptWithNonce(public *PublicKey, m, r *saferith.Nat) (*Ciphertext, error) {
	if err := checkMessage(public, m); err != nil {
		return nil, err
	}
	if !public.group.IsExponent(r) {
		return nil, fmt.Errorf("%w: nonce outside [1, order-1]", ErrInvalidInput)
	}
	return encrypt(public, m, r), nil
}

func checkMessage(public *PublicKey, m *saferith.Nat) error {
	if public == nil || public.group == nil {
		return fmt.Errorf("%w: nil public key", ErrInvalidInput)
	}
	if m == nil {
		return fmt.Errorf("%w: nil message", ErrInvalidInput)
	}
	if _, _, lt := m.CmpMod(public.group.P()); lt != 1 {
		return ErrMessageTooLarge
	}
	return nil
}

func encrypt(public *PublicKey, m, r *saferith.Nat) *Ciphertext {
	g := public.group
	return &Ciphertext{
		group: g,
		C1:    g.ExpBase(r),
		C2:    g.Mul(new(saferith.Nat).Mod(m, g.P()), g.Exp(public.y, r)),
	}
}
