package elgamal

import (
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/encmarket/threshold-elgamal/internal/hash"
	"github.com/encmarket/threshold-elgamal/pkg/group"
	zksch "github.com/encmarket/threshold-elgamal/pkg/zk/sch"
)

// PublicKey is y = gˣ (mod p), either a single participant's key or the
// product of several of them.
type PublicKey struct {
	group *group.Parameters
	y     *saferith.Nat
}

// SecretKey holds the private exponent x ∈ [1, order-1] of a participant.
//
// It must never leave the participant's trust boundary.
type SecretKey struct {
	*PublicKey
	x *saferith.Nat
}

// KeyGen generates a new key pair in the group g.
//
// rand must be a cryptographically secure source, such as crypto/rand.Reader.
func KeyGen(rand io.Reader, g *group.Parameters) (*PublicKey, *SecretKey, error) {
	if g == nil {
		return nil, nil, fmt.Errorf("%w: nil group", ErrInvalidInput)
	}
	x, err := g.SampleExponent(rand)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRandomnessExhausted, err)
	}
	sk := &SecretKey{
		PublicKey: &PublicKey{group: g, y: g.ExpBase(x)},
		x:         x,
	}
	return sk.PublicKey, sk, nil
}

// NewSecretKey rebuilds a key pair from a stored private exponent.
func NewSecretKey(g *group.Parameters, x *saferith.Nat) (*SecretKey, error) {
	if g == nil || !g.IsExponent(x) {
		return nil, fmt.Errorf("%w: private key outside [1, order-1]", ErrInvalidInput)
	}
	x = new(saferith.Nat).SetNat(x)
	return &SecretKey{
		PublicKey: &PublicKey{group: g, y: g.ExpBase(x)},
		x:         x,
	}, nil
}

// NewPublicKey rebuilds a public key from y ∈ [1, p-1].
func NewPublicKey(g *group.Parameters, y *saferith.Nat) (*PublicKey, error) {
	if g == nil || !g.IsElement(y) {
		return nil, fmt.Errorf("%w: public key outside [1, p-1]", ErrInvalidInput)
	}
	return &PublicKey{group: g, y: new(saferith.Nat).SetNat(y)}, nil
}

// Group returns the parameters the key was generated with.
func (pk *PublicKey) Group() *group.Parameters { return pk.group }

// Value returns a copy of y.
func (pk *PublicKey) Value() *saferith.Nat { return new(saferith.Nat).SetNat(pk.y) }

// String returns y in base 10.
func (pk *PublicKey) String() string { return group.Format(pk.y) }

// Equal returns true if both keys are the same element of the same group.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	if pk == nil || other == nil {
		return pk == other
	}
	return pk.group.Equal(other.group) && pk.y.Eq(other.y) == 1
}

// WriteTo implements io.WriterTo and should be used within the hash.Hash function.
func (pk *PublicKey) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(pk.group.ElementBytes(pk.y))
	return int64(n), err
}

// Domain implements hash.WriterToWithDomain.
func (*PublicKey) Domain() string { return "ElGamal Public Key" }

// Exponent returns a copy of the private exponent x.
func (sk *SecretKey) Exponent() *saferith.Nat { return new(saferith.Nat).SetNat(sk.x) }

func possessionHash(context []byte) *hash.Hash {
	h := hash.New("elgamal key possession")
	_ = h.WriteAny(context)
	return h
}

// ProvePossession returns a Schnorr proof of knowledge of x, bound to context.
//
// Registering keys together with such a proof prevents a participant from
// choosing its key as a function of the others' and controlling the combined key.
func (sk *SecretKey) ProvePossession(rand io.Reader, context []byte) (*zksch.Proof, error) {
	proof, err := zksch.NewProof(rand, sk.group, possessionHash(context), sk.y, sk.x)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRandomnessExhausted, err)
	}
	return proof, nil
}

// VerifyPossession checks a proof produced by ProvePossession with the same context.
func (pk *PublicKey) VerifyPossession(proof *zksch.Proof, context []byte) error {
	if proof == nil || !proof.Verify(possessionHash(context), pk.y) {
		return ErrInvalidProof
	}
	return nil
}

// CombinePublicKeys returns the joint key ∏ yᵢ (mod p).
//
// The result does not depend on the order of keys, but the set of keys must be
// exactly the one whose shares will be used for recovery.
func CombinePublicKeys(g *group.Parameters, keys []*PublicKey) (*PublicKey, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil group", ErrInvalidInput)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no public keys to combine", ErrInvalidInput)
	}
	combined := g.One()
	for i, key := range keys {
		if key == nil || !key.group.Equal(g) {
			return nil, fmt.Errorf("%w: key %d does not belong to the group", ErrInvalidInput, i)
		}
		if !g.IsElement(key.y) {
			return nil, fmt.Errorf("%w: key %d outside [1, p-1]", ErrInvalidInput, i)
		}
		combined = g.Mul(combined, key.y)
	}
	return &PublicKey{group: g, y: combined}, nil
}
