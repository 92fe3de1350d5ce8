package zksch

import (
	"io"

	"github.com/cronokirby/saferith"
	"github.com/encmarket/threshold-elgamal/internal/hash"
	"github.com/encmarket/threshold-elgamal/pkg/group"
	"github.com/encmarket/threshold-elgamal/pkg/math/sample"
)

// Randomness = a ← ℤ_order, with its commitment C = gᵃ.
type Randomness struct {
	group      *group.Parameters
	a          *saferith.Nat
	commitment Commitment
}

type Commitment struct {
	C *saferith.Nat
}

// Proof is a Schnorr proof of knowledge of x = log_g(X).
type Proof struct {
	group *group.Parameters
	C     Commitment
	// Z = a + e⋅x (mod order)
	Z *saferith.Nat
}

// NewRandomness creates a new a ∈ [1, order-1] and the corresponding commitment C = gᵃ.
func NewRandomness(rand io.Reader, g *group.Parameters) (*Randomness, error) {
	a, err := g.SampleExponent(rand)
	if err != nil {
		return nil, err
	}
	return &Randomness{
		group:      g,
		a:          a,
		commitment: Commitment{C: g.ExpBase(a)},
	}, nil
}

func challenge(hash *hash.Hash, g *group.Parameters, commitment *Commitment, public *saferith.Nat) (*saferith.Nat, error) {
	if err := hash.WriteAny(g, commitment.C, public); err != nil {
		return nil, err
	}
	return sample.Challenge(hash.Digest(), g.Order())
}

// Prove creates a Proof for the secret x, where public = gˣ.
func (r *Randomness) Prove(hash *hash.Hash, public, secret *saferith.Nat) (*Proof, error) {
	if public == nil || secret == nil || public.Eq(r.group.One()) == 1 {
		return nil, errInvalidPublic
	}
	e, err := challenge(hash, r.group, &r.commitment, public)
	if err != nil {
		return nil, err
	}
	order := r.group.Order()
	z := new(saferith.Nat).ModMul(e, secret, order)
	z.ModAdd(z, r.a, order)
	return &Proof{
		group: r.group,
		C:     r.commitment,
		Z:     z,
	}, nil
}

// Commitment returns the commitment C = gᵃ for the randomness.
func (r *Randomness) Commitment() *Commitment {
	return &r.commitment
}

// NewProof generates a Schnorr proof of knowledge of x, for public = gˣ.
func NewProof(rand io.Reader, g *group.Parameters, hash *hash.Hash, public, secret *saferith.Nat) (*Proof, error) {
	r, err := NewRandomness(rand, g)
	if err != nil {
		return nil, err
	}
	return r.Prove(hash, public, secret)
}

// IsValid returns true if the proof's values are in range.
func (p *Proof) IsValid() bool {
	if p == nil || p.group == nil || p.Z == nil || p.C.C == nil {
		return false
	}
	if !p.group.IsElement(p.C.C) {
		return false
	}
	_, _, lt := p.Z.CmpMod(p.group.Order())
	return lt == 1
}

// Verify checks gᶻ = C⋅publicᵉ.
// The identity is rejected as public key, since its discrete log is trivially known.
func (p *Proof) Verify(hash *hash.Hash, public *saferith.Nat) bool {
	if !p.IsValid() {
		return false
	}
	g := p.group
	if !g.IsElement(public) || public.Eq(g.One()) == 1 {
		return false
	}

	e, err := challenge(hash, g, &p.C, public)
	if err != nil {
		return false
	}

	lhs := g.ExpBase(p.Z)
	rhs := g.Mul(p.C.C, g.Exp(public, e))
	return lhs.Eq(rhs) == 1
}

// Empty returns a proof ready to be unmarshalled for the given group.
func Empty(g *group.Parameters) *Proof {
	return &Proof{group: g}
}
