package zkdleq

import (
	"io"

	"github.com/cronokirby/saferith"
	"github.com/encmarket/threshold-elgamal/internal/hash"
	"github.com/encmarket/threshold-elgamal/pkg/group"
	"github.com/encmarket/threshold-elgamal/pkg/math/sample"
)

type (
	Public struct {
		// H is the second base
		H *saferith.Nat

		// X = gˣ
		X *saferith.Nat

		// Y = Hˣ
		Y *saferith.Nat
	}
	Private struct {
		// X = x = log_g(X) = log_H(Y)
		X *saferith.Nat
	}
)

type Commitment struct {
	// A = gᵃ
	// B = Hᵃ
	A, B *saferith.Nat
}

// Proof is a Chaum-Pedersen proof that two elements share the same discrete logarithm.
type Proof struct {
	group *group.Parameters
	*Commitment
	// Z = a + e⋅x (mod order)
	Z *saferith.Nat
}

// IsValid checks the ranges of the proof's elements.
func (p *Proof) IsValid(public Public) bool {
	if p == nil || p.group == nil || p.Commitment == nil || p.Z == nil {
		return false
	}
	if !p.group.IsElement(p.A) || !p.group.IsElement(p.B) {
		return false
	}
	if !p.group.IsElement(public.H) || !p.group.IsElement(public.X) || !p.group.IsElement(public.Y) {
		return false
	}
	_, _, lt := p.Z.CmpMod(p.group.Order())
	return lt == 1
}

// NewProof proves that log_g(public.X) = log_H(public.Y) = private.X.
//
// hash should already contain the context the proof is bound to.
func NewProof(rand io.Reader, g *group.Parameters, hash *hash.Hash, public Public, private Private) (*Proof, error) {
	a, err := g.SampleExponent(rand)
	if err != nil {
		return nil, err
	}
	commitment := &Commitment{
		A: g.ExpBase(a),
		B: g.Exp(public.H, a),
	}

	e, err := challenge(hash, g, public, commitment)
	if err != nil {
		return nil, err
	}

	order := g.Order()
	z := new(saferith.Nat).ModMul(e, private.X, order)
	z.ModAdd(z, a, order)

	return &Proof{
		group:      g,
		Commitment: commitment,
		Z:          z,
	}, nil
}

// Verify checks gᶻ = A⋅Xᵉ and Hᶻ = B⋅Yᵉ.
func (p *Proof) Verify(hash *hash.Hash, public Public) bool {
	if !p.IsValid(public) {
		return false
	}
	g := p.group

	e, err := challenge(hash, g, public, p.Commitment)
	if err != nil {
		return false
	}

	{
		lhs := g.ExpBase(p.Z)
		rhs := g.Mul(p.A, g.Exp(public.X, e))
		if lhs.Eq(rhs) != 1 {
			return false
		}
	}

	{
		lhs := g.Exp(public.H, p.Z)
		rhs := g.Mul(p.B, g.Exp(public.Y, e))
		if lhs.Eq(rhs) != 1 {
			return false
		}
	}

	return true
}

func challenge(hash *hash.Hash, g *group.Parameters, public Public, commitment *Commitment) (*saferith.Nat, error) {
	err := hash.WriteAny(g, public.H, public.X, public.Y, commitment.A, commitment.B)
	if err != nil {
		return nil, err
	}
	return sample.Challenge(hash.Digest(), g.Order())
}

// Empty returns a proof ready to be unmarshalled for the given group.
func Empty(g *group.Parameters) *Proof {
	return &Proof{group: g}
}
