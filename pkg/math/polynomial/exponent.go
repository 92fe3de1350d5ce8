package polynomial

import (
	"encoding/binary"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/encmarket/threshold-elgamal/pkg/group"
)

// Exponent represents the polynomial F(X) = g^f(X), with coefficients Cᵢ = g^aᵢ.
//
// Publishing it lets anyone check a share f(i) against g^f(i) without learning f.
type Exponent struct {
	group        *group.Parameters
	coefficients []*saferith.Nat
}

// NewPolynomialExponent generates an Exponent polynomial F(X) = g^(secret + a₁⋅X + … + aₜ⋅Xᵗ).
func NewPolynomialExponent(polynomial *Polynomial) *Exponent {
	p := &Exponent{
		group:        polynomial.group,
		coefficients: make([]*saferith.Nat, len(polynomial.coefficients)),
	}
	for i, a := range polynomial.coefficients {
		p.coefficients[i] = polynomial.group.ExpBase(a)
	}
	return p
}

// NewExponent rebuilds an Exponent from published coefficients.
// It returns false if one of them is not an element of the subgroup of order q.
func NewExponent(g *group.Parameters, coefficients []*saferith.Nat) (*Exponent, bool) {
	if len(coefficients) == 0 {
		return nil, false
	}
	p := &Exponent{group: g, coefficients: make([]*saferith.Nat, len(coefficients))}
	for i, c := range coefficients {
		if !g.InSubgroup(c) {
			return nil, false
		}
		p.coefficients[i] = new(saferith.Nat).SetNat(c)
	}
	return p, true
}

// Evaluate returns F(index) = ∏ Cᵢ^(indexⁱ).
func (p *Exponent) Evaluate(index *saferith.Nat) *saferith.Nat {
	result := p.group.One()
	for i := len(p.coefficients) - 1; i >= 0; i-- {
		// Bₙ₋₁ = Bₙ^x ⋅ Aₙ₋₁
		result = p.group.Exp(result, index)
		result = p.group.Mul(result, p.coefficients[i])
	}
	return result
}

func (p *Exponent) Degree() int {
	return len(p.coefficients) - 1
}

// Constant returns the constant coefficient of the polynomial 'in the exponent'
func (p *Exponent) Constant() *saferith.Nat {
	return new(saferith.Nat).SetNat(p.coefficients[0])
}

func (p *Exponent) Coefficients() []*saferith.Nat {
	out := make([]*saferith.Nat, len(p.coefficients))
	for i, c := range p.coefficients {
		out[i] = new(saferith.Nat).SetNat(c)
	}
	return out
}

func (p *Exponent) Equal(other *Exponent) bool {
	if len(p.coefficients) != len(other.coefficients) {
		return false
	}
	for i := 0; i < len(p.coefficients); i++ {
		if p.coefficients[i].Eq(other.coefficients[i]) != 1 {
			return false
		}
	}
	return true
}

// WriteTo implements io.WriterTo and should be used within the hash.Hash function.
func (p *Exponent) WriteTo(w io.Writer) (int64, error) {
	// write the number of coefficients
	err := binary.Write(w, binary.BigEndian, uint32(len(p.coefficients)))
	if err != nil {
		return 0, err
	}
	nAll := int64(4)

	// write all coefficients
	for _, c := range p.coefficients {
		n, err := w.Write(p.group.ElementBytes(c))
		nAll += int64(n)
		if err != nil {
			return nAll, err
		}
	}
	return nAll, nil
}

// Domain implements hash.WriterToWithDomain.
func (*Exponent) Domain() string {
	return "Exponent"
}
