package polynomial

import (
	"errors"
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/encmarket/threshold-elgamal/pkg/group"
	"github.com/encmarket/threshold-elgamal/pkg/math/sample"
)

var ErrNotPrimeOrder = errors.New("polynomial: the generator must have prime order")

// Polynomial represents f(X) = a₀ + a₁⋅X + … + aₜ⋅Xᵗ, with coefficients in ℤ_q,
// where q is the order of the group's generator.
type Polynomial struct {
	group        *group.Parameters
	coefficients []*saferith.Nat
}

// NewPolynomial generates a Polynomial f(X) = secret + a₁⋅X + … + aₜ⋅Xᵗ,
// with random coefficients in ℤ_q, and degree t.
func NewPolynomial(rand io.Reader, g *group.Parameters, degree int, constant *saferith.Nat) (*Polynomial, error) {
	if !g.PrimeOrder() {
		return nil, ErrNotPrimeOrder
	}
	if degree < 0 {
		return nil, fmt.Errorf("polynomial: negative degree %d", degree)
	}
	q := g.Order()
	coefficients := make([]*saferith.Nat, degree+1)

	// if the constant is nil, we interpret it as 0.
	if constant == nil {
		constant = new(saferith.Nat)
	}
	coefficients[0] = new(saferith.Nat).Mod(constant, q)

	for i := 1; i <= degree; i++ {
		a, err := sample.ModN(rand, q)
		if err != nil {
			return nil, err
		}
		coefficients[i] = a
	}
	return &Polynomial{group: g, coefficients: coefficients}, nil
}

// Evaluate evaluates a polynomial in a given variable index
// We use Horner's method: https://en.wikipedia.org/wiki/Horner%27s_method
func (p *Polynomial) Evaluate(index *saferith.Nat) *saferith.Nat {
	if index.EqZero() == 1 {
		panic("attempt to leak secret")
	}
	q := p.group.Order()
	x := new(saferith.Nat).Mod(index, q)
	result := new(saferith.Nat).Resize(q.BitLen())
	// reverse order
	for i := len(p.coefficients) - 1; i >= 0; i-- {
		// bₙ₋₁ = bₙ * x + aₙ₋₁
		result.ModMul(result, x, q)
		result.ModAdd(result, p.coefficients[i], q)
	}
	return result
}

// Constant returns a copy of the constant coefficient of the polynomial.
func (p *Polynomial) Constant() *saferith.Nat {
	return new(saferith.Nat).SetNat(p.coefficients[0])
}

// Degree is the highest power of the Polynomial.
func (p *Polynomial) Degree() int {
	return len(p.coefficients) - 1
}
