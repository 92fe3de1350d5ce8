package polynomial

import (
	"fmt"

	"github.com/cronokirby/saferith"
	"github.com/encmarket/threshold-elgamal/pkg/group"
	"github.com/encmarket/threshold-elgamal/pkg/party"
)

// Lagrange returns the Lagrange coefficients at 0 for all parties in the interpolation domain,
// computed modulo the prime order q of the generator.
//
// The IDs must be distinct, non zero, and smaller than q.
func Lagrange(g *group.Parameters, interpolationDomain []party.ID) (map[party.ID]*saferith.Nat, error) {
	if !g.PrimeOrder() {
		return nil, ErrNotPrimeOrder
	}
	if err := party.IDSlice(interpolationDomain).Valid(); err != nil {
		return nil, fmt.Errorf("polynomial: interpolation domain: %w", err)
	}
	q := g.Order()

	// numerator = x₀ * … * xₖ
	scalars, numerator, err := getScalarsAndNumerator(q, interpolationDomain)
	if err != nil {
		return nil, err
	}

	coefficients := make(map[party.ID]*saferith.Nat, len(interpolationDomain))
	for _, j := range interpolationDomain {
		coefficients[j] = lagrange(q, scalars, numerator, j)
	}
	return coefficients, nil
}

// getScalarsAndNumerator returns the ℤ_q values associated to the list of party.IDs.
func getScalarsAndNumerator(q *saferith.Modulus, interpolationDomain []party.ID) (map[party.ID]*saferith.Nat, *saferith.Nat, error) {
	numerator := new(saferith.Nat).SetUint64(1)
	scalars := make(map[party.ID]*saferith.Nat, len(interpolationDomain))
	for _, id := range interpolationDomain {
		xi := id.Nat()
		if _, _, lt := xi.CmpMod(q); lt != 1 {
			return nil, nil, fmt.Errorf("polynomial: ID %v is not smaller than the group order", id)
		}
		scalars[id] = xi
		numerator.ModMul(numerator, xi, q)
	}
	return scalars, numerator, nil
}

// lagrange returns the Lagrange coefficient lⱼ(0), for j in the interpolation domain.
// The numerator is provided beforehand for efficiency reasons.
//
// The following formulas are taken from
// https://en.wikipedia.org/wiki/Lagrange_polynomial
//
//	                         x₀ ⋅⋅⋅ xₖ
//	lⱼ(0) = --------------------------------------------------
//	        xⱼ⋅(x₀ - xⱼ)⋅⋅⋅(xⱼ₋₁ - xⱼ)⋅(xⱼ₊₁ - xⱼ)⋅⋅⋅(xₖ - xⱼ).
func lagrange(q *saferith.Modulus, interpolationDomain map[party.ID]*saferith.Nat, numerator *saferith.Nat, j party.ID) *saferith.Nat {
	xJ := interpolationDomain[j]
	tmp := new(saferith.Nat)

	denominator := new(saferith.Nat).SetUint64(1)
	for i, xI := range interpolationDomain {
		if i == j {
			// lⱼ *= xⱼ
			denominator.ModMul(denominator, xJ, q)
			continue
		}
		// tmp = xᵢ - xⱼ
		tmp.ModSub(xI, xJ, q)
		// lⱼ *= xᵢ - xⱼ
		denominator.ModMul(denominator, tmp, q)
	}

	// lⱼ = numerator/denominator
	lJ := new(saferith.Nat).ModInverse(denominator, q)
	return lJ.ModMul(lJ, numerator, q)
}
