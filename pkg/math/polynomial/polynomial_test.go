package polynomial

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/cronokirby/saferith"
	"github.com/encmarket/threshold-elgamal/pkg/group"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolynomial_Constant(t *testing.T) {
	g := group.Default()
	deg := 10
	secret, err := g.SampleExponent(rand.Reader)
	require.NoError(t, err)
	poly, err := NewPolynomial(rand.Reader, g, deg, secret)
	require.NoError(t, err)
	assert.Equal(t, saferith.Choice(1), poly.Constant().Eq(secret))
	assert.Equal(t, deg, poly.Degree())
}

func TestPolynomial_Evaluate(t *testing.T) {
	g := toyGroup(t, 4)
	// f(X) = 1 + X² over ℤ₁₁
	polynomial := &Polynomial{group: g, coefficients: []*saferith.Nat{nat(1), nat(0), nat(1)}}

	for x := uint64(1); x < 30; x++ {
		expected := new(big.Int).SetUint64(x*x + 1)
		expected.Mod(expected, big.NewInt(11))
		assert.Equal(t, expected.String(), polynomial.Evaluate(nat(x)).Big().String(), "f(%d)", x)
	}
}

func TestPolynomial_EvaluateZero(t *testing.T) {
	g := toyGroup(t, 4)
	poly, err := NewPolynomial(rand.Reader, g, 2, nat(3))
	require.NoError(t, err)
	assert.Panics(t, func() { poly.Evaluate(nat(0)) })
}

func TestPolynomial_RequiresPrimeOrder(t *testing.T) {
	_, err := NewPolynomial(rand.Reader, toyGroup(t, 5), 2, nat(3))
	assert.ErrorIs(t, err, ErrNotPrimeOrder)
}
