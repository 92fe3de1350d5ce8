package group

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/cronokirby/saferith"
	"github.com/encmarket/threshold-elgamal/internal/params"
	"github.com/encmarket/threshold-elgamal/pkg/math/sample"
	"github.com/encmarket/threshold-elgamal/pkg/pool"
)

var (
	ErrInvalidParameters = errors.New("group: invalid parameters")
	ErrInvalidElement    = errors.New("group: invalid element")
)

// Parameters describe the cyclic group generated by g inside ℤₚˣ, for a safe prime p = 2q+1.
//
// Parameters are immutable once created, and are shared by every participant
// of a market.
type Parameters struct {
	p *saferith.Modulus
	// q = (p-1)/2
	q *saferith.Modulus
	// order of g, either q or p-1
	order *saferith.Modulus
	g     *saferith.Nat
}

// New validates an externally supplied prime and generator.
//
// p must be a safe prime and g must lie in [2, p-2].
// The order of g is detected: it is q when g is a quadratic residue and p-1 otherwise.
// When g has prime order, p must be 7 mod 8 so that 1 and 2 both lie in its subgroup.
func New(p, g *big.Int) (*Parameters, error) {
	if p == nil || g == nil {
		return nil, fmt.Errorf("%w: nil value", ErrInvalidParameters)
	}
	if p.Cmp(big.NewInt(5)) < 0 || p.Bit(0) == 0 {
		return nil, fmt.Errorf("%w: p must be an odd prime greater than 3", ErrInvalidParameters)
	}
	if !p.ProbablyPrime(params.PrimalityIterations) {
		return nil, fmt.Errorf("%w: p is not prime", ErrInvalidParameters)
	}
	q := new(big.Int).Rsh(p, 1)
	if !q.ProbablyPrime(params.PrimalityIterations) {
		return nil, fmt.Errorf("%w: p is not a safe prime", ErrInvalidParameters)
	}
	pMinusOne := new(big.Int).Sub(p, big.NewInt(1))
	if g.Cmp(big.NewInt(2)) < 0 || g.Cmp(pMinusOne) >= 0 {
		return nil, fmt.Errorf("%w: generator must be in [2, p-2]", ErrInvalidParameters)
	}
	decoded := fromBig(p, q, g)
	if err := checkSmallMessages(decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

// checkSmallMessages rejects prime order groups in which 2 is not a quadratic
// residue, that is p ≢ ±1 (mod 8). There, the Legendre symbol of c2 = m⋅yʳ
// equals that of m, and an encryption of 1 can be told from one of 2.
func checkSmallMessages(g *Parameters) error {
	if g.PrimeOrder() && !g.Hides(smallMessages()...) {
		return fmt.Errorf("%w: 2 is not in the subgroup generated by g (p must be 7 mod 8)", ErrInvalidParameters)
	}
	return nil
}

func smallMessages() []*saferith.Nat {
	return []*saferith.Nat{new(saferith.Nat).SetUint64(1), new(saferith.Nat).SetUint64(2)}
}

func fromBig(p, q, g *big.Int) *Parameters {
	bits := p.BitLen()
	pMod := saferith.ModulusFromNat(new(saferith.Nat).SetBig(p, bits))
	qMod := saferith.ModulusFromNat(new(saferith.Nat).SetBig(q, bits))
	gNat := new(saferith.Nat).SetBig(g, bits)

	// the only possible orders are 1, 2, q and 2q; g ∉ {1, p-1} excludes the first two.
	order := qMod
	if new(saferith.Nat).Exp(gNat, qMod.Nat(), pMod).Eq(new(saferith.Nat).SetUint64(1)) != 1 {
		order = saferith.ModulusFromNat(new(saferith.Nat).SetBig(new(big.Int).Lsh(q, 1), bits))
	}
	return &Parameters{
		p:     pMod,
		q:     qMod,
		order: order,
		g:     gNat,
	}
}

// Generate samples a fresh safe prime of the given size and a generator of
// its prime order subgroup.
//
// The search for p is parallelized over pl, which may be nil.
func Generate(rand io.Reader, bits int, pl *pool.Pool) (*Parameters, error) {
	p, err := sample.SafePrime(rand, bits, pl)
	if err != nil {
		return nil, fmt.Errorf("group: generate prime: %w", err)
	}
	pMod := saferith.ModulusFromNat(new(saferith.Nat).SetBig(p, bits))
	one := new(saferith.Nat).SetUint64(1)
	for {
		h, err := sample.NonZeroModN(rand, pMod)
		if err != nil {
			return nil, fmt.Errorf("group: generate generator: %w", err)
		}
		// since p = 3 mod 4, -1 is not a square and h² ≠ p-1.
		g := new(saferith.Nat).ModMul(h, h, pMod)
		if g.Eq(one) != 1 {
			generated := fromBig(p, new(big.Int).Rsh(p, 1), g.Big())
			if err = checkSmallMessages(generated); err != nil {
				return nil, err
			}
			return generated, nil
		}
	}
}

// P returns the prime modulus.
func (g *Parameters) P() *saferith.Modulus { return g.p }

// Q returns (p-1)/2.
func (g *Parameters) Q() *saferith.Modulus { return g.q }

// Order returns the multiplicative order of the generator.
// Exponents such as private keys and nonces are sampled in [1, Order()-1].
func (g *Parameters) Order() *saferith.Modulus { return g.order }

// Generator returns a copy of the generator.
func (g *Parameters) Generator() *saferith.Nat { return new(saferith.Nat).SetNat(g.g) }

// PrimeOrder returns true when the generator spans the subgroup of order q.
// Threshold recovery requires this, since it inverts exponents modulo the order.
func (g *Parameters) PrimeOrder() bool {
	return g.order.Big().Cmp(g.q.Big()) == 0
}

// Bits returns the bit length of p.
func (g *Parameters) Bits() int { return g.p.BitLen() }

// ByteLen returns the size of an encoded element.
func (g *Parameters) ByteLen() int { return (g.p.BitLen() + 7) / 8 }

// Secure reports whether p is large enough for production use.
func (g *Parameters) Secure() bool { return g.p.BitLen() >= params.BitsSafePrime }

// Equal returns true if both parameter sets describe the same group and generator.
func (g *Parameters) Equal(other *Parameters) bool {
	if g == nil || other == nil {
		return g == other
	}
	return g.p.Big().Cmp(other.p.Big()) == 0 && g.g.Eq(other.g) == 1
}

// SampleExponent returns a uniform exponent in [1, Order()-1].
func (g *Parameters) SampleExponent(rand io.Reader) (*saferith.Nat, error) {
	return sample.NonZeroModN(rand, g.order)
}

// Exp returns xᵉ (mod p).
func (g *Parameters) Exp(x, e *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).Exp(x, e, g.p)
}

// ExpBase returns gᵉ (mod p).
func (g *Parameters) ExpBase(e *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).Exp(g.g, e, g.p)
}

// Mul returns x⋅y (mod p).
func (g *Parameters) Mul(x, y *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).ModMul(x, y, g.p)
}

// Inverse returns x⁻¹ (mod p).
func (g *Parameters) Inverse(x *saferith.Nat) *saferith.Nat {
	return new(saferith.Nat).ModInverse(x, g.p)
}

// One returns the identity element, sized for p.
func (g *Parameters) One() *saferith.Nat {
	return new(saferith.Nat).SetUint64(1).Resize(g.p.BitLen())
}

// IsElement returns true if x ∈ [1, p-1].
func (g *Parameters) IsElement(x *saferith.Nat) bool {
	if x == nil || x.EqZero() == 1 {
		return false
	}
	_, _, lt := x.CmpMod(g.p)
	return lt == 1
}

// InSubgroup returns true if x is an element of the subgroup of order q.
func (g *Parameters) InSubgroup(x *saferith.Nat) bool {
	if !g.IsElement(x) {
		return false
	}
	return g.Exp(x, g.q.Nat()).Eq(g.One()) == 1
}

// Hides returns true if encryptions of the messages ms are indistinguishable
// without the secret key: g has prime order and every m lies in its subgroup.
//
// Otherwise the quadratic character of c2, or of c1 and y for a primitive
// root g, reveals which message was encrypted.
func (g *Parameters) Hides(ms ...*saferith.Nat) bool {
	if !g.PrimeOrder() {
		return false
	}
	for _, m := range ms {
		if !g.InSubgroup(m) {
			return false
		}
	}
	return true
}

// IsExponent returns true if e ∈ [1, Order()-1].
func (g *Parameters) IsExponent(e *saferith.Nat) bool {
	if e == nil || e.EqZero() == 1 {
		return false
	}
	_, _, lt := e.CmpMod(g.order)
	return lt == 1
}

// WriteTo implements io.WriterTo, writing p and g as fixed width big endian integers.
func (g *Parameters) WriteTo(w io.Writer) (int64, error) {
	total := int64(0)
	for _, x := range []*big.Int{g.p.Big(), g.g.Big()} {
		n, err := w.Write(x.FillBytes(make([]byte, g.ByteLen())))
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Domain implements hash.WriterToWithDomain.
func (*Parameters) Domain() string { return "ElGamal Group Parameters" }
