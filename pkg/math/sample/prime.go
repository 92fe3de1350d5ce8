package sample

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/encmarket/threshold-elgamal/internal/params"
	"github.com/encmarket/threshold-elgamal/pkg/pool"
)

// MinSafePrimeBits is the smallest size accepted by SafePrime.
//
// Below this, (p-1)/2 may coincide with one of the trial primes and be sieved out.
const MinSafePrimeBits = 16

// sieveBound bounds the odd primes used to pre-filter candidates.
const sieveBound = 780

var trialPrimes = oddPrimesBelow(sieveBound)

func oddPrimesBelow(n int) []uint64 {
	composite := make([]bool, n)
	var primes []uint64
	for i := 3; i < n; i += 2 {
		if composite[i] {
			continue
		}
		primes = append(primes, uint64(i))
		for j := i * i; j < n; j += 2 * i {
			composite[j] = true
		}
	}
	return primes
}

// potentialSafePrime returns a number of exactly bits bits, ≡ 7 (mod 8), such
// that neither it nor its half is divisible by a trial prime. It is not yet
// tested for primality.
func potentialSafePrime(rand io.Reader, bits int) (*big.Int, error) {
	topBits := uint(bits % 8)
	if topBits == 0 {
		topBits = 8
	}

	buf := make([]byte, (bits+7)/8)
	base := new(big.Int)
	r, m := new(big.Int), new(big.Int)
	// residues of base, so that base+delta can be sieved without big.Int work
	residues := make([]uint64, len(trialPrimes))
	// OpenSSL's bound on how far to walk from a random starting point.
	maxDelta := uint64(1)<<32 - trialPrimes[len(trialPrimes)-1]

	for {
		if err := readBits(rand, buf); err != nil {
			return nil, err
		}
		buf[0] &= byte(1<<topBits - 1)
		// force the two leading bits
		if topBits >= 2 {
			buf[0] |= 0b11 << (topBits - 2)
		} else {
			buf[0] |= 1
			buf[1] |= 0x80
		}
		// p ≡ 7 (mod 8) makes 2 a quadratic residue, so that small messages
		// such as 1 and 2 all lie in the subgroup of order q.
		buf[len(buf)-1] |= 7
		base.SetBytes(buf)

		for i, prime := range trialPrimes {
			residues[i] = r.Mod(base, m.SetUint64(prime)).Uint64()
		}

	walk:
		// Steps of 8 keep the candidate ≡ 7 (mod 8).
		for delta := uint64(0); delta < maxDelta; delta += 8 {
			for i, prime := range trialPrimes {
				// 0 means prime | p, and 1 means prime | (p-1)/2.
				if (residues[i]+delta)%prime <= 1 {
					continue walk
				}
			}
			candidate := new(big.Int).SetUint64(delta)
			candidate.Add(candidate, base)
			if candidate.BitLen() != bits {
				break
			}
			return candidate, nil
		}
	}
}

// trySafePrime returns a safe prime, or nil if the next candidate failed
// the primality tests.
func trySafePrime(rand io.Reader, bits int) (*big.Int, error) {
	p, err := potentialSafePrime(rand, bits)
	if err != nil {
		return nil, err
	}
	// q is tested first: after sieving, it is the likelier of the two to be composite.
	q := new(big.Int).Rsh(p, 1)
	if !q.ProbablyPrime(params.PrimalityIterations) {
		return nil, nil
	}
	if !p.ProbablyPrime(params.PrimalityIterations) {
		return nil, nil
	}
	return p, nil
}

// SafePrime returns a prime p ≡ 7 (mod 8) of exactly the given size, such that
// q := (p - 1) / 2 is also a prime number.
//
// The search runs on every worker of pl; rand is shared between them
// through a pool.LockedReader.
func SafePrime(rand io.Reader, bits int, pl *pool.Pool) (*big.Int, error) {
	if bits < MinSafePrimeBits {
		return nil, fmt.Errorf("sample: safe prime size must be at least %d bits, got %d", MinSafePrimeBits, bits)
	}
	reader := pool.NewLockedReader(rand)
	results, err := pl.Search(1, func() (interface{}, error) {
		p, err := trySafePrime(reader, bits)
		// a nil *big.Int must not become a non-nil interface
		if p == nil {
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	p, ok := results[0].(*big.Int)
	if !ok {
		return nil, errors.New("sample: unexpected search result")
	}
	return p, nil
}
