package elgamal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cronokirby/saferith"
	"github.com/encmarket/threshold-elgamal/pkg/group"
	"github.com/encmarket/threshold-elgamal/pkg/math/polynomial"
	"github.com/encmarket/threshold-elgamal/pkg/party"
)

// CombineDecryptionShares returns ∏ dᵢ (mod p).
//
// The shares must correspond one to one with the keys folded into the public
// key used for encryption. A missing or extra share is not detected here and
// leads Recover to a wrong message.
func CombineDecryptionShares(g *group.Parameters, shares ...*DecryptionShare) (*saferith.Nat, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil group", ErrInvalidInput)
	}
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no decryption shares", ErrInvalidInput)
	}
	combined := g.One()
	for i, share := range shares {
		if err := checkShare(g, share); err != nil {
			return nil, fmt.Errorf("share %d: %w", i, err)
		}
		combined = g.Mul(combined, share.Value)
	}
	return combined, nil
}

func checkShare(g *group.Parameters, share *DecryptionShare) error {
	if share == nil || share.group == nil || !share.group.Equal(g) {
		return fmt.Errorf("%w: share does not belong to the group", ErrInvalidInput)
	}
	if !g.IsElement(share.Value) {
		return fmt.Errorf("%w: share outside [1, p-1]", ErrInvalidInput)
	}
	return nil
}

// Recover returns c2 ⋅ combined⁻¹ (mod p).
func Recover(g *group.Parameters, c2, combined *saferith.Nat) (*saferith.Nat, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: nil group", ErrInvalidInput)
	}
	if c2 == nil {
		return nil, fmt.Errorf("%w: nil c2", ErrInvalidInput)
	}
	if _, _, lt := c2.CmpMod(g.P()); lt != 1 {
		return nil, fmt.Errorf("%w: c2 outside [0, p-1]", ErrInvalidInput)
	}
	// p is prime, so every element of [1, p-1] is invertible.
	if !g.IsElement(combined) {
		return nil, fmt.Errorf("%w: combined shares outside [1, p-1]", ErrInvalidInput)
	}
	return g.Mul(c2, g.Inverse(combined)), nil
}

// RecoveryPolicy decides which decryption shares are needed and how they are combined.
// It is either AllRequired or ThresholdRequired.
type RecoveryPolicy interface {
	// combine returns the blinding factor yʳ from the shares.
	combine(g *group.Parameters, shares []*DecryptionShare) (*saferith.Nat, error)
	fmt.Stringer
}

// AllRequired recovers from the product of one share per combined key.
// Any missing share silently yields a wrong message.
type AllRequired struct{}

// ThresholdRequired recovers from any Threshold shares of a key dealt with
// threshold.Deal, by Lagrange interpolation in the exponent.
type ThresholdRequired struct {
	Threshold int
}

func (AllRequired) combine(g *group.Parameters, shares []*DecryptionShare) (*saferith.Nat, error) {
	return CombineDecryptionShares(g, shares...)
}

func (AllRequired) String() string { return "all" }

func (p ThresholdRequired) combine(g *group.Parameters, shares []*DecryptionShare) (*saferith.Nat, error) {
	if p.Threshold < 1 {
		return nil, fmt.Errorf("%w: threshold must be at least 1", ErrInvalidInput)
	}
	if !g.PrimeOrder() {
		return nil, fmt.Errorf("%w: threshold recovery requires a generator of prime order", ErrInvalidInput)
	}
	seen := make(map[party.ID]bool, len(shares))
	for i, share := range shares {
		if err := checkShare(g, share); err != nil {
			return nil, fmt.Errorf("share %d: %w", i, err)
		}
		if share.ID == 0 {
			return nil, fmt.Errorf("%w: share %d has no ID", ErrInvalidInput, i)
		}
		if seen[share.ID] {
			return nil, fmt.Errorf("%w: ID %v", ErrDuplicateShare, share.ID)
		}
		seen[share.ID] = true
	}
	if len(shares) < p.Threshold {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrNotEnoughShares, len(shares), p.Threshold)
	}

	used := shares[:p.Threshold]
	ids := make([]party.ID, len(used))
	for i, share := range used {
		ids[i] = share.ID
	}
	lagrange, err := polynomial.Lagrange(g, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	// yʳ = ∏ dᵢ^λᵢ
	combined := g.One()
	for _, share := range used {
		combined = g.Mul(combined, g.Exp(share.Value, lagrange[share.ID]))
	}
	return combined, nil
}

func (p ThresholdRequired) String() string { return "threshold:" + strconv.Itoa(p.Threshold) }

// ParsePolicy parses the String form of a policy: "all" or "threshold:t".
func ParsePolicy(s string) (RecoveryPolicy, error) {
	if s == "all" {
		return AllRequired{}, nil
	}
	if rest := strings.TrimPrefix(s, "threshold:"); rest != s {
		t, err := strconv.Atoi(rest)
		if err != nil || t < 1 {
			return nil, fmt.Errorf("%w: invalid threshold %q", ErrInvalidInput, rest)
		}
		return ThresholdRequired{Threshold: t}, nil
	}
	return nil, fmt.Errorf("%w: unknown recovery policy %q", ErrInvalidInput, s)
}

// ThresholdDecrypt combines shares according to policy and recovers the message of ct.
func ThresholdDecrypt(ct *Ciphertext, policy RecoveryPolicy, shares []*DecryptionShare) (*saferith.Nat, error) {
	if !ct.Valid() {
		return nil, fmt.Errorf("%w: invalid ciphertext", ErrInvalidInput)
	}
	if policy == nil {
		return nil, fmt.Errorf("%w: nil recovery policy", ErrInvalidInput)
	}
	if len(shares) == 0 {
		return nil, fmt.Errorf("%w: no decryption shares", ErrNotEnoughShares)
	}
	combined, err := policy.combine(ct.group, shares)
	if err != nil {
		return nil, err
	}
	return Recover(ct.group, ct.C2, combined)
}

// Decrypt recovers the message of ct with a single secret key, for a ciphertext
// encrypted to that key alone.
func Decrypt(ct *Ciphertext, sk *SecretKey) (*saferith.Nat, error) {
	share, err := CreateDecryptionShare(ct, sk)
	if err != nil {
		return nil, err
	}
	return Recover(ct.group, ct.C2, share.Value)
}
