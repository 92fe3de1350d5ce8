// Package threshold deals Shamir shares of an ElGamal private key, so that any
// t of the n holders can recover a message with elgamal.ThresholdRequired.
//
// A trusted dealer samples f of degree t-1 over ℤ_q, hands f(i) to party i and
// publishes the Feldman commitments g^aⱼ, which let every party check its share.
package threshold

import (
	"errors"
	"fmt"
	"io"

	"github.com/encmarket/threshold-elgamal/pkg/elgamal"
	"github.com/encmarket/threshold-elgamal/pkg/group"
	"github.com/encmarket/threshold-elgamal/pkg/math/polynomial"
	"github.com/encmarket/threshold-elgamal/pkg/party"
)

const maxDealAttempts = 16

var (
	ErrInvalidThreshold = errors.New("threshold: threshold must be in [1, n]")
	ErrInvalidShare     = errors.New("threshold: share does not match the commitments")
)

// KeyShare is party ID's share f(ID) of the joint private key.
// Secret.PublicKey is the verification key g^f(ID).
type KeyShare struct {
	ID     party.ID
	Secret *elgamal.SecretKey
}

// Dealing is the output of Deal.
type Dealing struct {
	Threshold int
	Shares    []*KeyShare
	// PublicKey = g^f(0)
	PublicKey   *elgamal.PublicKey
	Commitments *polynomial.Exponent
}

// Deal shares a fresh private key between ids, with reconstruction threshold t.
//
// g must have prime order, and every ID must be smaller than its order.
func Deal(rand io.Reader, g *group.Parameters, t int, ids []party.ID) (*Dealing, error) {
	if g == nil || !g.PrimeOrder() {
		return nil, fmt.Errorf("threshold: %w", polynomial.ErrNotPrimeOrder)
	}
	sorted, err := party.NewIDSlice(ids)
	if err != nil {
		return nil, fmt.Errorf("threshold: %w", err)
	}
	if t < 1 || t > len(sorted) {
		return nil, fmt.Errorf("%w: got t = %d for n = %d", ErrInvalidThreshold, t, len(sorted))
	}
	for _, id := range sorted {
		if _, _, lt := id.Nat().CmpMod(g.Order()); lt != 1 {
			return nil, fmt.Errorf("threshold: ID %v is not smaller than the group order", id)
		}
	}

	for attempt := 0; attempt < maxDealAttempts; attempt++ {
		secret, err := g.SampleExponent(rand)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", elgamal.ErrRandomnessExhausted, err)
		}
		f, err := polynomial.NewPolynomial(rand, g, t-1, secret)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", elgamal.ErrRandomnessExhausted, err)
		}
		shares, ok := evaluate(g, f, sorted)
		if !ok {
			// some f(i) = 0, which is not a valid private exponent
			continue
		}
		joint, err := elgamal.NewSecretKey(g, secret)
		if err != nil {
			return nil, err
		}
		return &Dealing{
			Threshold:   t,
			Shares:      shares,
			PublicKey:   joint.PublicKey,
			Commitments: polynomial.NewPolynomialExponent(f),
		}, nil
	}
	return nil, fmt.Errorf("threshold: no valid sharing after %d attempts", maxDealAttempts)
}

func evaluate(g *group.Parameters, f *polynomial.Polynomial, ids party.IDSlice) ([]*KeyShare, bool) {
	shares := make([]*KeyShare, len(ids))
	for i, id := range ids {
		sk, err := elgamal.NewSecretKey(g, f.Evaluate(id.Nat()))
		if err != nil {
			return nil, false
		}
		shares[i] = &KeyShare{ID: id, Secret: sk}
	}
	return shares, true
}

// VerificationKey returns g^f(id), computed from the public commitments.
func VerificationKey(commitments *polynomial.Exponent, g *group.Parameters, id party.ID) (*elgamal.PublicKey, error) {
	if id == 0 {
		return nil, fmt.Errorf("threshold: %w", party.ErrZeroID)
	}
	return elgamal.NewPublicKey(g, commitments.Evaluate(id.Nat()))
}

// VerifyShare checks g^f(i) = ∏ Cⱼ^(iʲ) for the share of party i.
func VerifyShare(share *KeyShare, commitments *polynomial.Exponent) error {
	if share == nil || share.Secret == nil || commitments == nil {
		return ErrInvalidShare
	}
	expected, err := VerificationKey(commitments, share.Secret.Group(), share.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidShare, err)
	}
	if !expected.Equal(share.Secret.PublicKey) {
		return ErrInvalidShare
	}
	return nil
}

// DecryptionShare returns the share's c1^f(i), tagged with its ID.
func (s *KeyShare) DecryptionShare(ct *elgamal.Ciphertext) (*elgamal.DecryptionShare, error) {
	share, err := elgamal.CreateDecryptionShare(ct, s.Secret)
	if err != nil {
		return nil, err
	}
	share.ID = s.ID
	return share, nil
}

// ProveDecryptionShare is DecryptionShare with a proof against the share's verification key.
func (s *KeyShare) ProveDecryptionShare(rand io.Reader, ct *elgamal.Ciphertext) (*elgamal.DecryptionShare, error) {
	share, err := elgamal.ProveDecryptionShare(rand, ct, s.Secret)
	if err != nil {
		return nil, err
	}
	share.ID = s.ID
	return share, nil
}
