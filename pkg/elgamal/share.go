package elgamal

import (
	"fmt"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/encmarket/threshold-elgamal/internal/hash"
	"github.com/encmarket/threshold-elgamal/pkg/group"
	"github.com/encmarket/threshold-elgamal/pkg/party"
	"github.com/encmarket/threshold-elgamal/pkg/pool"
	zkdleq "github.com/encmarket/threshold-elgamal/pkg/zk/dleq"
)

// DecryptionShare is d = c1ˣ (mod p) for one participant's exponent x.
type DecryptionShare struct {
	group *group.Parameters
	// ID of the producer. It is only required for threshold recovery, where it
	// is the evaluation point of the participant's key share.
	ID party.ID
	// Value = c1ˣ
	Value *saferith.Nat
	// Proof that log_g(y) = log_c1(Value), if any.
	Proof *zkdleq.Proof
}

// NewDecryptionShare rebuilds a share from its value, as submitted to the market state.
func NewDecryptionShare(g *group.Parameters, id party.ID, value *saferith.Nat) (*DecryptionShare, error) {
	if g == nil || !g.IsElement(value) {
		return nil, fmt.Errorf("%w: share outside [1, p-1]", ErrInvalidInput)
	}
	return &DecryptionShare{group: g, ID: id, Value: new(saferith.Nat).SetNat(value)}, nil
}

// EmptyShare returns a share ready to be unmarshalled for the group g.
func EmptyShare(g *group.Parameters) *DecryptionShare {
	return &DecryptionShare{group: g}
}

func checkShareInput(ct *Ciphertext, sk *SecretKey) error {
	if sk == nil {
		return fmt.Errorf("%w: nil secret key", ErrInvalidInput)
	}
	if !ct.Valid() || !ct.group.Equal(sk.group) {
		return fmt.Errorf("%w: ciphertext does not belong to the key's group", ErrInvalidInput)
	}
	return nil
}

// CreateDecryptionShare returns c1ˣ (mod p). It is deterministic.
func CreateDecryptionShare(ct *Ciphertext, sk *SecretKey) (*DecryptionShare, error) {
	if err := checkShareInput(ct, sk); err != nil {
		return nil, err
	}
	return &DecryptionShare{
		group: sk.group,
		Value: sk.group.Exp(ct.C1, sk.x),
	}, nil
}

func shareHash() *hash.Hash {
	return hash.New("elgamal decryption share")
}

// ProveDecryptionShare returns the decryption share of sk together with a
// proof that it was computed with the exponent of sk's public key.
func ProveDecryptionShare(rand io.Reader, ct *Ciphertext, sk *SecretKey) (*DecryptionShare, error) {
	share, err := CreateDecryptionShare(ct, sk)
	if err != nil {
		return nil, err
	}
	public := zkdleq.Public{H: ct.C1, X: sk.y, Y: share.Value}
	share.Proof, err = zkdleq.NewProof(rand, sk.group, shareHash(), public, zkdleq.Private{X: sk.x})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRandomnessExhausted, err)
	}
	return share, nil
}

// VerifyDecryptionShare checks the proof attached to share against the
// producer's public key, or verification key for a threshold share.
func VerifyDecryptionShare(public *PublicKey, ct *Ciphertext, share *DecryptionShare) error {
	if public == nil || share == nil || !ct.Valid() || !ct.group.Equal(public.group) {
		return fmt.Errorf("%w: share verification inputs", ErrInvalidInput)
	}
	if share.Proof == nil {
		return fmt.Errorf("%w: missing proof", ErrInvalidProof)
	}
	zkPublic := zkdleq.Public{H: ct.C1, X: public.y, Y: share.Value}
	if !share.Proof.Verify(shareHash(), zkPublic) {
		return ErrInvalidProof
	}
	return nil
}

// VerifyDecryptionShares verifies shares[i] against keys[i] in parallel on pl.
func VerifyDecryptionShares(pl *pool.Pool, ct *Ciphertext, keys []*PublicKey, shares []*DecryptionShare) error {
	if len(keys) != len(shares) {
		return fmt.Errorf("%w: %d keys for %d shares", ErrInvalidInput, len(keys), len(shares))
	}
	return pl.Parallelize(len(shares), func(i int) error {
		if err := VerifyDecryptionShare(keys[i], ct, shares[i]); err != nil {
			return fmt.Errorf("share %d: %w", i, err)
		}
		return nil
	})
}

// Group returns the parameters of the share.
func (s *DecryptionShare) Group() *group.Parameters { return s.group }
