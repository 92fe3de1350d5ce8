package market

import (
	"fmt"
	"time"

	"github.com/encmarket/threshold-elgamal/pkg/elgamal"
	"github.com/encmarket/threshold-elgamal/pkg/group"
	"github.com/encmarket/threshold-elgamal/pkg/math/polynomial"
	"github.com/rs/zerolog"
)

// Config holds the parameters fixed when a market is made.
type Config struct {
	Description string
	// Group defaults to group.Default().
	Group *group.Parameters
	// RegistrationDelay is how long participants may register keys after creation.
	RegistrationDelay time.Duration
	// Duration is how long the vote stays open after key registration closes.
	Duration time.Duration

	// Policy defaults to elgamal.AllRequired.
	Policy elgamal.RecoveryPolicy
	// JointKey and Commitments come from threshold.Deal, and are required
	// with elgamal.ThresholdRequired. Registered keys are then checked
	// against the verification keys derived from Commitments.
	JointKey    *elgamal.PublicKey
	Commitments *polynomial.Exponent

	// RequireKeyProofs rejects keys registered without a proof of possession.
	RequireKeyProofs bool
	// RequireShareProofs rejects decryption shares without a DLEQ proof.
	RequireShareProofs bool

	Clock  Clock
	Logger *zerolog.Logger
}

func (c *Config) validate() error {
	if c.Group == nil {
		c.Group = group.Default()
	}
	if c.Policy == nil {
		c.Policy = elgamal.AllRequired{}
	}
	if c.Clock == nil {
		c.Clock = systemClock{}
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	if !c.Group.Hides(Yes.Message(), No.Message()) {
		return fmt.Errorf("%w: encrypted votes would be distinguishable in this group", ErrInvalidConfig)
	}
	if c.RegistrationDelay < 0 || c.Duration < 0 {
		return fmt.Errorf("%w: negative window", ErrInvalidConfig)
	}

	switch policy := c.Policy.(type) {
	case elgamal.AllRequired:
		if c.JointKey != nil || c.Commitments != nil {
			return fmt.Errorf("%w: the joint key of an all-required market is the product of the registered keys", ErrInvalidConfig)
		}
	case elgamal.ThresholdRequired:
		if c.JointKey == nil || c.Commitments == nil {
			return fmt.Errorf("%w: threshold markets need the dealt joint key and commitments", ErrInvalidConfig)
		}
		if !c.JointKey.Group().Equal(c.Group) {
			return fmt.Errorf("%w: joint key belongs to another group", ErrInvalidConfig)
		}
		if c.Commitments.Constant().Eq(c.JointKey.Value()) != 1 {
			return fmt.Errorf("%w: commitments do not match the joint key", ErrInvalidConfig)
		}
		if c.Commitments.Degree()+1 != policy.Threshold {
			return fmt.Errorf("%w: commitments of degree %d for threshold %d", ErrInvalidConfig, c.Commitments.Degree(), policy.Threshold)
		}
	default:
		return fmt.Errorf("%w: unsupported policy %v", ErrInvalidConfig, c.Policy)
	}
	return nil
}
