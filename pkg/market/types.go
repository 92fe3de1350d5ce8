package market

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cronokirby/saferith"
)

var (
	ErrRegistrationClosed = errors.New("market: key registration is closed")
	ErrKeySetFrozen       = errors.New("market: key set is frozen once a vote is encrypted")
	ErrJointKeyChanged    = errors.New("market: vote was encrypted under a stale joint key")
	ErrDuplicateKey       = errors.New("market: participant already registered a key")
	ErrVotingClosed       = errors.New("market: voting is closed")
	ErrVotingOpen         = errors.New("market: voting is still open")
	ErrDuplicateShare     = errors.New("market: participant already submitted a decryption share")
	ErrUnknownParticipant = errors.New("market: unknown participant")
	ErrFinalized          = errors.New("market: market is finalized")
	ErrNoVote             = errors.New("market: no encrypted vote")
	ErrNoKeys             = errors.New("market: no registered keys")
	ErrInvalidOutcome     = errors.New("market: recovered message is not a valid choice")
	ErrInvalidConfig      = errors.New("market: invalid configuration")
	ErrUnknownMarket      = errors.New("market: unknown market")
)

// Phase is the position of a market in its lifecycle. It only moves forward.
type Phase int

const (
	ParametersFixed Phase = iota
	KeysRegistered
	VoteEncrypted
	SharesCollecting
	Recovered
)

func (p Phase) String() string {
	switch p {
	case ParametersFixed:
		return "parameters-fixed"
	case KeysRegistered:
		return "keys-registered"
	case VoteEncrypted:
		return "vote-encrypted"
	case SharesCollecting:
		return "shares-collecting"
	case Recovered:
		return "recovered"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Choice is the plaintext of a vote.
type Choice uint8

const (
	Yes Choice = 1
	No  Choice = 2
)

func (c Choice) String() string {
	switch c {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return fmt.Sprintf("choice(%d)", uint8(c))
	}
}

// Valid returns true for Yes and No.
func (c Choice) Valid() bool {
	return c == Yes || c == No
}

// Message returns the vote encoded as an ElGamal message.
func (c Choice) Message() *saferith.Nat {
	return new(saferith.Nat).SetUint64(uint64(c))
}

// ChoiceFromMessage decodes a recovered message.
func ChoiceFromMessage(m *saferith.Nat) (Choice, error) {
	if m == nil {
		return 0, ErrInvalidOutcome
	}
	v := m.Big()
	if !v.IsUint64() || v.Uint64() > uint64(No) || !Choice(v.Uint64()).Valid() {
		return 0, fmt.Errorf("%w: %v", ErrInvalidOutcome, v)
	}
	return Choice(v.Uint64()), nil
}

// ParseChoice accepts "yes", "no", "1" and "2".
func ParseChoice(s string) (Choice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "1":
		return Yes, nil
	case "no", "2":
		return No, nil
	}
	return 0, fmt.Errorf("market: unknown choice %q", s)
}

// Clock returns the current time, and can be replaced in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
