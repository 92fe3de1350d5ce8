package elgamal

import "errors"

var (
	// ErrInvalidInput covers empty key or share sets and out of range integers.
	ErrInvalidInput = errors.New("elgamal: invalid input")
	// ErrMessageTooLarge is returned when encrypting m ≥ p.
	ErrMessageTooLarge = errors.New("elgamal: message is not smaller than the prime")
	// ErrRandomnessExhausted is returned when the random source fails. It is not retried.
	ErrRandomnessExhausted = errors.New("elgamal: randomness source failed")
	ErrNotEnoughShares     = errors.New("elgamal: not enough decryption shares")
	ErrDuplicateShare      = errors.New("elgamal: duplicate decryption share")
	ErrInvalidProof        = errors.New("elgamal: invalid proof")
)
