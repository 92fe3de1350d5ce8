package params

const (
	SecParam  = 256
	SecBytes  = SecParam / 8
	StatParam = 80

	// BitsSafePrime is the minimum size of the prime modulus p = 2q+1 for a
	// group to be considered secure.
	BitsSafePrime  = 8 * SecParam      // = 2048
	BytesSafePrime = BitsSafePrime / 8 // = 256

	// PrimalityIterations is the number of Miller-Rabin rounds used when
	// validating externally supplied primes.
	//
	// 20 is the same number that Go uses internally.
	PrimalityIterations = 20

	// DigestLengthBytes is the length of a transcript digest.
	DigestLengthBytes = SecBytes * 2 // = 64
)
