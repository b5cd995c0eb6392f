package sim

// Rand is the scenario PRNG. Its entire state is a single uint32 so it
// can travel as the fingerprint seed; math/rand hides its state.
type Rand struct {
	state uint32
}

// NewRand seeds a generator. A zero seed is replaced, since xorshift
// never leaves the zero state.
func NewRand(seed uint32) *Rand {
	if seed == 0 {
		seed = 0x9E3779B9
	}
	return &Rand{state: seed}
}

// Next advances the generator (xorshift32).
func (r *Rand) Next() uint32 {
	x := r.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	r.state = x
	return x
}

// Intn returns a value in [0, n). n must be positive.
func (r *Rand) Intn(n int) int {
	return int(r.Next() % uint32(n))
}

// State returns the current state without advancing.
func (r *Rand) State() uint32 { return r.state }
