package types

import "strings"

// Mismatch is a bitfield naming which fingerprint components
// disagreed at a compared tick.
type Mismatch uint8

const (
	MismatchSeed Mismatch = 1 << iota // 0b01
	MismatchHash                      // 0b10
)

// Has returns true if all bits in m are set.
func (c Mismatch) Has(m Mismatch) bool {
	return c&m == m
}

// Any reports whether at least one component disagreed.
func (c Mismatch) Any() bool { return c != 0 }

// String returns a human-readable representation.
func (c Mismatch) String() string {
	var parts []string
	if c.Has(MismatchSeed) {
		parts = append(parts, "seed")
	}
	if c.Has(MismatchHash) {
		parts = append(parts, "hash")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// CompareFingerprints checks seed and hash independently.
func CompareFingerprints(local, remote Fingerprint) Mismatch {
	var m Mismatch
	if !local.SeedMatches(remote) {
		m |= MismatchSeed
	}
	if !local.HashMatches(remote) {
		m |= MismatchHash
	}
	return m
}
