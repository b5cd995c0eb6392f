// Package types defines the core data types of the lockstep
// synchronization checker.
//
// These are plain Go structs with cramberry struct tags for
// deterministic binary serialization. Transport concerns
// (gRPC codec registration) are handled in the transport packages.
package types

import "encoding/hex"

// Tick identifies one step of the deterministic simulation clock.
type Tick uint64

// DigestSize is the width of a content digest in bytes.
const DigestSize = 8

// Digest is a fixed-width hash over the serialized entity set.
// It is a change detector, not a cryptographic commitment.
type Digest [DigestSize]byte

// String renders the digest as lowercase hexadecimal.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether no bits of the digest are set.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// ParseDigest decodes a hexadecimal digest as produced by String.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, err
	}
	if len(raw) != DigestSize {
		return d, hex.ErrLength
	}
	copy(d[:], raw)
	return d, nil
}

// Fingerprint summarizes simulation state at one tick: the PRNG
// state after the tick and a digest over every simulated sprite.
// Fingerprints are values; once produced they never change.
type Fingerprint struct {
	Seed uint32 `cramberry:"1"`
	Hash Digest `cramberry:"2"`
}

// SeedMatches compares only the PRNG state.
func (f Fingerprint) SeedMatches(o Fingerprint) bool { return f.Seed == o.Seed }

// HashMatches compares only the entity digest.
func (f Fingerprint) HashMatches(o Fingerprint) bool { return f.Hash == o.Hash }

// Equal reports whether both components match.
func (f Fingerprint) Equal(o Fingerprint) bool { return f == o }
