// Package fingerprint turns a simulation snapshot into a compact,
// deterministic Fingerprint.
//
// Sprites are ordered by ID and serialized with cramberry, whose
// encoding is deterministic across machines, before being fed to a
// pluggable 64-bit hash. The hash is a change detector: it makes no
// cryptographic claims.
package fingerprint

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"hash"
	"slices"
	"strings"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"github.com/cespare/xxhash/v2"

	"github.com/blockberries/lockstep/types"
)

// Algorithm names a digest implementation.
type Algorithm uint8

const (
	// AlgorithmRolling is the default rotate-xor digest.
	AlgorithmRolling Algorithm = iota + 1
	// AlgorithmXXHash uses xxHash64.
	AlgorithmXXHash
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmRolling:
		return "rolling"
	case AlgorithmXXHash:
		return "xxhash"
	default:
		return fmt.Sprintf("unknown(%d)", a)
	}
}

// New returns a fresh hash for the algorithm.
func (a Algorithm) New() hash.Hash64 {
	if a == AlgorithmXXHash {
		return xxhash.New()
	}
	return NewRolling()
}

// ParseAlgorithm maps a configuration string to an Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rolling":
		return AlgorithmRolling, nil
	case "xxhash", "xxhash64":
		return AlgorithmXXHash, nil
	default:
		return 0, fmt.Errorf("fingerprint: unknown digest algorithm %q", s)
	}
}

// spriteSet is the canonical serialization envelope.
type spriteSet struct {
	Sprites []types.Sprite `cramberry:"1"`
}

// Generator computes fingerprints. A Generator holds no state between
// calls and is safe for concurrent use.
type Generator struct {
	newHash func() hash.Hash64
}

// NewGenerator creates a generator for the given algorithm.
func NewGenerator(algo Algorithm) *Generator {
	return &Generator{newHash: algo.New}
}

// NewGeneratorFunc creates a generator around a custom hash factory.
func NewGeneratorFunc(newHash func() hash.Hash64) *Generator {
	if newHash == nil {
		newHash = NewRolling
	}
	return &Generator{newHash: newHash}
}

// Generate fingerprints the snapshot. The result depends only on the
// snapshot's seed and the set of sprites, not on their order.
func (g *Generator) Generate(snap types.Snapshot) (types.Fingerprint, error) {
	digest, err := g.Digest(snap.Sprites)
	if err != nil {
		return types.Fingerprint{}, err
	}
	return types.Fingerprint{Seed: snap.Seed, Hash: digest}, nil
}

// Digest hashes the sprite set without touching the caller's slice.
func (g *Generator) Digest(sprites []types.Sprite) (types.Digest, error) {
	sorted := slices.Clone(sprites)
	slices.SortStableFunc(sorted, func(a, b types.Sprite) int {
		return cmp.Compare(a.ID, b.ID)
	})

	data, err := cramberry.Marshal(spriteSet{Sprites: sorted})
	if err != nil {
		return types.Digest{}, fmt.Errorf("fingerprint: serialize sprites: %w", err)
	}

	h := g.newHash()
	h.Write(data)

	var d types.Digest
	binary.BigEndian.PutUint64(d[:], h.Sum64())
	return d, nil
}
