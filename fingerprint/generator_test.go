package fingerprint_test

import (
	"hash"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/lockstep/fingerprint"
	lockstepstest "github.com/blockberries/lockstep/testing"
	"github.com/blockberries/lockstep/types"
)

func TestRollingCompliance(t *testing.T) {
	lockstepstest.RunDigestCompliance(t, fingerprint.NewRolling)
}

func TestXXHashCompliance(t *testing.T) {
	lockstepstest.RunDigestCompliance(t, fingerprint.AlgorithmXXHash.New)
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    fingerprint.Algorithm
		wantErr bool
	}{
		{"", fingerprint.AlgorithmRolling, false},
		{"rolling", fingerprint.AlgorithmRolling, false},
		{" XXHash ", fingerprint.AlgorithmXXHash, false},
		{"xxhash64", fingerprint.AlgorithmXXHash, false},
		{"sha256", 0, true},
	}
	for _, tt := range tests {
		got, err := fingerprint.ParseAlgorithm(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got, tt.in)
	}
}

func TestAlgorithmString(t *testing.T) {
	require.Equal(t, "rolling", fingerprint.AlgorithmRolling.String())
	require.Equal(t, "xxhash", fingerprint.AlgorithmXXHash.String())
	require.Equal(t, "unknown(9)", fingerprint.Algorithm(9).String())
}

func TestAlgorithmsDiffer(t *testing.T) {
	snap := types.Snapshot{Tick: 3, Seed: 1, Sprites: lockstepstest.MakeSprites(4)}

	rolling, err := fingerprint.NewGenerator(fingerprint.AlgorithmRolling).Generate(snap)
	require.NoError(t, err)
	xx, err := fingerprint.NewGenerator(fingerprint.AlgorithmXXHash).Generate(snap)
	require.NoError(t, err)

	require.Equal(t, rolling.Seed, xx.Seed)
	require.NotEqual(t, rolling.Hash, xx.Hash)
}

func TestXXHashMatchesLibraryFactory(t *testing.T) {
	sprites := lockstepstest.MakeSprites(6)
	want, err := fingerprint.NewGeneratorFunc(func() hash.Hash64 { return xxhash.New() }).Digest(sprites)
	require.NoError(t, err)
	got, err := fingerprint.NewGenerator(fingerprint.AlgorithmXXHash).Digest(sprites)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestNilFactoryFallsBackToRolling(t *testing.T) {
	sprites := lockstepstest.MakeSprites(5)
	want, err := fingerprint.NewGenerator(fingerprint.AlgorithmRolling).Digest(sprites)
	require.NoError(t, err)
	got, err := fingerprint.NewGeneratorFunc(nil).Digest(sprites)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
