package detector

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/lockstep/types"
)

var deadbeef = types.Digest{0xde, 0xad, 0xbe, 0xef}

func record(tick types.Tick, local, remote types.Fingerprint) types.SyncRecord {
	return types.SyncRecord{
		Tick:      tick,
		Local:     local,
		HasLocal:  true,
		Remote:    remote,
		HasRemote: true,
	}
}

func TestDetector_Matching(t *testing.T) {
	d := New()
	f := types.Fingerprint{Seed: 0xAAAA, Hash: deadbeef}

	v, ok := d.Compare(record(100, f, f))
	require.True(t, ok)
	require.False(t, v.Mismatch.Any())
	require.False(t, v.Tripped)
	require.False(t, d.IsDesynchronized())
	require.Equal(t, StateSynchronized, d.State())

	last, ok := d.LastVerified()
	require.True(t, ok)
	require.Equal(t, types.Tick(100), last.Tick)
	_, _, diverged := d.FirstDivergence()
	require.False(t, diverged)
}

func TestDetector_SeedMismatchLatches(t *testing.T) {
	d := New()
	local := types.Fingerprint{Seed: 0xAAAA, Hash: deadbeef}
	remote := types.Fingerprint{Seed: 0xBBBB, Hash: deadbeef}

	v, ok := d.Compare(record(101, local, remote))
	require.True(t, ok)
	require.True(t, v.Tripped)
	require.True(t, v.Mismatch.Has(types.MismatchSeed))
	require.False(t, v.Mismatch.Has(types.MismatchHash))
	require.True(t, d.IsDesynchronized())

	// A perfect match afterwards does not clear the flag.
	v, ok = d.Compare(record(102, local, local))
	require.True(t, ok)
	require.False(t, v.Tripped)
	require.True(t, d.IsDesynchronized())

	tick, m, diverged := d.FirstDivergence()
	require.True(t, diverged)
	require.Equal(t, types.Tick(101), tick)
	require.Equal(t, types.MismatchSeed, m)

	last, _ := d.LastVerified()
	require.Equal(t, types.Tick(102), last.Tick)
}

func TestDetector_FirstDivergenceIsEarliestTick(t *testing.T) {
	d := New()
	a := types.Fingerprint{Seed: 1}
	b := types.Fingerprint{Seed: 1, Hash: types.Digest{9}}

	v, _ := d.Compare(record(105, a, types.Fingerprint{Seed: 2}))
	require.True(t, v.Tripped)
	d.Compare(record(106, a, b))

	// A late report for an earlier tick moves the first divergence back
	// without tripping again.
	v, _ = d.Compare(record(101, a, b))
	require.False(t, v.Tripped)
	require.True(t, d.IsDesynchronized())

	d.Compare(record(103, a, types.Fingerprint{Seed: 3}))
	d.Compare(record(100, a, a))

	tick, m, _ := d.FirstDivergence()
	require.Equal(t, types.Tick(101), tick)
	require.Equal(t, types.MismatchHash, m)

	// A late, older comparison does not move LastVerified backwards.
	last, _ := d.LastVerified()
	require.Equal(t, types.Tick(106), last.Tick)
}

func TestDetector_IncompleteIgnored(t *testing.T) {
	d := New()
	_, ok := d.Compare(types.SyncRecord{Tick: 1, HasLocal: true})
	require.False(t, ok)
	_, compared := d.LastVerified()
	require.False(t, compared)
}

func TestDetector_ConcurrentTripOnce(t *testing.T) {
	d := New()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		tripped int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _ := d.Compare(record(types.Tick(i+1), types.Fingerprint{Seed: 1}, types.Fingerprint{Seed: 2}))
			if v.Tripped {
				mu.Lock()
				tripped++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, tripped)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "Synchronized", StateSynchronized.String())
	require.Equal(t, "Desynchronized", StateDesynchronized.String())
	require.Equal(t, "unknown(7)", State(7).String())
}
