package ledger

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/lockstep"
	"github.com/blockberries/lockstep/types"
)

func fp(seed uint32, b byte) types.Fingerprint {
	return types.Fingerprint{Seed: seed, Hash: types.Digest{b}}
}

func report(tick types.Tick, f types.Fingerprint) types.FingerprintReport {
	return types.FingerprintReport{Tick: tick, Fingerprint: f}
}

func TestRecordLocal_Idempotent(t *testing.T) {
	l := New(8)

	_, err := l.RecordLocal(5, fp(0xAAAA, 1))
	require.NoError(t, err)
	rec, err := l.RecordLocal(5, fp(0xAAAA, 1))
	require.NoError(t, err)
	require.True(t, rec.HasLocal)
	require.Equal(t, 1, l.Len())
}

func TestRecordLocal_DuplicateTickMismatch(t *testing.T) {
	l := New(8)

	_, err := l.RecordLocal(5, fp(0xAAAA, 1))
	require.NoError(t, err)
	_, err = l.RecordLocal(5, fp(0xAAAA, 2))
	require.Error(t, err)

	dup, ok := lockstep.IsDuplicateTickMismatch(err)
	require.True(t, ok)
	require.Equal(t, types.Tick(5), dup.Tick)
	require.Equal(t, fp(0xAAAA, 1), dup.First)
	require.Equal(t, fp(0xAAAA, 2), dup.Second)

	// The first value is retained.
	rec, ok := l.Get(5)
	require.True(t, ok)
	require.Equal(t, fp(0xAAAA, 1), rec.Local)
}

func TestRecordRemote_BeforeAndAfterLocal(t *testing.T) {
	l := New(8)

	rec, err := l.RecordRemote(report(3, fp(7, 7)), types.Timestamp{})
	require.NoError(t, err)
	require.False(t, rec.Complete())

	rec, err = l.RecordLocal(3, fp(7, 7))
	require.NoError(t, err)
	require.True(t, rec.Complete())

	rec, err = l.RecordLocal(4, fp(8, 8))
	require.NoError(t, err)
	require.False(t, rec.Complete())
	rec, err = l.RecordRemote(report(4, fp(8, 8)), types.Timestamp{})
	require.NoError(t, err)
	require.True(t, rec.Complete())
}

func TestRecordRemote_Conflict(t *testing.T) {
	l := New(8)
	_, err := l.RecordRemote(report(1, fp(1, 1)), types.Timestamp{})
	require.NoError(t, err)
	_, err = l.RecordRemote(report(1, fp(1, 1)), types.Timestamp{})
	require.NoError(t, err)
	_, err = l.RecordRemote(report(1, fp(2, 2)), types.Timestamp{})
	require.ErrorIs(t, err, ErrRemoteConflict)

	rec, ok := l.Get(1)
	require.True(t, ok)
	require.Equal(t, fp(1, 1), rec.Remote)
}

func TestRecordRemote_OrderIndependent(t *testing.T) {
	const capacity = 16
	const ticks = 16

	inOrder := New(capacity)
	shuffled := New(capacity)
	for tick := types.Tick(1); tick <= ticks; tick++ {
		_, err := inOrder.RecordLocal(tick, fp(uint32(tick), byte(tick)))
		require.NoError(t, err)
		_, err = shuffled.RecordLocal(tick, fp(uint32(tick), byte(tick)))
		require.NoError(t, err)
	}

	reports := make([]types.FingerprintReport, 0, ticks)
	for tick := types.Tick(1); tick <= ticks; tick++ {
		reports = append(reports, report(tick, fp(uint32(tick), byte(tick^1))))
	}
	for _, r := range reports {
		_, err := inOrder.RecordRemote(r, types.Timestamp{})
		require.NoError(t, err)
	}

	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 5; round++ {
		rng.Shuffle(len(reports), func(i, j int) { reports[i], reports[j] = reports[j], reports[i] })
		for _, r := range reports {
			_, err := shuffled.RecordRemote(r, types.Timestamp{})
			require.NoError(t, err)
		}
	}

	require.Equal(t, inOrder.Records(), shuffled.Records())
	latestA, _ := inOrder.LatestComplete()
	latestB, _ := shuffled.LatestComplete()
	require.Equal(t, latestA, latestB)
}

func TestEviction(t *testing.T) {
	const capacity = 4
	l := New(capacity)
	for tick := types.Tick(1); tick <= capacity; tick++ {
		_, err := l.RecordLocal(tick, fp(uint32(tick), 0))
		require.NoError(t, err)
	}
	require.Equal(t, capacity, l.Len())

	// Inserting N+1 evicts the oldest surviving tick.
	_, err := l.RecordLocal(capacity+1, fp(99, 0))
	require.NoError(t, err)
	require.Equal(t, capacity, l.Len())

	_, ok := l.Get(1)
	require.False(t, ok, "evicted tick must not be found")
	rec, ok := l.Get(2)
	require.True(t, ok)
	require.Equal(t, uint32(2), rec.Local.Seed)

	// Inserting N+K drops everything at or below newest-N.
	_, err = l.RecordLocal(capacity+3, fp(100, 0))
	require.NoError(t, err)
	for _, tick := range []types.Tick{1, 2, 3} {
		_, ok := l.Get(tick)
		require.Falsef(t, ok, "tick %d should be evicted", tick)
	}
	// Tick 6 was never recorded; its slot still holds tick 2.
	_, ok = l.Get(capacity + 2)
	require.False(t, ok)
	_, ok = l.Get(capacity + 1)
	require.True(t, ok)
}

func TestRecordRemote_EvictedTickDropped(t *testing.T) {
	l := New(4)
	for tick := types.Tick(1); tick <= 10; tick++ {
		_, err := l.RecordLocal(tick, fp(uint32(tick), 0))
		require.NoError(t, err)
	}
	_, err := l.RecordRemote(report(2, fp(2, 0)), types.Timestamp{})
	require.True(t, errors.Is(err, ErrEvicted))

	_, ok := l.Get(2)
	require.False(t, ok)
	_, err = l.RecordLocal(3, fp(3, 0))
	require.ErrorIs(t, err, ErrEvicted)
}

func TestLatest(t *testing.T) {
	l := New(8)
	_, ok := l.Latest()
	require.False(t, ok)

	_, err := l.RecordLocal(1, fp(1, 1))
	require.NoError(t, err)
	_, err = l.RecordRemote(report(1, fp(1, 1)), types.Timestamp{})
	require.NoError(t, err)
	_, err = l.RecordLocal(2, fp(2, 2))
	require.NoError(t, err)

	latest, ok := l.Latest()
	require.True(t, ok)
	require.Equal(t, types.Tick(2), latest.Tick)
	require.False(t, latest.Complete(), "tick 2 is pending")

	complete, ok := l.LatestComplete()
	require.True(t, ok)
	require.Equal(t, types.Tick(1), complete.Tick)

	// A remote report ahead of the local simulation does not move Latest.
	_, err = l.RecordRemote(report(3, fp(3, 3)), types.Timestamp{})
	require.NoError(t, err)
	latest, _ = l.Latest()
	require.Equal(t, types.Tick(2), latest.Tick)
	require.Equal(t, 1, l.Ahead())
}

func TestRecordRemote_FarAheadKeepsLocalHistory(t *testing.T) {
	l := New(4)
	for tick := types.Tick(1); tick <= 3; tick++ {
		_, err := l.RecordLocal(tick, fp(uint32(tick), 0))
		require.NoError(t, err)
	}

	_, err := l.RecordRemote(report(100, fp(100, 0)), types.Timestamp{})
	require.ErrorIs(t, err, ErrAhead)
	require.Zero(t, l.Ahead())

	latest, ok := l.Latest()
	require.True(t, ok)
	require.Equal(t, types.Tick(3), latest.Tick)

	_, err = l.RecordLocal(4, fp(4, 0))
	require.NoError(t, err)
	_, ok = l.Get(1)
	require.True(t, ok, "remote traffic must not evict local ticks")
	require.Equal(t, 4, l.Len())

	_, err = l.RecordLocal(50, fp(50, 0))
	require.NoError(t, err)
	latest, _ = l.Latest()
	require.Equal(t, types.Tick(50), latest.Tick)
}

func TestRecordRemote_HeldUntilLocalCatchesUp(t *testing.T) {
	const capacity = 4
	l := New(capacity)
	_, err := l.RecordLocal(1, fp(1, 1))
	require.NoError(t, err)

	// Up to capacity ticks ahead are held; beyond that is refused.
	for tick := types.Tick(2); tick <= 1+capacity; tick++ {
		rec, err := l.RecordRemote(report(tick, fp(uint32(tick), byte(tick))), types.Timestamp{})
		require.NoError(t, err)
		require.False(t, rec.Complete())
	}
	_, err = l.RecordRemote(report(2+capacity, fp(9, 9)), types.Timestamp{})
	require.ErrorIs(t, err, ErrAhead)
	require.Equal(t, capacity, l.Ahead())

	held, ok := l.Get(3)
	require.True(t, ok)
	require.True(t, held.HasRemote)

	rec, err := l.RecordLocal(2, fp(2, 2))
	require.NoError(t, err)
	require.True(t, rec.Complete())
	require.Equal(t, capacity-1, l.Ahead())

	// Skipping ahead pulls the intermediate reports into the window.
	rec, err = l.RecordLocal(5, fp(5, 5))
	require.NoError(t, err)
	require.True(t, rec.Complete())
	require.Zero(t, l.Ahead())

	rec, err = l.RecordLocal(3, fp(3, 3))
	require.NoError(t, err)
	require.True(t, rec.Complete())

	complete, ok := l.LatestComplete()
	require.True(t, ok)
	require.Equal(t, types.Tick(5), complete.Tick)
}

func TestRecordRemote_BeforeFirstLocalTick(t *testing.T) {
	l := New(2)
	_, err := l.RecordRemote(report(10, fp(10, 0)), types.Timestamp{})
	require.NoError(t, err)
	_, err = l.RecordRemote(report(11, fp(11, 0)), types.Timestamp{})
	require.NoError(t, err)
	_, err = l.RecordRemote(report(12, fp(12, 0)), types.Timestamp{})
	require.ErrorIs(t, err, ErrAhead)

	// A repeated report for a held tick is still idempotent.
	_, err = l.RecordRemote(report(11, fp(11, 0)), types.Timestamp{})
	require.NoError(t, err)

	rec, err := l.RecordLocal(11, fp(11, 0))
	require.NoError(t, err)
	require.True(t, rec.Complete())
	rec, ok := l.Get(10)
	require.True(t, ok)
	require.True(t, rec.HasRemote)
	require.False(t, rec.HasLocal)
	require.Zero(t, l.Ahead())
}

func TestRecordRemote_HeldConflict(t *testing.T) {
	l := New(4)
	_, err := l.RecordRemote(report(3, fp(3, 3)), types.Timestamp{})
	require.NoError(t, err)
	_, err = l.RecordRemote(report(3, fp(3, 4)), types.Timestamp{})
	require.ErrorIs(t, err, ErrRemoteConflict)

	rec, err := l.RecordLocal(3, fp(3, 3))
	require.NoError(t, err)
	require.False(t, rec.Mismatch().Any())
}

func TestNewDefaultsCapacity(t *testing.T) {
	require.Equal(t, DefaultCapacity, New(0).Cap())
}
