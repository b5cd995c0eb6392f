package types_test

import (
	"testing"
	"time"

	"github.com/blockberries/lockstep/types"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// roundTrip marshals v, unmarshals into a new T, and returns it.
func roundTrip[T any](t *testing.T, v T) T {
	t.Helper()
	data, err := cramberry.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var out T
	if err := cramberry.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	return out
}

func TestTimestamp_RoundTrip(t *testing.T) {
	ts := types.TimeToTimestamp(time.Date(2024, 6, 15, 12, 30, 45, 123456789, time.UTC))
	got := roundTrip(t, ts)
	if got != ts {
		t.Fatalf("Timestamp round-trip failed: got %+v, want %+v", got, ts)
	}
	if got.ToTime().Nanosecond() != 123456789 {
		t.Fatalf("Timestamp.ToTime nanos wrong: %d", got.ToTime().Nanosecond())
	}
}

func TestTimestamp_Sub(t *testing.T) {
	sent := types.TimeToTimestamp(time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))
	recv := types.TimeToTimestamp(time.Date(2024, 6, 15, 12, 0, 0, 25_000_000, time.UTC))
	if d := recv.Sub(sent); d != 25*time.Millisecond {
		t.Errorf("Sub = %s, want 25ms", d)
	}
	if d := recv.Sub(types.Timestamp{}); d != 0 {
		t.Errorf("Sub against unset timestamp = %s, want 0", d)
	}
	if !(types.Timestamp{}).IsZero() || sent.IsZero() {
		t.Error("IsZero wrong")
	}
}

func TestFingerprintReport_RoundTrip(t *testing.T) {
	v := types.FingerprintReport{
		Tick:        101,
		Fingerprint: types.Fingerprint{Seed: 0xBBBB, Hash: types.Digest{0xde, 0xad, 0xbe, 0xef}},
		SentAt:      types.TimeToTimestamp(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	got := roundTrip(t, v)
	if got != v {
		t.Fatalf("FingerprintReport round-trip failed: got %+v, want %+v", got, v)
	}
}

func TestSyncStatus_RoundTrip(t *testing.T) {
	v := types.SyncStatus{
		Tick:                102,
		LocalSeed:           0xAAAA,
		RemoteSeed:          0xBBBB,
		Mismatch:            types.MismatchSeed,
		Compared:            true,
		IsDesynchronized:    true,
		LastVerifiedTick:    102,
		FirstDivergenceTick: 101,
		RemoteLag:           types.DurationFromGo(15 * time.Millisecond),
	}
	got := roundTrip(t, v)
	if got != v {
		t.Fatalf("SyncStatus round-trip failed: got %+v, want %+v", got, v)
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	v := types.Snapshot{
		Tick: 7,
		Seed: 42,
		Sprites: []types.Sprite{
			{ID: 1, Kind: types.SpriteGuest, X: -32, Y: 64, Energy: 90, Cash: 500},
			{ID: 2, Kind: types.SpriteStaff, Z: 16, Direction: 3},
		},
	}
	got := roundTrip(t, v)
	if got.Tick != v.Tick || got.Seed != v.Seed || len(got.Sprites) != len(v.Sprites) {
		t.Fatalf("Snapshot round-trip failed: got %+v", got)
	}
	for i := range v.Sprites {
		if got.Sprites[i] != v.Sprites[i] {
			t.Fatalf("Snapshot.Sprites[%d] mismatch: got %+v, want %+v", i, got.Sprites[i], v.Sprites[i])
		}
	}
}

func TestDigest_String(t *testing.T) {
	d := types.Digest{0xde, 0xad, 0xbe, 0xef, 0, 0, 0, 1}
	if d.String() != "deadbeef00000001" {
		t.Fatalf("unexpected hex: %s", d.String())
	}
	parsed, err := types.ParseDigest(d.String())
	if err != nil {
		t.Fatalf("ParseDigest: %v", err)
	}
	if parsed != d {
		t.Fatalf("ParseDigest mismatch: got %v", parsed)
	}
	if _, err := types.ParseDigest("dead"); err == nil {
		t.Fatal("expected length error for short digest")
	}
}

func TestCompareFingerprints(t *testing.T) {
	a := types.Fingerprint{Seed: 0xAAAA, Hash: types.Digest{1}}
	cases := []struct {
		name   string
		remote types.Fingerprint
		want   types.Mismatch
	}{
		{"equal", a, 0},
		{"seed", types.Fingerprint{Seed: 0xBBBB, Hash: types.Digest{1}}, types.MismatchSeed},
		{"hash", types.Fingerprint{Seed: 0xAAAA, Hash: types.Digest{2}}, types.MismatchHash},
		{"both", types.Fingerprint{Seed: 0xBBBB, Hash: types.Digest{2}}, types.MismatchSeed | types.MismatchHash},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := types.CompareFingerprints(a, tc.remote)
			if got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
	if (types.MismatchSeed | types.MismatchHash).String() != "seed|hash" {
		t.Fatal("unexpected mismatch string")
	}
}

func TestSyncRecord_Complete(t *testing.T) {
	rec := types.SyncRecord{Tick: 1, HasLocal: true, Local: types.Fingerprint{Seed: 1}}
	if rec.Complete() {
		t.Fatal("record without remote must be incomplete")
	}
	if rec.Mismatch().Any() {
		t.Fatal("incomplete record must not report a mismatch")
	}
	rec.HasRemote = true
	rec.Remote = types.Fingerprint{Seed: 2}
	if !rec.Complete() || !rec.Mismatch().Has(types.MismatchSeed) {
		t.Fatalf("expected complete record with seed mismatch, got %+v", rec)
	}
}
