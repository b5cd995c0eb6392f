package session

import (
	"testing"

	"github.com/blockberries/lockstep/types"
)

func TestInbox_DropsOldestWhenFull(t *testing.T) {
	b := newInbox(3)
	for tick := types.Tick(1); tick <= 3; tick++ {
		if b.push(types.FingerprintReport{Tick: tick}) {
			t.Fatalf("tick %d: unexpected drop", tick)
		}
	}
	if !b.push(types.FingerprintReport{Tick: 4}) {
		t.Fatal("expected drop when full")
	}
	if b.len() != 3 {
		t.Fatalf("len = %d, want 3", b.len())
	}

	got := b.drain()
	want := []types.Tick{2, 3, 4}
	for i, r := range got {
		if r.Tick != want[i] {
			t.Errorf("item %d: tick %d, want %d", i, r.Tick, want[i])
		}
	}
	if b.len() != 0 {
		t.Errorf("len after drain = %d", b.len())
	}
}

func TestInbox_DrainSwapsBuffers(t *testing.T) {
	b := newInbox(4)
	b.push(types.FingerprintReport{Tick: 1})
	first := b.drain()
	if len(first) != 1 || first[0].Tick != 1 {
		t.Fatalf("first drain = %v", first)
	}

	b.push(types.FingerprintReport{Tick: 2})
	b.push(types.FingerprintReport{Tick: 3})
	second := b.drain()
	if len(second) != 2 || second[0].Tick != 2 || second[1].Tick != 3 {
		t.Fatalf("second drain = %v", second)
	}
	if len(b.drain()) != 0 {
		t.Error("third drain should be empty")
	}
}

func TestInbox_Unbounded(t *testing.T) {
	b := newInbox(0)
	for tick := types.Tick(1); tick <= 100; tick++ {
		if b.push(types.FingerprintReport{Tick: tick}) {
			t.Fatal("unbounded inbox dropped a report")
		}
	}
	if b.len() != 100 {
		t.Errorf("len = %d, want 100", b.len())
	}
}

func TestInbox_RingWrapsInOrder(t *testing.T) {
	b := newInbox(4)
	drops := 0
	for tick := types.Tick(1); tick <= 11; tick++ {
		if b.push(types.FingerprintReport{Tick: tick}) {
			drops++
		}
	}
	if drops != 7 {
		t.Fatalf("drops = %d, want 7", drops)
	}
	got := b.drain()
	want := []types.Tick{8, 9, 10, 11}
	if len(got) != len(want) {
		t.Fatalf("drain = %v", got)
	}
	for i, r := range got {
		if r.Tick != want[i] {
			t.Errorf("item %d: tick %d, want %d", i, r.Tick, want[i])
		}
	}

	// The ring restarts cleanly after a drain.
	b.push(types.FingerprintReport{Tick: 12})
	b.push(types.FingerprintReport{Tick: 13})
	got = b.drain()
	if len(got) != 2 || got[0].Tick != 12 || got[1].Tick != 13 {
		t.Fatalf("drain after wrap = %v", got)
	}
}
