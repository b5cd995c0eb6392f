package lockstepstest

import (
	"hash"
	"slices"
	"sync"
	"testing"

	"github.com/blockberries/lockstep/fingerprint"
	"github.com/blockberries/lockstep/types"
)

// RunDigestCompliance runs a standard test suite against a digest
// function to verify it is usable for sync fingerprints.
//
// The factory function should return a fresh hash for each call.
func RunDigestCompliance(t *testing.T, factory func() hash.Hash64) {
	t.Helper()

	t.Run("deterministic", func(t *testing.T) {
		snap := types.Snapshot{Tick: 7, Seed: 0xDEADBEEF, Sprites: MakeSprites(16)}
		fp1, err := fingerprint.NewGeneratorFunc(factory).Generate(snap)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		fp2, err := fingerprint.NewGeneratorFunc(factory).Generate(snap)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if !fp1.Equal(fp2) {
			t.Errorf("non-deterministic: %s != %s", fp1.Hash, fp2.Hash)
		}
	})

	t.Run("seed_passthrough", func(t *testing.T) {
		fp, err := fingerprint.NewGeneratorFunc(factory).Generate(types.Snapshot{Seed: 0x12345678})
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if fp.Seed != 0x12345678 {
			t.Errorf("seed %08X, want 12345678", fp.Seed)
		}
	})

	t.Run("order_independent", func(t *testing.T) {
		gen := fingerprint.NewGeneratorFunc(factory)
		sprites := MakeSprites(8)
		reversed := slices.Clone(sprites)
		slices.Reverse(reversed)

		d1, err := gen.Digest(sprites)
		if err != nil {
			t.Fatalf("Digest failed: %v", err)
		}
		d2, err := gen.Digest(reversed)
		if err != nil {
			t.Fatalf("Digest failed: %v", err)
		}
		if d1 != d2 {
			t.Errorf("sprite order changed digest: %s != %s", d1, d2)
		}
	})

	t.Run("does_not_mutate_input", func(t *testing.T) {
		sprites := MakeSprites(4)
		slices.Reverse(sprites)
		before := slices.Clone(sprites)
		if _, err := fingerprint.NewGeneratorFunc(factory).Digest(sprites); err != nil {
			t.Fatalf("Digest failed: %v", err)
		}
		if !slices.Equal(before, sprites) {
			t.Error("Digest reordered the caller's slice")
		}
	})

	t.Run("single_field_change_detected", func(t *testing.T) {
		gen := fingerprint.NewGeneratorFunc(factory)
		base, err := gen.Digest(MakeSprites(8))
		if err != nil {
			t.Fatalf("Digest failed: %v", err)
		}

		mutations := map[string]func(*types.Sprite){
			"x":         func(s *types.Sprite) { s.X++ },
			"y":         func(s *types.Sprite) { s.Y-- },
			"z":         func(s *types.Sprite) { s.Z++ },
			"direction": func(s *types.Sprite) { s.Direction ^= 1 },
			"state":     func(s *types.Sprite) { s.State++ },
			"energy":    func(s *types.Sprite) { s.Energy-- },
			"happiness": func(s *types.Sprite) { s.Happiness++ },
			"hunger":    func(s *types.Sprite) { s.Hunger++ },
			"thirst":    func(s *types.Sprite) { s.Thirst++ },
			"nausea":    func(s *types.Sprite) { s.Nausea++ },
			"cash":      func(s *types.Sprite) { s.Cash++ },
			"kind":      func(s *types.Sprite) { s.Kind = types.SpriteStaff },
		}
		for name, mutate := range mutations {
			sprites := MakeSprites(8)
			mutate(&sprites[3])
			got, err := gen.Digest(sprites)
			if err != nil {
				t.Fatalf("%s: Digest failed: %v", name, err)
			}
			if got == base {
				t.Errorf("%s: change to one sprite not detected", name)
			}
		}
	})

	t.Run("sprite_added_detected", func(t *testing.T) {
		gen := fingerprint.NewGeneratorFunc(factory)
		d1, err := gen.Digest(MakeSprites(3))
		if err != nil {
			t.Fatalf("Digest failed: %v", err)
		}
		d2, err := gen.Digest(MakeSprites(4))
		if err != nil {
			t.Fatalf("Digest failed: %v", err)
		}
		if d1 == d2 {
			t.Error("extra sprite not detected")
		}
	})

	t.Run("concurrent_generate", func(t *testing.T) {
		gen := fingerprint.NewGeneratorFunc(factory)
		snap := types.Snapshot{Tick: 1, Sprites: MakeSprites(32)}
		want, err := gen.Generate(snap)
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := gen.Generate(snap)
				if err != nil {
					t.Errorf("concurrent Generate failed: %v", err)
					return
				}
				if !got.Equal(want) {
					t.Errorf("concurrent Generate: %s != %s", got.Hash, want.Hash)
				}
			}()
		}
		wg.Wait()
	})
}
