// Package sim is a small deterministic park simulation: guests wander
// a grid, get tired, hungry and thirsty, and spend money. It exists to
// drive the synchronization checker end to end and has no gameplay
// ambitions.
package sim

import (
	"context"
	"slices"

	"github.com/blockberries/lockstep"
	"github.com/blockberries/lockstep/types"
)

// Compile-time interface check.
var _ lockstep.StateSource = (*Park)(nil)

const (
	parkWidth  = 64 * 32
	parkHeight = 64 * 32
	stepSize   = 4

	guestStateWalking = 1
	guestStateEating  = 2
	guestStateResting = 3
)

// Park holds the simulated state. It is not safe for concurrent use;
// it belongs to the simulation goroutine.
type Park struct {
	tick    types.Tick
	rng     *Rand
	sprites []types.Sprite
}

// NewPark creates a park with the given number of guests. Two parks
// created with the same arguments evolve identically.
func NewPark(seed uint32, guests int) *Park {
	p := &Park{rng: NewRand(seed)}
	p.sprites = make([]types.Sprite, 0, guests)
	for i := 0; i < guests; i++ {
		p.sprites = append(p.sprites, types.Sprite{
			ID:        uint32(i + 1),
			Kind:      types.SpriteGuest,
			X:         int32(p.rng.Intn(parkWidth)),
			Y:         int32(p.rng.Intn(parkHeight)),
			Direction: uint8(p.rng.Intn(4)),
			State:     guestStateWalking,
			Energy:    uint8(64 + p.rng.Intn(64)),
			Happiness: 128,
			Hunger:    uint8(p.rng.Intn(64)),
			Thirst:    uint8(p.rng.Intn(64)),
			Cash:      int32(200 + p.rng.Intn(800)),
		})
	}
	return p
}

// Tick returns the last simulated tick.
func (p *Park) Tick() types.Tick { return p.tick }

// Seed returns the PRNG state.
func (p *Park) Seed() uint32 { return p.rng.State() }

// Advance simulates one tick.
func (p *Park) Advance() {
	p.tick++
	for i := range p.sprites {
		p.updateGuest(&p.sprites[i])
	}
}

// Snapshot implements lockstep.StateSource.
func (p *Park) Snapshot(context.Context) (types.Snapshot, error) {
	return types.Snapshot{
		Tick:    p.tick,
		Seed:    p.rng.State(),
		Sprites: slices.Clone(p.sprites),
	}, nil
}

// Perturb mutates one sprite outside the deterministic update, which
// is how a desync looks from the outside.
func (p *Park) Perturb(id uint32, fn func(*types.Sprite)) bool {
	for i := range p.sprites {
		if p.sprites[i].ID == id {
			fn(&p.sprites[i])
			return true
		}
	}
	return false
}

// PerturbRand draws n extra values from the PRNG.
func (p *Park) PerturbRand(n int) {
	for i := 0; i < n; i++ {
		p.rng.Next()
	}
}

func (p *Park) updateGuest(g *types.Sprite) {
	switch g.State {
	case guestStateResting:
		g.Energy = addClamp(g.Energy, 3)
		if g.Energy > 200 {
			g.State = guestStateWalking
		}
		return
	case guestStateEating:
		g.Hunger = subClamp(g.Hunger, 20)
		g.Thirst = subClamp(g.Thirst, 10)
		g.Happiness = addClamp(g.Happiness, 2)
		if g.Hunger == 0 {
			g.State = guestStateWalking
		}
		return
	}

	if p.rng.Intn(16) == 0 {
		g.Direction = uint8(p.rng.Intn(4))
	}
	switch g.Direction {
	case 0:
		g.X = wrap(g.X-stepSize, parkWidth)
	case 1:
		g.Y = wrap(g.Y+stepSize, parkHeight)
	case 2:
		g.X = wrap(g.X+stepSize, parkWidth)
	case 3:
		g.Y = wrap(g.Y-stepSize, parkHeight)
	}

	g.Energy = subClamp(g.Energy, 1)
	g.Hunger = addClamp(g.Hunger, 1)
	g.Thirst = addClamp(g.Thirst, 1)
	if g.Nausea > 0 {
		g.Nausea--
	}

	switch {
	case g.Energy < 16:
		g.State = guestStateResting
	case g.Hunger > 160 && g.Cash >= 15:
		g.Cash -= 15
		g.State = guestStateEating
	case g.Hunger > 220 || g.Thirst > 220:
		g.Happiness = subClamp(g.Happiness, 1)
	}
}

func addClamp(v uint8, d uint8) uint8 {
	if v > 255-d {
		return 255
	}
	return v + d
}

func subClamp(v uint8, d uint8) uint8 {
	if v < d {
		return 0
	}
	return v - d
}

func wrap(v, limit int32) int32 {
	if v < 0 {
		return v + limit
	}
	if v >= limit {
		return v - limit
	}
	return v
}
