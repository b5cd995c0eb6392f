package types

// SpriteKind distinguishes the families of simulated movable entities.
type SpriteKind uint8

const (
	SpriteGuest   SpriteKind = 1
	SpriteStaff   SpriteKind = 2
	SpriteVehicle SpriteKind = 3
	SpriteLitter  SpriteKind = 4
)

// Sprite is one simulated movable entity. Only fields that the
// simulation mutates deterministically belong here; presentation
// state (names, colours, window flags) does not.
type Sprite struct {
	ID        uint32     `cramberry:"1"`
	Kind      SpriteKind `cramberry:"2"`
	X         int32      `cramberry:"3"`
	Y         int32      `cramberry:"4"`
	Z         int32      `cramberry:"5"`
	Direction uint8      `cramberry:"6"`
	State     uint8      `cramberry:"7"`
	Energy    uint8      `cramberry:"8"`
	Happiness uint8      `cramberry:"9"`
	Hunger    uint8      `cramberry:"10"`
	Thirst    uint8      `cramberry:"11"`
	Nausea    uint8      `cramberry:"12"`
	Cash      int32      `cramberry:"13"`
}

// Snapshot is the authoritative simulation state at the end of a tick,
// handed to the fingerprint generator by the simulation engine.
type Snapshot struct {
	Tick    Tick     `cramberry:"1"`
	Seed    uint32   `cramberry:"2"`
	Sprites []Sprite `cramberry:"3"`
}
