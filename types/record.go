package types

// SyncRecord pairs the locally computed fingerprint for a tick with
// the fingerprint reported by the remote peer. Either side may be
// recorded first; the record is complete once both are present.
type SyncRecord struct {
	Tick      Tick        `cramberry:"1"`
	Local     Fingerprint `cramberry:"2"`
	HasLocal  bool        `cramberry:"3"`
	Remote    Fingerprint `cramberry:"4"`
	HasRemote bool        `cramberry:"5"`
	// Set when HasRemote is true.
	SentAt     Timestamp `cramberry:"6"`
	ReceivedAt Timestamp `cramberry:"7"`
}

// Complete reports whether both fingerprints are present.
func (r SyncRecord) Complete() bool {
	return r.HasLocal && r.HasRemote
}

// Mismatch compares the two sides. Incomplete records never mismatch.
func (r SyncRecord) Mismatch() Mismatch {
	if !r.Complete() {
		return 0
	}
	return CompareFingerprints(r.Local, r.Remote)
}

// FingerprintReport is the logical network message carrying one
// peer's fingerprint for one tick.
type FingerprintReport struct {
	Tick        Tick        `cramberry:"1"`
	Fingerprint Fingerprint `cramberry:"2"`
	SentAt      Timestamp   `cramberry:"3"`
}

// SyncStatus is a derived, read-only view of a session's
// synchronization state. It is recomputed after every tick and
// copied out to observers; it is never persisted.
type SyncStatus struct {
	// Newest locally simulated tick.
	Tick Tick `cramberry:"1"`

	// The pair compared at LastVerifiedTick.
	LocalSeed  uint32 `cramberry:"2"`
	RemoteSeed uint32 `cramberry:"3"`
	LocalHash  Digest `cramberry:"4"`
	RemoteHash Digest `cramberry:"5"`
	// Which components of that pair disagreed.
	Mismatch Mismatch `cramberry:"6"`
	// False until the first complete record has been compared.
	Compared bool `cramberry:"7"`

	IsDesynchronized    bool `cramberry:"8"`
	LastVerifiedTick    Tick `cramberry:"9"`
	FirstDivergenceTick Tick `cramberry:"10"`

	// Set once a tick was recorded twice with different local values.
	DeterminismFault bool `cramberry:"11"`
	// True while the newest local tick awaits its remote fingerprint.
	Pending bool `cramberry:"12"`
	// Transit time of the remote fingerprint at LastVerifiedTick.
	RemoteLag Duration `cramberry:"13"`
}

// SeedMismatch reports whether the PRNG states disagreed.
func (s SyncStatus) SeedMismatch() bool { return s.Mismatch.Has(MismatchSeed) }

// HashMismatch reports whether the entity digests disagreed.
func (s SyncStatus) HashMismatch() bool { return s.Mismatch.Has(MismatchHash) }
