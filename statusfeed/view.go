// Package statusfeed serves a session's sync status to debug displays
// over a websocket, as JSON with hex-rendered seeds and hashes.
package statusfeed

import (
	"fmt"

	"github.com/blockberries/lockstep/types"
)

// View is the JSON shape pushed to displays. Seeds render as eight
// uppercase hex digits, hashes as sixteen lowercase ones.
type View struct {
	Type                string  `json:"type"`
	Tick                uint64  `json:"tick"`
	State               string  `json:"state"`
	LocalSeed           string  `json:"localSeed"`
	RemoteSeed          string  `json:"remoteSeed"`
	LocalHash           string  `json:"localHash"`
	RemoteHash          string  `json:"remoteHash"`
	SeedMismatch        bool    `json:"seedMismatch"`
	HashMismatch        bool    `json:"hashMismatch"`
	Compared            bool    `json:"compared"`
	Pending             bool    `json:"pending"`
	LastVerifiedTick    uint64  `json:"lastVerifiedTick"`
	FirstDivergenceTick uint64  `json:"firstDivergenceTick,omitempty"`
	DeterminismFault    bool    `json:"determinismFault,omitempty"`
	RemoteLagMillis     float64 `json:"remoteLagMs"`
}

const (
	stateSynchronized   = "synchronized"
	stateDesynchronized = "desynchronized"
)

// NewView renders a status snapshot.
func NewView(st types.SyncStatus) View {
	v := View{
		Type:                "syncStatus",
		Tick:                uint64(st.Tick),
		State:               stateSynchronized,
		LocalSeed:           fmt.Sprintf("%08X", st.LocalSeed),
		RemoteSeed:          fmt.Sprintf("%08X", st.RemoteSeed),
		LocalHash:           st.LocalHash.String(),
		RemoteHash:          st.RemoteHash.String(),
		SeedMismatch:        st.SeedMismatch(),
		HashMismatch:        st.HashMismatch(),
		Compared:            st.Compared,
		Pending:             st.Pending,
		LastVerifiedTick:    uint64(st.LastVerifiedTick),
		FirstDivergenceTick: uint64(st.FirstDivergenceTick),
		DeterminismFault:    st.DeterminismFault,
		RemoteLagMillis:     float64(st.RemoteLag.ToGo().Microseconds()) / 1000,
	}
	if st.IsDesynchronized {
		v.State = stateDesynchronized
	}
	return v
}
