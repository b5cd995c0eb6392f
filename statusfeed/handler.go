package statusfeed

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/blockberries/lockstep"
	"github.com/blockberries/lockstep/types"
)

const (
	// DefaultInterval is how often the feed samples the reporter.
	DefaultInterval = 250 * time.Millisecond

	writeTimeout = 5 * time.Second
)

type HandlerConfig struct {
	// Interval between status samples. Unchanged statuses are not
	// re-sent.
	Interval time.Duration
	Logger   zerolog.Logger
}

// Handler pushes status snapshots to websocket clients. Plain HTTP
// requests get a single JSON document instead.
type Handler struct {
	reporter lockstep.StatusReporter
	interval time.Duration
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a feed reading from reporter.
func NewHandler(reporter lockstep.StatusReporter, cfg HandlerConfig) *Handler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Handler{
		reporter: reporter,
		interval: interval,
		log:      cfg.Logger.With().Str("component", "statusfeed").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(NewView(h.reporter.Status())); err != nil {
			h.log.Warn().Err(err).Msg("write status failed")
		}
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("upgrade failed")
		return
	}
	defer conn.Close()
	h.log.Debug().Str("remote", r.RemoteAddr).Msg("display connected")

	// Displays never send anything meaningful; reading only surfaces
	// the close frame.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last types.SyncStatus
	first := true
	for {
		st := h.reporter.Status()
		if first || st != last {
			if err := h.write(conn, st); err != nil {
				h.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("display write failed")
				return
			}
			last, first = st, false
		}
		select {
		case <-closed:
			h.log.Debug().Str("remote", r.RemoteAddr).Msg("display disconnected")
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Handler) write(conn *websocket.Conn, st types.SyncStatus) error {
	data, err := json.Marshal(NewView(st))
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
