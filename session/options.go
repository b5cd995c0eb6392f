package session

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/blockberries/lockstep"
	"github.com/blockberries/lockstep/fingerprint"
	"github.com/blockberries/lockstep/ledger"
	"github.com/blockberries/lockstep/metrics"
	"github.com/blockberries/lockstep/types"
)

type settings struct {
	role      lockstep.Role
	capacity  int
	inboxSize int
	generator *fingerprint.Generator
	publisher lockstep.Publisher
	logger    zerolog.Logger
	metrics   *metrics.Session
	onDesync  func(types.SyncStatus)
	now       func() time.Time
}

func defaultSettings() settings {
	return settings{
		role:      lockstep.RoleClient,
		capacity:  ledger.DefaultCapacity,
		generator: fingerprint.NewGenerator(fingerprint.AlgorithmRolling),
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
}

// Option configures a Session.
type Option func(*settings)

// WithRole sets the session role. Defaults to lockstep.RoleClient.
func WithRole(role lockstep.Role) Option {
	return func(s *settings) { s.role = role }
}

// WithCapacity sets how many ticks the ledger retains.
func WithCapacity(ticks int) Option {
	return func(s *settings) {
		if ticks > 0 {
			s.capacity = ticks
		}
	}
}

// WithInboxSize bounds the queue of remote reports awaiting the next
// tick. Defaults to the ledger capacity.
func WithInboxSize(n int) Option {
	return func(s *settings) { s.inboxSize = n }
}

// WithGenerator replaces the default rolling-hash generator.
func WithGenerator(g *fingerprint.Generator) Option {
	return func(s *settings) {
		if g != nil {
			s.generator = g
		}
	}
}

// WithPublisher sends every local fingerprint to the given publisher.
func WithPublisher(p lockstep.Publisher) Option {
	return func(s *settings) { s.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithMetrics attaches Prometheus instruments.
func WithMetrics(m *metrics.Session) Option {
	return func(s *settings) { s.metrics = m }
}

// WithDesyncHook registers a function called once when the session
// diverges.
func WithDesyncHook(fn func(types.SyncStatus)) Option {
	return func(s *settings) { s.onDesync = fn }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}
