package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/blockberries/lockstep"
	"github.com/blockberries/lockstep/config"
	"github.com/blockberries/lockstep/fingerprint"
	lockstepgrpc "github.com/blockberries/lockstep/grpc"
	"github.com/blockberries/lockstep/metrics"
	"github.com/blockberries/lockstep/session"
	"github.com/blockberries/lockstep/sim"
	"github.com/blockberries/lockstep/statusfeed"
	"github.com/blockberries/lockstep/types"
)

const shutdownTimeout = 5 * time.Second

// errTicksDone stops the group once the configured tick budget is spent.
var errTicksDone = errors.New("tick limit reached")

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	var lis net.Listener
	if role, _ := cfg.Role(); role == lockstep.RoleServer {
		var err error
		lis, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
		}
	}
	_, err := serve(ctx, cfg, log, lis)
	return err
}

// serve runs one node until ctx is done or the tick budget is spent and
// returns the session's final status. lis is used in server mode.
func serve(ctx context.Context, cfg config.Config, log zerolog.Logger, lis net.Listener) (types.SyncStatus, error) {
	role, err := cfg.Role()
	if err != nil {
		return types.SyncStatus{}, err
	}
	algo, err := cfg.Algorithm()
	if err != nil {
		return types.SyncStatus{}, err
	}

	park := sim.NewPark(cfg.Seed, cfg.Guests)
	m := metrics.NewSession()
	opts := []session.Option{
		session.WithRole(role),
		session.WithCapacity(cfg.LedgerCapacity),
		session.WithInboxSize(cfg.InboxSize),
		session.WithGenerator(fingerprint.NewGenerator(algo)),
		session.WithLogger(log),
		session.WithMetrics(m),
		session.WithDesyncHook(func(st types.SyncStatus) {
			log.Error().
				Uint64("first_divergence_tick", uint64(st.FirstDivergenceTick)).
				Stringer("mismatch", st.Mismatch).
				Msg("client has diverged from the server")
		}),
	}

	g, ctx := errgroup.WithContext(ctx)

	var sess *session.Session
	switch role {
	case lockstep.RoleServer:
		if lis == nil {
			return types.SyncStatus{}, errors.New("server mode requires a listener")
		}
		bc := lockstepgrpc.NewBroadcaster(cfg.LedgerCapacity)
		sess = session.New(park, append(opts, session.WithPublisher(bc))...)

		gs := grpc.NewServer()
		lockstepgrpc.NewGRPCServer(bc,
			lockstepgrpc.WithStatusReporter(sess),
			lockstepgrpc.WithLogger(log),
		).Register(gs)

		log.Info().Str("addr", lis.Addr().String()).Msg("sync service listening")
		g.Go(func() error { return gs.Serve(lis) })
		g.Go(func() error {
			<-ctx.Done()
			gs.Stop()
			return nil
		})

	case lockstep.RoleClient:
		client, err := lockstepgrpc.Dial(ctx, cfg.GRPCAddr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		if err != nil {
			return types.SyncStatus{}, err
		}
		defer client.Close()

		sub, err := client.Subscribe(ctx, 1)
		if err != nil {
			return types.SyncStatus{}, fmt.Errorf("subscribe %s: %w", cfg.GRPCAddr, err)
		}
		sess = session.New(park, opts...)
		log.Info().Str("server", cfg.GRPCAddr).Msg("subscribed to server fingerprints")

		g.Go(func() error {
			err := sess.Run(ctx, sub.C)
			if err == nil {
				// The server went away; keep simulating so the
				// status stays observable.
				if serr := sub.Err(); serr != nil {
					log.Warn().Err(serr).Msg("fingerprint stream ended")
				}
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	defer sess.Close()

	if cfg.StatusAddr != "" {
		feed := statusfeed.NewHandler(sess, statusfeed.HandlerConfig{
			Interval: cfg.StatusInterval,
			Logger:   log,
		})
		serveHTTP(ctx, g, log, "status", cfg.StatusAddr, feed)
	}
	if cfg.MetricsAddr != "" {
		serveHTTP(ctx, g, log, "metrics", cfg.MetricsAddr, promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	}

	g.Go(func() error { return simulate(ctx, cfg, log, park, sess) })

	err = g.Wait()
	sess.Flush()
	if errors.Is(err, errTicksDone) || errors.Is(err, context.Canceled) {
		err = nil
	}
	return sess.Status(), err
}

// simulate advances the park at the configured cadence.
func simulate(ctx context.Context, cfg config.Config, log zerolog.Logger, park *sim.Park, sess *session.Session) error {
	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		park.Advance()
		if err := sess.Step(ctx); err != nil {
			if errors.Is(err, lockstep.ErrSessionClosed) {
				return err
			}
			log.Warn().Err(err).Uint64("tick", uint64(park.Tick())).Msg("step failed")
		}
		if cfg.Ticks > 0 && uint64(park.Tick()) >= cfg.Ticks {
			st := sess.Status()
			log.Info().
				Uint64("tick", uint64(st.Tick)).
				Uint64("last_verified_tick", uint64(st.LastVerifiedTick)).
				Bool("desynchronized", st.IsDesynchronized).
				Msg("tick limit reached")
			return errTicksDone
		}
	}
}

func serveHTTP(ctx context.Context, g *errgroup.Group, log zerolog.Logger, name, addr string, h http.Handler) {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	g.Go(func() error {
		log.Info().Str("addr", addr).Msgf("%s endpoint listening", name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s endpoint: %w", name, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
