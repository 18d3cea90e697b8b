// Package publisher runs the tick-driven telemetry loop: generate, encode,
// publish, sleep. Wake times are computed from a fixed anchor so encode and
// publish latency never accumulates into timing drift.
package publisher

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/AdakHaddad/capdash/internal/mqttconn"
	"github.com/AdakHaddad/capdash/internal/telemetry"
)

// ErrConnectionDown is returned when the connection manager gives up on the
// session (reconnect budget exhausted) and the loop can no longer make
// progress.
var ErrConnectionDown = errors.New("publisher: connection unrecoverable")

// Generator produces one snapshot per tick.
type Generator interface {
	Generate(tick uint64) telemetry.Snapshot
}

// Connection is the slice of the connection manager the loop needs. State is
// read-only here; only the manager's own handlers transition it.
type Connection interface {
	State() mqttconn.State
	Publish(topic string, payload []byte, qos byte) mqttconn.PublishResult
	Disconnect()
}

// Stats are the running delivery counters, reported on shutdown.
type Stats struct {
	Sent   uint64
	Failed uint64
}

// Config fixes the loop's schedule and destination.
type Config struct {
	Topic    string
	QoS      byte
	Interval time.Duration
}

type Loop struct {
	cfg    Config
	gen    Generator
	schema telemetry.Schema
	conn   Connection
	logger zerolog.Logger

	// clock seams for tests
	now   func() time.Time
	sleep func(context.Context, time.Duration) bool
}

func New(cfg Config, gen Generator, schema telemetry.Schema, conn Connection, logger zerolog.Logger) *Loop {
	return &Loop{
		cfg:    cfg,
		gen:    gen,
		schema: schema,
		conn:   conn,
		logger: logger.With().Str("component", "publisher").Logger(),
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Run ticks until ctx is cancelled (graceful, nil error) or the connection
// becomes unrecoverable (ErrConnectionDown). Publish failures are counted
// and logged, never fatal. The connection is disconnected exactly once on
// every return path.
func (l *Loop) Run(ctx context.Context) (Stats, error) {
	defer l.conn.Disconnect()

	var stats Stats
	anchor := l.now()
	l.logger.Info().
		Str("topic", l.cfg.Topic).
		Uint8("qos", l.cfg.QoS).
		Dur("interval", l.cfg.Interval).
		Str("schema", l.schema.Name()).
		Msg("publish loop started")

	for tick := uint64(0); ; tick++ {
		if ctx.Err() != nil {
			return stats, nil
		}
		if l.conn.State() == mqttconn.StateDisconnected {
			return stats, ErrConnectionDown
		}

		snap := l.gen.Generate(tick)
		payload, err := l.schema.Encode(snap)
		if err != nil {
			stats.Failed++
			l.logger.Error().Err(err).Uint64("tick", tick).Msg("encode failed")
		} else if res := l.conn.Publish(l.cfg.Topic, payload, l.cfg.QoS); res.OK {
			stats.Sent++
			l.logger.Debug().
				Uint64("tick", tick).
				Uint16("mid", res.MessageID).
				RawJSON("payload", payload).
				Msg("published")
		} else {
			stats.Failed++
			l.logger.Warn().Err(res.Err).Uint64("tick", tick).Msg("publish failed")
		}

		// Next wake is anchored to the start time, not to "now".
		next := anchor.Add(time.Duration(tick+1) * l.cfg.Interval)
		if d := next.Sub(l.now()); d > 0 {
			if !l.sleep(ctx, d) {
				return stats, nil
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
