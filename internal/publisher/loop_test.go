package publisher

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdakHaddad/capdash/internal/mqttconn"
	"github.com/AdakHaddad/capdash/internal/telemetry"
)

// vclock is a virtual wall clock: sleeps advance it instantly, so publish
// latency is exactly zero and a thousand ticks run in microseconds.
type vclock struct {
	t time.Time
}

func (c *vclock) now() time.Time { return c.t }

func (c *vclock) sleep(ctx context.Context, d time.Duration) bool {
	c.t = c.t.Add(d)
	return ctx.Err() == nil
}

type fakeConn struct {
	clock *vclock

	state       mqttconn.State
	failFirst   int
	publishedAt []time.Time
	disconnects int

	onPublish func(n int)
}

func (c *fakeConn) State() mqttconn.State { return c.state }

func (c *fakeConn) Publish(topic string, payload []byte, qos byte) mqttconn.PublishResult {
	c.publishedAt = append(c.publishedAt, c.clock.now())
	n := len(c.publishedAt)
	if c.onPublish != nil {
		c.onPublish(n)
	}
	if n <= c.failFirst {
		return mqttconn.PublishResult{Err: mqttconn.ErrNotConnected}
	}
	return mqttconn.PublishResult{OK: true}
}

func (c *fakeConn) Disconnect() { c.disconnects++ }

func newTestLoop(cfg Config, conn *fakeConn, clock *vclock) *Loop {
	gen := telemetry.NewGenerator(telemetry.ModeAuto, 1)
	l := New(cfg, gen, telemetry.RichSchema{}, conn, zerolog.Nop())
	l.now = clock.now
	l.sleep = clock.sleep
	return l
}

func TestNoCumulativeDrift(t *testing.T) {
	const interval = 5 * time.Second
	const ticks = 1000

	clock := &vclock{t: time.Unix(1_700_000_000, 0)}
	ctx, cancel := context.WithCancel(context.Background())
	conn := &fakeConn{clock: clock, state: mqttconn.StateConnected}
	conn.onPublish = func(n int) {
		if n >= ticks {
			cancel()
		}
	}

	loop := newTestLoop(Config{Topic: "d02/telemetry", Interval: interval}, conn, clock)
	stats, err := loop.Run(ctx)
	require.NoError(t, err)
	require.EqualValues(t, ticks, stats.Sent)

	anchor := time.Unix(1_700_000_000, 0)
	for i, at := range conn.publishedAt {
		want := anchor.Add(time.Duration(i) * interval)
		assert.Equal(t, want, at, "tick %d drifted", i)
	}
}

func TestContinuesOnPublishFailure(t *testing.T) {
	clock := &vclock{t: time.Unix(0, 0)}
	ctx, cancel := context.WithCancel(context.Background())
	conn := &fakeConn{clock: clock, state: mqttconn.StateConnected, failFirst: 3}
	conn.onPublish = func(n int) {
		if n >= 10 {
			cancel()
		}
	}

	loop := newTestLoop(Config{Topic: "d02/telemetry", Interval: time.Second}, conn, clock)
	stats, err := loop.Run(ctx)

	require.NoError(t, err, "transient failures must not kill the loop")
	assert.EqualValues(t, 7, stats.Sent)
	assert.EqualValues(t, 3, stats.Failed)
	assert.Equal(t, 1, conn.disconnects)
}

func TestInterruptMidSleepDisconnectsOnce(t *testing.T) {
	clock := &vclock{t: time.Unix(0, 0)}
	ctx, cancel := context.WithCancel(context.Background())
	conn := &fakeConn{clock: clock, state: mqttconn.StateConnected}
	conn.onPublish = func(n int) {
		if n == 5 {
			cancel() // lands while the loop is in its post-publish sleep
		}
	}

	loop := newTestLoop(Config{Topic: "d02/telemetry", Interval: time.Second}, conn, clock)
	stats, err := loop.Run(ctx)

	require.NoError(t, err, "interrupt is a graceful shutdown")
	assert.EqualValues(t, 5, stats.Sent)
	assert.Equal(t, 1, conn.disconnects, "Disconnect must run exactly once")
}

func TestUnrecoverableConnectionStopsLoop(t *testing.T) {
	clock := &vclock{t: time.Unix(0, 0)}
	conn := &fakeConn{clock: clock, state: mqttconn.StateDisconnected}

	loop := newTestLoop(Config{Topic: "d02/telemetry", Interval: time.Second}, conn, clock)
	stats, err := loop.Run(context.Background())

	assert.ErrorIs(t, err, ErrConnectionDown)
	assert.EqualValues(t, 0, stats.Sent)
	assert.Empty(t, conn.publishedAt)
	assert.Equal(t, 1, conn.disconnects)
}

func TestKeepsTickingWhileReconnecting(t *testing.T) {
	clock := &vclock{t: time.Unix(0, 0)}
	ctx, cancel := context.WithCancel(context.Background())
	conn := &fakeConn{clock: clock, state: mqttconn.StateReconnecting, failFirst: 1 << 30}
	conn.onPublish = func(n int) {
		if n >= 4 {
			cancel()
		}
	}

	loop := newTestLoop(Config{Topic: "d02/telemetry", Interval: time.Second}, conn, clock)
	stats, err := loop.Run(ctx)

	require.NoError(t, err)
	assert.EqualValues(t, 0, stats.Sent)
	assert.EqualValues(t, 4, stats.Failed)
}
