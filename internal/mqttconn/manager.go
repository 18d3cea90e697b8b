// Package mqttconn owns the broker session: connect, background keep-alive,
// reconnection and publishing. Everything the rest of the process sees is the
// connection state (through an atomic accessor) and per-call results; paho's
// callbacks never leak out.
package mqttconn

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// State is the session lifecycle position. Owned by the Manager; external
// code only ever reads it.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// PublishResult reports one publish attempt.
type PublishResult struct {
	OK        bool
	MessageID uint16
	Err       error
}

// Config is fixed at construction; the Manager never mutates it.
type Config struct {
	Host      string
	Port      int
	Transport string // tcp, ssl, ws, wss
	WSPath    string
	Username  string
	Password  string
	ClientID  string

	KeepAlive      time.Duration // also the floor for reconnect backoff
	ConnectTimeout time.Duration
	PublishTimeout time.Duration

	ConnectAttempts   int // initial connect budget
	ReconnectAttempts int // budget after a lost connection
}

func (c Config) withDefaults() Config {
	if c.KeepAlive <= 0 {
		c.KeepAlive = 60 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 10 * time.Second
	}
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = 5
	}
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = 10
	}
	return c
}

// BrokerURL renders the endpoint for the configured transport.
func (c Config) BrokerURL() string {
	switch c.Transport {
	case "ws", "wss":
		return fmt.Sprintf("%s://%s:%d%s", c.Transport, c.Host, c.Port, c.WSPath)
	case "ssl", "tls":
		return fmt.Sprintf("ssl://%s:%d", c.Host, c.Port)
	default:
		return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
	}
}

// Manager drives the state machine
//
//	Disconnected -> Connecting -> Connected
//	Connected -> Reconnecting -> Connected | Disconnected (budget exhausted)
//
// Reconnection runs on its own goroutine, sleeping at least the keep-alive
// interval between attempts so a flapping broker is never busy-looped.
type Manager struct {
	cfg    Config
	logger zerolog.Logger

	client    mqtt.Client
	state     atomic.Int32
	closed    atomic.Bool
	discOnce  sync.Once
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

func NewManager(cfg Config, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:       cfg.withDefaults(),
		logger:    logger.With().Str("component", "mqttconn").Logger(),
		newClient: mqtt.NewClient,
	}
}

// State is safe to call from any goroutine.
func (m *Manager) State() State { return State(m.state.Load()) }

func (m *Manager) setState(s State) {
	old := State(m.state.Swap(int32(s)))
	if old != s {
		m.logger.Info().Stringer("from", old).Stringer("to", s).Msg("connection state")
	}
}

// Connect dials the broker, retrying up to the configured budget. It blocks
// until connected, the budget is exhausted, or ctx is cancelled. The returned
// error is one of the classified connection kinds.
func (m *Manager) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(m.cfg.BrokerURL()).
		SetClientID(m.cfg.ClientID).
		SetKeepAlive(m.cfg.KeepAlive).
		SetConnectTimeout(m.cfg.ConnectTimeout).
		SetAutoReconnect(false).
		SetOnConnectHandler(func(mqtt.Client) {
			m.setState(StateConnected)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			m.logger.Warn().Err(err).Msg("connection lost")
			if m.closed.Load() {
				return
			}
			m.setState(StateReconnecting)
			go m.reconnect()
		})
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username).SetPassword(m.cfg.Password)
	}
	switch m.cfg.Transport {
	case "ssl", "tls", "wss":
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	m.client = m.newClient(opts)
	m.setState(StateConnecting)

	var lastErr error
	for attempt := 1; attempt <= m.cfg.ConnectAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			m.setState(StateDisconnected)
			return err
		}
		err := m.connectOnce()
		if err == nil {
			m.setState(StateConnected)
			m.logger.Info().Str("broker", m.cfg.BrokerURL()).Msg("connected")
			return nil
		}
		lastErr = classifyConnectError(err)
		m.logger.Warn().Err(err).
			Int("attempt", attempt).Int("budget", m.cfg.ConnectAttempts).
			Msg("connect failed")
		if attempt < m.cfg.ConnectAttempts {
			if !sleepCtx(ctx, m.cfg.KeepAlive) {
				m.setState(StateDisconnected)
				return ctx.Err()
			}
		}
	}
	m.setState(StateDisconnected)
	return fmt.Errorf("connect to %s after %d attempts: %w",
		m.cfg.BrokerURL(), m.cfg.ConnectAttempts, lastErr)
}

func (m *Manager) connectOnce() error {
	token := m.client.Connect()
	if !token.WaitTimeout(m.cfg.ConnectTimeout) {
		return ErrConnectTimeout
	}
	return token.Error()
}

// reconnect runs after a lost connection, pacing attempts no tighter than
// the keep-alive interval. Exhausting the budget is terminal until the next
// explicit Connect.
func (m *Manager) reconnect() {
	for attempt := 1; attempt <= m.cfg.ReconnectAttempts; attempt++ {
		time.Sleep(m.cfg.KeepAlive)
		if m.closed.Load() {
			return
		}
		if err := m.connectOnce(); err != nil {
			m.logger.Warn().Err(err).
				Int("attempt", attempt).Int("budget", m.cfg.ReconnectAttempts).
				Msg("reconnect failed")
			continue
		}
		m.logger.Info().Msg("reconnected")
		m.setState(StateConnected)
		return
	}
	m.logger.Error().Msg("reconnect budget exhausted")
	m.setState(StateDisconnected)
}

// Publish never blocks while the session is down: it fails fast with
// ErrNotConnected. For QoS >= 1 it blocks until the broker acks, bounded by
// the publish timeout; QoS 0 is fire-and-forget.
func (m *Manager) Publish(topic string, payload []byte, qos byte) PublishResult {
	if m.client == nil || m.State() != StateConnected || !m.client.IsConnectionOpen() {
		return PublishResult{Err: ErrNotConnected}
	}
	token := m.client.Publish(topic, qos, false, payload)
	if qos == 0 {
		return PublishResult{OK: true}
	}
	if !token.WaitTimeout(m.cfg.PublishTimeout) {
		return PublishResult{Err: ErrPublishTimeout}
	}
	if err := token.Error(); err != nil {
		return PublishResult{Err: fmt.Errorf("%w: %v", ErrBrokerRejected, err)}
	}
	res := PublishResult{OK: true}
	if pt, ok := token.(*mqtt.PublishToken); ok {
		res.MessageID = pt.MessageID()
	}
	return res
}

// Subscribe registers handler for topic and waits for the broker's ack.
func (m *Manager) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	if m.client == nil || m.State() != StateConnected {
		return ErrNotConnected
	}
	token := m.client.Subscribe(topic, qos, handler)
	if !token.WaitTimeout(m.cfg.ConnectTimeout) {
		return ErrConnectTimeout
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// Disconnect is idempotent and safe on every exit path, including when the
// session never came up.
func (m *Manager) Disconnect() {
	m.discOnce.Do(func() {
		m.closed.Store(true)
		if m.client != nil && m.client.IsConnected() {
			m.client.Disconnect(250)
		}
		m.setState(StateDisconnected)
		m.logger.Info().Msg("disconnected")
	})
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
