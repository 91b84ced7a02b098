package db

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/trckr/apiserver/config"
)

// State is the lifecycle stage of the Manager's connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ErrClosed is returned by Acquire after Close.
var ErrClosed = errors.New("db: manager closed")

// Observer receives connection and timeout events, typically for metrics.
type Observer interface {
	ObserveConnect(err error)
	ObserveTimeout(operation string)
}

type nopObserver struct{}

func (nopObserver) ObserveConnect(error)  {}
func (nopObserver) ObserveTimeout(string) {}

// Manager owns the single shared database connection. Concurrent callers
// that find no usable connection share one in-flight dial.
type Manager struct {
	dial     Dialer
	timeouts config.TimeoutConfig
	logger   *zap.Logger
	observer Observer

	group singleflight.Group

	mu     sync.Mutex
	conn   Conn
	state  State
	closed bool
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(m *Manager) {
		if observer != nil {
			m.observer = observer
		}
	}
}

func NewManager(dial Dialer, timeouts config.TimeoutConfig, opts ...Option) *Manager {
	m := &Manager{
		dial:     dial,
		timeouts: timeouts,
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Timeouts returns the configured I/O budgets.
func (m *Manager) Timeouts() config.TimeoutConfig {
	return m.timeouts
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Acquire returns a live connection. A cached connection is probed first and
// replaced if the probe fails.
func (m *Manager) Acquire(ctx context.Context) (Conn, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	conn := m.conn
	m.mu.Unlock()

	if conn != nil {
		err := m.probe(ctx, conn)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.discard(conn, err)
	}

	ch := m.group.DoChan("connect", func() (any, error) {
		return m.connect()
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Conn), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ping acquires a connection, which probes or dials as needed.
func (m *Manager) Ping(ctx context.Context) error {
	_, err := m.Acquire(ctx)
	return err
}

// Close releases the connection. Later Acquire calls fail with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.state = StateDisconnected
	m.closed = true
	m.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (m *Manager) probe(ctx context.Context, conn Conn) error {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeouts.Probe)
	defer cancel()
	return conn.PingContext(probeCtx)
}

// discard drops conn if it is still the cached connection.
func (m *Manager) discard(conn Conn, cause error) {
	m.mu.Lock()
	if m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	m.logger.Warn("database probe failed, reconnecting", zap.Error(cause))
	_ = conn.Close()
}

func (m *Manager) connect() (Conn, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if m.conn != nil {
		conn := m.conn
		m.mu.Unlock()
		return conn, nil
	}
	m.state = StateConnecting
	m.mu.Unlock()

	budget := m.timeouts.Connect
	m.logger.Debug("connecting to database", zap.Duration("timeout", budget))

	conn, err := m.dialWithin(budget)
	m.observer.ObserveConnect(err)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = StateDisconnected
		if IsTimeout(err) {
			m.observer.ObserveTimeout("connect")
		}
		m.logger.Error("database connection failed", zap.Error(err))
		return nil, err
	}
	if m.closed {
		m.state = StateDisconnected
		_ = conn.Close()
		return nil, ErrClosed
	}
	m.conn = conn
	m.state = StateConnected
	m.logger.Info("database connected")
	return conn, nil
}

// dialWithin runs the dialer detached from any single caller so that one
// caller giving up does not fail the others sharing the dial. A connection
// that arrives after the budget is closed.
func (m *Manager) dialWithin(budget time.Duration) (Conn, error) {
	type result struct {
		conn Conn
		err  error
	}

	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		conn, err := m.dial(ctx)
		done <- result{conn: conn, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &TimeoutError{Operation: "connect", Timeout: budget}
		}
		return r.conn, r.err
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, &TimeoutError{Operation: "connect", Timeout: budget}
	}
}

func (m *Manager) reportTimeout(operation string, budget time.Duration) {
	m.observer.ObserveTimeout(operation)
	m.logger.Warn("database operation timed out",
		zap.String("operation", operation),
		zap.Duration("timeout", budget),
	)
}
