package bridge

import (
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout applies to Invoke when neither the manager nor the call sets one.
const DefaultTimeout = 10 * time.Second

type Option func(*Manager)

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithTimeout sets the default per-call timeout; 0 disables it.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.timeout = d
		}
	}
}

func WithIDGenerator(g IDGenerator) Option {
	return func(m *Manager) {
		if g != nil {
			m.ids = g
		}
	}
}

// WithRawSyncResults stops InvokeSync from unwrapping Response-shaped return
// values, for hosts whose plain results may look like protocol responses.
func WithRawSyncResults() Option {
	return func(m *Manager) {
		m.rawSync = true
	}
}

type callOptions struct {
	timeout time.Duration
}

type CallOption func(*callOptions)

// Timeout overrides the manager default for one call; 0 waits without a timer.
func Timeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		if d >= 0 {
			o.timeout = d
		}
	}
}
