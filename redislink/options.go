package redislink

import (
	"go.uber.org/zap"
)

type options struct {
	logger      *zap.Logger
	maxJobs     int
	channelSize int
}

func newOptions(opts []Option) options {
	o := options{
		logger:      zap.NewNop(),
		maxJobs:     10,
		channelSize: 1024,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxJobs caps how many requests a Host handles at once.
func WithMaxJobs(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxJobs = n
		}
	}
}

// WithChannelSize sets the go-redis pub/sub buffer of listeners and hosts.
func WithChannelSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.channelSize = n
		}
	}
}
