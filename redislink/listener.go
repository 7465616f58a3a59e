package redislink

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Sink receives inbound payloads; *bridge.Manager satisfies it.
type Sink interface {
	HandleMessage(raw any)
}

// Listener feeds every message of one channel to a Sink, in delivery order.
type Listener struct {
	rdb     *redis.Client
	channel string
	sink    Sink
	opts    options

	mu  sync.Mutex
	sub *redis.PubSub
	wg  sync.WaitGroup
}

func NewListener(rdb *redis.Client, channel string, sink Sink, opts ...Option) *Listener {
	return &Listener{rdb: rdb, channel: channel, sink: sink, opts: newOptions(opts)}
}

// Start subscribes and returns once Redis confirmed the subscription, so
// calls made afterwards cannot miss their responses.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sub != nil {
		return nil
	}

	sub := l.rdb.Subscribe(ctx, l.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", l.channel, err)
	}
	l.sub = sub

	ch := sub.Channel(redis.WithChannelSize(l.opts.channelSize))
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for msg := range ch {
			l.sink.HandleMessage(msg.Payload)
		}
	}()
	l.opts.logger.Info("listener started", zap.String("channel", l.channel))
	return nil
}

// Run starts the listener and blocks until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	if err := l.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return l.Close()
}

func (l *Listener) Close() error {
	l.mu.Lock()
	sub := l.sub
	l.sub = nil
	l.mu.Unlock()
	if sub == nil {
		return nil
	}
	err := sub.Close()
	l.wg.Wait()
	l.opts.logger.Info("listener stopped", zap.String("channel", l.channel))
	return err
}
