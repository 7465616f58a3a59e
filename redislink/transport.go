// Package redislink carries bridge messages over Redis pub/sub: requests go
// out on one channel, responses and events come back on another.
package redislink

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mrjvadi/go-native-bridge/bridge"
)

// Channels derives a fresh request/reply channel pair under prefix.
func Channels(prefix string) (requests, replies string) {
	id := uuid.NewString()
	return prefix + ":requests:" + id, prefix + ":replies:" + id
}

// Transport publishes requests; answers arrive through a Listener.
type Transport struct {
	rdb     *redis.Client
	channel string
	logger  *zap.Logger
}

var _ bridge.Transport = (*Transport)(nil)

func NewTransport(rdb *redis.Client, channel string, opts ...Option) *Transport {
	o := newOptions(opts)
	return &Transport{rdb: rdb, channel: channel, logger: o.logger}
}

func (t *Transport) Send(ctx context.Context, req *bridge.Request) (bridge.Return, error) {
	b, err := bridge.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	n, err := t.rdb.Publish(ctx, t.channel, b).Result()
	if err != nil {
		return nil, fmt.Errorf("publish request: %w", err)
	}
	if n == 0 {
		t.logger.Debug("request published with no host subscribed",
			zap.String("channel", t.channel), zap.String("method", req.Method))
	}
	return bridge.NoReturn(), nil
}
