package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dalemusser/classhub/internal/domain/models"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel notifications are published on.
const DefaultChannel = "notifications"

// RedisPublisher publishes notifications as JSON on a Redis channel.
type RedisPublisher struct {
	rdb     *goredis.Client
	channel string
}

// pushMessage is the published payload. Receivers are included so
// subscribers can route to connected users.
type pushMessage struct {
	models.Notification
	Receivers []string `json:"receivers"`
}

// NewRedisPublisher connects and pings addr.
func NewRedisPublisher(ctx context.Context, addr, password string, db int, channel string) (*RedisPublisher, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if channel == "" {
		channel = DefaultChannel
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisPublisher{rdb: rdb, channel: channel}, nil
}

// Encode renders the published payload for n.
func Encode(n models.Notification) ([]byte, error) {
	msg := pushMessage{Notification: n, Receivers: make([]string, 0, len(n.Receivers))}
	for _, id := range n.Receivers {
		msg.Receivers = append(msg.Receivers, id.Hex())
	}
	return json.Marshal(msg)
}

// Publish sends n on the channel.
func (p *RedisPublisher) Publish(ctx context.Context, n models.Notification) error {
	raw, err := Encode(n)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, raw).Err()
}

// Ping checks the connection; the health endpoint uses it.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

// Close releases the client.
func (p *RedisPublisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}
