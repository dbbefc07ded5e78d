package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type envelope struct {
	UserID  int             `json:"user_id"`
	Payload json.RawMessage `json:"payload"`
}

// RedisBroadcaster publishes notifications on a Redis channel. Every API instance
// subscribes with Run and hands matching messages to its local hub.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  *logrus.Logger
}

func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func NewRedisBroadcaster(client *redis.Client, channel string, hub *Hub, logger *logrus.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, channel: channel, hub: hub, logger: logger}
}

func (b *RedisBroadcaster) PushToUser(ctx context.Context, userID int, payload []byte) error {
	data, err := json.Marshal(envelope{UserID: userID, Payload: payload})
	if err != nil {
		return fmt.Errorf("encoding notification envelope: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publishing to redis channel %s: %w", b.channel, err)
	}
	return nil
}

// Run blocks until ctx is cancelled.
func (b *RedisBroadcaster) Run(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()
	b.logger.WithField("channel", b.channel).Info("Subscribed to notification channel")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.dispatch(ctx, msg.Payload)
		}
	}
}

func (b *RedisBroadcaster) dispatch(ctx context.Context, raw string) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		b.logger.WithError(err).Warn("Dropping malformed notification envelope")
		return
	}
	if err := b.hub.PushToUser(ctx, env.UserID, env.Payload); err != nil {
		b.logger.WithError(err).WithField("user_id", env.UserID).Warn("Could not hand notification to hub")
	}
}
