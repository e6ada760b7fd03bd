package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"studiodesk/internal/logging"
)

// RedisRelay shares changes between API instances over Redis pub/sub.
type RedisRelay struct {
	rdb     redis.UniversalClient
	channel string
}

func NewRedisRelay(rdb redis.UniversalClient, channel string) *RedisRelay {
	return &RedisRelay{rdb: rdb, channel: channel}
}

func (r *RedisRelay) Send(ctx context.Context, ch Change) error {
	body, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, body).Err()
}

// Run delivers relayed changes to the hub until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context, hub *Hub) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var ch Change
			if err := json.Unmarshal([]byte(msg.Payload), &ch); err != nil {
				logging.LogError(logging.GetLogger(), "realtime", "RedisRelay.Run", "bad payload", msg.Channel, err)
				continue
			}
			hub.Deliver(ch)
		}
	}
}
