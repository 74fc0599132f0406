package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisChannel = "colonies:events"

// Redis publishes facts as JSON on a pub/sub channel.
type Redis struct {
	Client  redis.UniversalClient
	Channel string
}

func NewRedis(addr, channel string) Redis {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return Redis{Client: redis.NewClient(&redis.Options{Addr: addr}), Channel: channel}
}

func (p Redis) Publish(ctx context.Context, evt TurnCompleted) error {
	data, err := Encode(evt)
	if err != nil {
		return err
	}
	if err := p.Client.Publish(ctx, p.Channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", p.Channel, err)
	}
	return nil
}

// Encode is the wire form shared by every transport.
func Encode(evt TurnCompleted) ([]byte, error) {
	return json.Marshal(envelope{Type: evt.Type(), TurnCompleted: evt})
}

type envelope struct {
	Type string `json:"type"`
	TurnCompleted
}
