package mq

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pantree/logger"
)

// Relay subscribes to Channel and hands every event to sink until ctx ends.
// It lets each server instance push events published by its peers to its
// own websocket clients.
func Relay(ctx context.Context, client *redis.Client, sink Emitter) {
	sub := client.Subscribe(ctx, Channel)
	defer sub.Close()

	logger.Info("relaying change events", zap.String("channel", Channel))
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			ev, err := decode(msg.Payload)
			if err != nil {
				logger.Warn("failed to parse event", zap.Error(err))
				continue
			}
			sink.Emit(ctx, ev)
		}
	}
}

func decode(payload string) (Event, error) {
	var ev Event
	err := json.Unmarshal([]byte(payload), &ev)
	return ev, err
}
