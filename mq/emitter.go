package mq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pantree/logger"
)

// Channel is the redis pub/sub channel change events travel on.
const Channel = "pantree-events"

const (
	FoodCreated   = "food.created"
	FoodUpdated   = "food.updated"
	FoodDeleted   = "food.deleted"
	RecipeCreated = "recipe.created"
	RecipeUpdated = "recipe.updated"
	RecipeDeleted = "recipe.deleted"
	RecipeImage   = "recipe.image"
)

// Event describes one successful mutation.
type Event struct {
	Type     string          `json:"type"`
	EntityID string          `json:"entityId"`
	At       time.Time       `json:"at"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// NewEvent stamps an event and encodes its payload. A payload that cannot
// be encoded is dropped and logged.
func NewEvent(eventType, entityID string, data any) Event {
	ev := Event{Type: eventType, EntityID: entityID, At: time.Now().UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			logger.Warn("dropping event payload", zap.String("type", eventType), zap.Error(err))
		} else {
			ev.Data = raw
		}
	}
	return ev
}

// Emitter delivers change events. Emit never fails the caller; delivery
// errors are logged.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

type Nop struct{}

func (Nop) Emit(context.Context, Event) {}

// Publisher is the part of the redis client the emitter uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisEmitter publishes events as JSON on Channel.
type RedisEmitter struct {
	Client Publisher
}

func (e *RedisEmitter) Emit(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error("failed to marshal event", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	// detached so a cancelled request still publishes
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := e.Client.Publish(pubCtx, Channel, data).Err(); err != nil {
		logger.Error("failed to publish event", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	logger.Debug("event published", zap.String("type", ev.Type), zap.String("entityId", ev.EntityID))
}
