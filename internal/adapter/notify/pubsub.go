package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisPublisher publishes event envelopes on a per-owner channel so that
// live sessions (dashboards, long-polling clients) can follow their wallets.
type RedisPublisher struct {
	client *goredis.Client
	log    zerolog.Logger
}

func NewRedisPublisher(client *goredis.Client, log zerolog.Logger) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		log:    log.With().Str("component", "event_publisher").Logger(),
	}
}

// Channel returns the pub/sub channel name for an owner.
func Channel(ownerID uuid.UUID) string {
	return "events:" + ownerID.String()
}

func (p *RedisPublisher) Notify(ctx context.Context, ownerID uuid.UUID, event string, payload interface{}) error {
	envelope := EventEnvelope{
		Event:     event,
		OwnerID:   ownerID.String(),
		Data:      payload,
		Timestamp: time.Now().Unix(),
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, Channel(ownerID), body).Err(); err != nil {
		p.log.Warn().Err(err).Str("event", event).Msg("event publish failed")
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
