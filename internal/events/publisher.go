package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"
)

// Withdrawal lifecycle event names
const (
	WithdrawalCreated   = "withdrawal.created"
	WithdrawalApproved  = "withdrawal.approved"
	WithdrawalRejected  = "withdrawal.rejected"
	WithdrawalCancelled = "withdrawal.cancelled"
	TDSPolicyUpdated    = "tds.policy_updated"
)

// Channel is the pub/sub channel admin dashboards subscribe to for live
// updates of the review queue
const Channel = "htams:withdrawal_events"

// Publisher broadcasts lifecycle events to interested subscribers
type Publisher interface {
	Publish(event string, payload interface{})
}

// RedisPublisher publishes events on a Redis pub/sub channel
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a publisher on an existing Redis client
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish sends an event. Delivery is best-effort: the ledger write has
// already committed, so a publish failure is logged and dropped rather than
// surfaced to the caller.
func (p *RedisPublisher) Publish(event string, payload interface{}) {
	body, err := json.Marshal(map[string]interface{}{
		"event":   event,
		"payload": payload,
	})
	if err != nil {
		log.Printf("Error marshaling event %s: %v", event, err)
		return
	}

	if err := p.client.Publish(context.Background(), Channel, body).Err(); err != nil {
		log.Printf("Error publishing event %s: %v", event, err)
	}
}

// Subscribe returns a Redis subscription on the withdrawal events channel
func (p *RedisPublisher) Subscribe(ctx context.Context) *redis.PubSub {
	return p.client.Subscribe(ctx, Channel)
}

// NoopPublisher discards all events. Used in tests and when Redis is not
// configured.
type NoopPublisher struct{}

// Publish discards the event
func (NoopPublisher) Publish(event string, payload interface{}) {}
