package producers

import (
	"context"
	"fmt"
	"time"

	"github.com/yoshapihoff/bricks/identity/internal/config"
	"github.com/yoshapihoff/bricks/identity/internal/domain"
	"github.com/yoshapihoff/bricks/identity/internal/kafka"
	"google.golang.org/protobuf/types/known/structpb"
)

const eventTypeHeader = "event_type"

// IdentityEventProducer publishes identity events to a Kafka topic, keyed by
// user id so one user's events stay ordered.
type IdentityEventProducer struct {
	srProducer kafka.SRProducer
	topic      string
}

func NewIdentityEventProducer(cfg config.KafkaConfig) (*IdentityEventProducer, error) {
	srProducer, err := kafka.NewProducer(cfg.KafkaUrl, cfg.SchemaRegistryUrl)
	if err != nil {
		return nil, err
	}
	return NewIdentityEventProducerWith(srProducer, cfg.IdentityEventsTopic), nil
}

func NewIdentityEventProducerWith(srProducer kafka.SRProducer, topic string) *IdentityEventProducer {
	return &IdentityEventProducer{
		srProducer: srProducer,
		topic:      topic,
	}
}

func (p *IdentityEventProducer) Publish(ctx context.Context, event domain.IdentityEvent) error {
	msg, err := EventMessage(event)
	if err != nil {
		return err
	}
	_, err = p.srProducer.ProduceMessage(ctx, p.topic, []byte(event.UserID.String()), msg,
		kafka.Header{Key: eventTypeHeader, Value: []byte(event.Type)})
	if err != nil {
		return fmt.Errorf("produce %s event: %w", event.Type, err)
	}
	return nil
}

func (p *IdentityEventProducer) Close() {
	p.srProducer.Close()
}

// EventMessage converts an identity event into its wire message.
func EventMessage(event domain.IdentityEvent) (*structpb.Struct, error) {
	fields := map[string]any{
		"type":        string(event.Type),
		"user_id":     event.UserID.String(),
		"email":       event.Email,
		"occurred_at": event.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
	if event.Provider != "" {
		fields["provider"] = event.Provider.Name()
	}
	if event.ProviderUserID != "" {
		fields["provider_user_id"] = event.ProviderUserID
	}
	return structpb.NewStruct(fields)
}
