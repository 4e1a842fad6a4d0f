package producers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoshapihoff/bricks/identity/internal/domain"
	"github.com/yoshapihoff/bricks/identity/internal/kafka"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type producedMessage struct {
	topic   string
	key     []byte
	msg     proto.Message
	headers []kafka.Header
}

type fakeSRProducer struct {
	produced []producedMessage
	err      error
	closed   bool
}

func (f *fakeSRProducer) ProduceMessage(ctx context.Context, topic string, key []byte, msg proto.Message, headers ...kafka.Header) (int64, error) {
	if f.err != nil {
		return -1, f.err
	}
	f.produced = append(f.produced, producedMessage{topic: topic, key: key, msg: msg, headers: headers})
	return int64(len(f.produced) - 1), nil
}

func (f *fakeSRProducer) Close() { f.closed = true }

func linkedEvent() domain.IdentityEvent {
	return domain.IdentityEvent{
		Type:           domain.EventIdentityLinked,
		UserID:         uuid.MustParse("7d3c1f0e-8a44-4b8e-9d61-0c7f2a5b9e10"),
		Email:          "octo",
		Provider:       domain.ProviderGitHub,
		ProviderUserID: "42",
		OccurredAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEventMessage(t *testing.T) {
	msg, err := EventMessage(linkedEvent())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"type":             "identity.linked",
		"user_id":          "7d3c1f0e-8a44-4b8e-9d61-0c7f2a5b9e10",
		"email":            "octo",
		"provider":         "github",
		"provider_user_id": "42",
		"occurred_at":      "2024-05-01T12:00:00Z",
	}, msg.AsMap())
}

func TestEventMessageOmitsProviderForUserEvents(t *testing.T) {
	event := linkedEvent()
	event.Type = domain.EventUserUpdated
	event.Provider = ""
	event.ProviderUserID = ""

	msg, err := EventMessage(event)
	require.NoError(t, err)
	assert.NotContains(t, msg.AsMap(), "provider")
	assert.NotContains(t, msg.AsMap(), "provider_user_id")
}

func TestPublish(t *testing.T) {
	fake := &fakeSRProducer{}
	p := NewIdentityEventProducerWith(fake, "identity-events")

	require.NoError(t, p.Publish(context.Background(), linkedEvent()))
	require.Len(t, fake.produced, 1)

	got := fake.produced[0]
	assert.Equal(t, "identity-events", got.topic)
	assert.Equal(t, []byte("7d3c1f0e-8a44-4b8e-9d61-0c7f2a5b9e10"), got.key)
	assert.Equal(t, []kafka.Header{{Key: "event_type", Value: []byte("identity.linked")}}, got.headers)
	require.IsType(t, &structpb.Struct{}, got.msg)
	assert.Equal(t, "octo", got.msg.(*structpb.Struct).Fields["email"].GetStringValue())

	p.Close()
	assert.True(t, fake.closed)
}

func TestPublishWrapsProducerError(t *testing.T) {
	fake := &fakeSRProducer{err: errors.New("broker down")}
	p := NewIdentityEventProducerWith(fake, "identity-events")

	err := p.Publish(context.Background(), linkedEvent())
	assert.ErrorContains(t, err, "produce identity.linked event")
	assert.ErrorContains(t, err, "broker down")
}
