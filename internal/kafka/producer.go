package kafka

import (
	"context"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/confluentinc/confluent-kafka-go/schemaregistry"
	"github.com/confluentinc/confluent-kafka-go/schemaregistry/serde"
	"github.com/confluentinc/confluent-kafka-go/schemaregistry/serde/protobuf"
	"google.golang.org/protobuf/proto"
)

const (
	nullOffset = -1
)

// Header is a Kafka record header.
type Header struct {
	Key   string
	Value []byte
}

type SRProducer interface {
	ProduceMessage(ctx context.Context, topic string, key []byte, msg proto.Message, headers ...Header) (int64, error)
	Close()
}

type srProducer struct {
	producer   *kafka.Producer
	serializer serde.Serializer
}

func NewProducer(kafkaURL, srURL string) (SRProducer, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  kafkaURL,
		"enable.idempotence": true,
	})
	if err != nil {
		return nil, err
	}
	c, err := schemaregistry.NewClient(schemaregistry.NewConfig(srURL))
	if err != nil {
		p.Close()
		return nil, err
	}
	s, err := protobuf.NewSerializer(c, serde.ValueSerde, protobuf.NewSerializerConfig())
	if err != nil {
		p.Close()
		return nil, err
	}
	return &srProducer{
		producer:   p,
		serializer: s,
	}, nil
}

// ProduceMessage serializes msg through the schema registry and waits for the
// delivery report or ctx, whichever comes first.
func (p *srProducer) ProduceMessage(ctx context.Context, topic string, key []byte, msg proto.Message, headers ...Header) (int64, error) {
	payload, err := p.serializer.Serialize(topic, msg)
	if err != nil {
		return nullOffset, err
	}

	kafkaHeaders := make([]kafka.Header, 0, len(headers))
	for _, h := range headers {
		kafkaHeaders = append(kafkaHeaders, kafka.Header{Key: h.Key, Value: h.Value})
	}

	// Buffered so a late delivery report never blocks the producer's event loop.
	kafkaChan := make(chan kafka.Event, 1)
	if err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            key,
		Value:          payload,
		Headers:        kafkaHeaders,
	}, kafkaChan); err != nil {
		return nullOffset, err
	}

	select {
	case <-ctx.Done():
		return nullOffset, ctx.Err()
	case e := <-kafkaChan:
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				return nullOffset, ev.TopicPartition.Error
			}
			return int64(ev.TopicPartition.Offset), nil
		case kafka.Error:
			return nullOffset, ev
		}
	}
	return nullOffset, nil
}

func (p *srProducer) Close() {
	p.producer.Flush(5000)
	p.serializer.Close()
	p.producer.Close()
}
