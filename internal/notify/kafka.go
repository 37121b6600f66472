package notify

import (
	"context"
)

// Publisher is satisfied by kafka.Producer.
type Publisher interface {
	Publish(key, eventType string, payload interface{}) error
}

// KafkaChannel 将事件写入Kafka事件流
type KafkaChannel struct {
	publisher Publisher
}

func NewKafkaChannel(publisher Publisher) *KafkaChannel {
	return &KafkaChannel{publisher: publisher}
}

func (k *KafkaChannel) Name() string { return "kafka" }

func (k *KafkaChannel) Send(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return k.publisher.Publish(ev.ID, string(ev.Trigger), ev)
}
