package notifier

import (
	"context"
	"encoding/json"
	"errors"

	"cloud.google.com/go/pubsub"
)

// PubSubPublisher publishes payment events to a topic for downstream services.
type PubSubPublisher struct {
	topic *pubsub.Topic
}

func NewPubSubPublisher(topic *pubsub.Topic) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub topic is nil")
	}
	return &PubSubPublisher{topic: topic}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, event PaymentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	res := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event":    event.Event,
			"order_id": event.OrderId,
		},
	})
	_, err = res.Get(ctx)
	return err
}

// Stop flushes pending publishes.
func (p *PubSubPublisher) Stop() {
	p.topic.Stop()
}
