package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// PubSubPushEnvelope is the body Pub/Sub push subscriptions POST to us.
// Data is base64 in JSON; []byte unmarshalling decodes it.
type PubSubPushEnvelope struct {
	Message struct {
		Data       []byte            `json:"data,omitempty"`
		ID         string            `json:"id"`
		Attributes map[string]string `json:"attributes,omitempty"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// NewPubSubClient builds a client with PUBSUB_CREDENTIALS_JSON when given,
// otherwise Application Default Credentials. An empty project id means
// Pub/Sub is not configured and (nil, nil) is returned.
func NewPubSubClient(ctx context.Context, cfg PubSubConfig, logg *logrus.Logger) (*pubsub.Client, error) {
	if cfg.ProjectID == "" {
		return nil, nil
	}

	var attempt int
	for {
		attempt++
		var (
			c   *pubsub.Client
			err error
		)
		if cfg.CredentialsJSON != "" {
			c, err = pubsub.NewClient(ctx, cfg.ProjectID, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		} else {
			c, err = pubsub.NewClient(ctx, cfg.ProjectID)
		}
		if err == nil {
			logg.WithFields(logrus.Fields{"field": "pubsub", "project_id": cfg.ProjectID, "attempt": attempt}).Info("pubsub client ready")
			return c, nil
		}

		sleep := retryBackoff(attempt)
		logg.WithFields(logrus.Fields{"field": "pubsub", "project_id": cfg.ProjectID, "attempt": attempt}).
			Warn(fmt.Sprintf("failed to init pubsub client: %v; retrying in %s", err, sleep))
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("init pubsub: %w", ctx.Err())
		case <-time.After(sleep):
		}
	}
}

func CreateTopicIfNotExists(ctx context.Context, c *pubsub.Client, topic string) (*pubsub.Topic, error) {
	if c == nil {
		return nil, errors.New("pubsub client is nil")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}

	t := c.Topic(topic)
	ok, err := t.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return t, nil
	}
	t, err = c.CreateTopic(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("create topic %q: %w", topic, err)
	}
	return t, nil
}

// DecodePushEnvelope unwraps a push body into dest.
func DecodePushEnvelope(body []byte, dest any) (PubSubPushEnvelope, error) {
	var envelope PubSubPushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return envelope, fmt.Errorf("unmarshal push envelope: %w", err)
	}
	if len(envelope.Message.Data) == 0 {
		return envelope, errors.New("push envelope has no data")
	}
	if err := json.Unmarshal(envelope.Message.Data, dest); err != nil {
		return envelope, fmt.Errorf("unmarshal push data: %w", err)
	}
	return envelope, nil
}
