// Package redpanda defers fan-out scoring passes through a Redpanda/Kafka
// topic. The producer implements domain.Queue; the consumer replays each
// payload into the same usecase entry point the inline path uses.
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"

	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/resume-job-matcher/internal/domain"
)

// TopicScorePasses is the Kafka topic carrying deferred scoring passes.
const TopicScorePasses = "score-passes"

// Producer wraps a Kafka producer and implements domain.Queue.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer constructs a Producer and ensures the topic exists. Topic
// creation failure is non-fatal: on an already-provisioned cluster the topic
// is simply there.
func NewProducer(brokers []string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1_000_000),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda client: %w", err)
	}
	if err := createTopicIfNotExists(context.Background(), client, TopicScorePasses, 1, 1); err != nil {
		slog.Warn("topic creation failed, assuming it exists",
			slog.String("topic", TopicScorePasses), slog.Any("error", err))
	}
	return &Producer{client: client, topic: TopicScorePasses}, nil
}

// EnqueueScorePass publishes one scoring pass. The document id keys the
// record so repeated passes for the same document stay ordered within their
// partition.
func (p *Producer) EnqueueScorePass(ctx domain.Context, payload domain.ScoreTaskPayload) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("op=redpanda.EnqueueScorePass: marshal: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(payload.DocumentID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "kind", Value: []byte(payload.Kind)},
		},
	}
	res := p.client.ProduceSync(ctx, record)
	if err := res.FirstErr(); err != nil {
		return "", fmt.Errorf("op=redpanda.EnqueueScorePass: produce: %w", err)
	}
	slog.Info("score pass enqueued",
		slog.String("kind", string(payload.Kind)),
		slog.String("document_id", payload.DocumentID),
		slog.String("topic", p.topic))
	return payload.DocumentID, nil
}

// Ping verifies broker connectivity for readiness checks.
func (p *Producer) Ping(ctx domain.Context) error {
	return p.client.Ping(ctx)
}

// Close closes the underlying client.
func (p *Producer) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}
