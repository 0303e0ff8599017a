package redpanda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/resume-job-matcher/internal/domain"
	"github.com/fairyhunter13/resume-job-matcher/internal/usecase"
)

// PassRunner is the slice of the matcher the worker needs.
type PassRunner interface {
	RunPass(ctx domain.Context, payload domain.ScoreTaskPayload) (usecase.PassStats, error)
}

// Consumer polls the score-pass topic and replays each payload into the
// matcher. Offsets commit only after the pass ran, so a crashed worker
// reprocesses rather than drops; passes are idempotent upserts, making the
// replay safe.
type Consumer struct {
	client *kgo.Client
	runner PassRunner
}

// NewConsumer constructs a group consumer with OpenTelemetry record tracing.
func NewConsumer(brokers []string, groupID string, runner PassRunner) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	kotelService := kotel.NewKotel(
		kotel.WithTracer(kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))),
	)
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(TopicScorePasses),
		kgo.DisableAutoCommit(),
		kgo.WithHooks(kotelService.Hooks()...),
		kgo.DialTimeout(10*time.Second),
		kgo.SessionTimeout(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda consumer client: %w", err)
	}
	return &Consumer{client: client, runner: runner}, nil
}

// Run polls until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	slog.Info("score pass consumer started", slog.String("topic", TopicScorePasses))
	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			for _, fe := range errs {
				if errors.Is(fe.Err, context.Canceled) {
					return ctx.Err()
				}
				slog.Error("fetch error",
					slog.String("topic", fe.Topic), slog.Any("error", fe.Err))
			}
			continue
		}
		fetches.EachRecord(func(rec *kgo.Record) {
			c.handle(ctx, rec)
		})
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			slog.Error("offset commit failed", slog.Any("error", err))
		}
	}
}

// handle runs one pass. Malformed payloads are logged and committed past:
// retrying them can never succeed.
func (c *Consumer) handle(ctx context.Context, rec *kgo.Record) {
	var payload domain.ScoreTaskPayload
	if err := json.Unmarshal(rec.Value, &payload); err != nil {
		slog.Error("dropping malformed score pass payload",
			slog.String("topic", rec.Topic), slog.Any("error", err))
		return
	}
	stats, err := c.runner.RunPass(ctx, payload)
	if err != nil {
		slog.Error("deferred score pass failed",
			slog.String("kind", string(payload.Kind)),
			slog.String("document_id", payload.DocumentID),
			slog.Any("error", err))
		return
	}
	slog.Info("deferred score pass done",
		slog.String("kind", string(payload.Kind)),
		slog.String("document_id", payload.DocumentID),
		slog.Int("scored", stats.Scored),
		slog.Int("failed", stats.Failed))
}

// Close leaves the group and closes the client.
func (c *Consumer) Close() error {
	if c.client != nil {
		c.client.Close()
	}
	return nil
}
