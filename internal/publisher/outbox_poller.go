// Package publisher drains the transactional outbox into Kafka. Status
// transitions append event rows in the same transaction as the status write;
// the poller ships them after commit, so downstream consumers never see an
// event for a rolled-back transition.
package publisher

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/smertin-nikita/market/internal/repository"
)

const batchSize = 100

// messageWriter is the slice of kafka.Writer the poller needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OutboxPoller struct {
	tick   time.Duration
	repo   repository.OutboxRepository
	writer messageWriter
	logger *zap.Logger
}

func NewOutboxPoller(repo repository.OutboxRepository, logger *zap.Logger, topic string, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{
		tick:   time.Second,
		repo:   repo,
		writer: w,
		logger: logger,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.logger.Error("failed to fetch outbox events", zap.Error(err))
		return
	}

	for _, event := range events {
		if errPublish := p.publish(ctx, event); errPublish != nil {
			p.logger.Error("failed to publish event",
				zap.String("event_id", event.ID),
				zap.Error(errPublish))
			continue
		}

		if errMark := p.repo.MarkEventAsProcessed(ctx, event.ID); errMark != nil {
			p.logger.Error("failed to mark event as processed",
				zap.String("event_id", event.ID),
				zap.Error(errMark))
		}
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		// Keyed by order id so a consumer sees one order's transitions in order.
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
