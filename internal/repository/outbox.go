package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smertin-nikita/market/internal/domain"
)

const (
	EventOrderConfirmed     = "order.confirmed"
	EventOrderStatusChanged = "order.status_changed"
)

type OutboxEvent struct {
	ID          string
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

// insertOutboxEvent appends an order event row inside the caller's
// transaction so the event commits (or rolls back) with the status write.
func insertOutboxEvent(ctx context.Context, tx *sql.Tx, orderID int64, eventType string, status domain.OrderStatus, amount decimal.Decimal) error {
	payload, err := json.Marshal(map[string]any{
		"order_id": orderID,
		"status":   status,
		"amount":   amount,
	})
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox_events (id, aggregate_id, event_type, payload)
		 VALUES ($1, $2, $3, $4)`,
		uuid.New(), strconv.FormatInt(orderID, 10), eventType, payload)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, aggregate_id, event_type, payload, created_at
		 FROM outbox_events
		 WHERE processed_at IS NULL
		 ORDER BY created_at
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var event OutboxEvent
		if err := rows.Scan(&event.ID, &event.AggregateID, &event.EventType, &event.Payload, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark event as processed: %w", err)
	}
	return nil
}
