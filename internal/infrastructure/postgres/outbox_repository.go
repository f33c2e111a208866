package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/storefront-api/internal/domain/entity"
	"github.com/jhoicas/storefront-api/internal/domain/repository"
)

var _ repository.OutboxRepository = (*OutboxRepo)(nil)

// OutboxRepo persiste eventos del outbox. Insert se usa dentro de la tx de negocio;
// FetchPending y MarkSent desde el relay, sobre el pool.
type OutboxRepo struct {
	q Querier
}

// NewOutboxRepository construye el adaptador del outbox. Pasar pool o tx (Querier).
func NewOutboxRepository(q Querier) *OutboxRepo {
	return &OutboxRepo{q: q}
}

// Insert registra un evento pendiente.
func (r *OutboxRepo) Insert(ctx context.Context, event *entity.OutboxEvent) error {
	query := `
		INSERT INTO outbox_events (event_id, event_type, key, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err := r.q.QueryRow(ctx, query, event.EventID, event.EventType, event.Key, []byte(event.Payload)).
		Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// FetchPending devuelve hasta limit eventos sin enviar en orden de inserción.
func (r *OutboxRepo) FetchPending(ctx context.Context, limit int) ([]*entity.OutboxEvent, error) {
	query := `
		SELECT id, event_id, event_type, key, payload, created_at
		FROM outbox_events
		WHERE sent_at IS NULL
		ORDER BY id
		LIMIT $1`
	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox events: %w", err)
	}
	defer rows.Close()

	var events []*entity.OutboxEvent
	for rows.Next() {
		var e entity.OutboxEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.EventID, &e.EventType, &e.Key, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		e.Payload = payload
		events = append(events, &e)
	}
	return events, rows.Err()
}

// MarkSent marca el evento como publicado.
func (r *OutboxRepo) MarkSent(ctx context.Context, id int64) error {
	if _, err := r.q.Exec(ctx, `UPDATE outbox_events SET sent_at = now() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("mark outbox event sent: %w", err)
	}
	return nil
}
