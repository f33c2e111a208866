package repository

import (
	"context"

	"github.com/jhoicas/storefront-api/internal/domain/entity"
)

// OutboxRepository persiste eventos para publicación diferida.
type OutboxRepository interface {
	Insert(ctx context.Context, event *entity.OutboxEvent) error
	FetchPending(ctx context.Context, limit int) ([]*entity.OutboxEvent, error)
	MarkSent(ctx context.Context, id int64) error
}
