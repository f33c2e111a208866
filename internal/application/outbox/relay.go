package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/storefront-api/internal/domain/entity"
	"github.com/jhoicas/storefront-api/internal/domain/repository"
	"github.com/jhoicas/storefront-api/pkg/logger"
)

// Publisher entrega un evento al broker.
type Publisher interface {
	Publish(ctx context.Context, event *entity.OutboxEvent) error
}

// Relay publica los eventos pendientes del outbox en orden de inserción.
// Un evento solo se marca como enviado después de publicarse (entrega al menos una vez).
type Relay struct {
	repo      repository.OutboxRepository
	publisher Publisher
	interval  time.Duration
	batchSize int
	log       *logger.Logger
}

// NewRelay construye el relay.
func NewRelay(repo repository.OutboxRepository, publisher Publisher, interval time.Duration, batchSize int, log *logger.Logger) *Relay {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{repo: repo, publisher: publisher, interval: interval, batchSize: batchSize, log: log}
}

// Run procesa lotes cada interval hasta que ctx se cancela.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				r.log.Warn().Err(err).Msg("outbox: lote incompleto, se reintenta en el próximo ciclo")
			}
		}
	}
}

// Flush publica un lote de pendientes y devuelve cuántos quedaron enviados.
// Se detiene en el primer fallo para no adelantar eventos posteriores del mismo pedido.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	events, err := r.repo.FetchPending(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("leer pendientes: %w", err)
	}
	sent := 0
	for _, e := range events {
		if err := r.publisher.Publish(ctx, e); err != nil {
			return sent, fmt.Errorf("publicar evento %s: %w", e.EventID, err)
		}
		if err := r.repo.MarkSent(ctx, e.ID); err != nil {
			return sent, fmt.Errorf("marcar evento %s: %w", e.EventID, err)
		}
		sent++
	}
	if sent > 0 {
		r.log.Debug().Int("sent", sent).Msg("outbox: eventos publicados")
	}
	return sent, nil
}
