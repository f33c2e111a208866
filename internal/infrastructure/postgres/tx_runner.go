package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/storefront-api/internal/application/cart"
	"github.com/jhoicas/storefront-api/internal/application/checkout"
	"github.com/jhoicas/storefront-api/internal/domain/repository"
)

var _ cart.TxRunner = (*TxRunner)(nil)
var _ checkout.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunCart inicia una transacción con los repos de carrito y catálogo atados a ella.
func (r *TxRunner) RunCart(ctx context.Context, fn func(
	carts repository.CartRepository,
	products repository.ProductRepository,
) error) error {
	return r.run(ctx, func(tx pgx.Tx) error {
		return fn(NewCartRepository(tx), NewProductRepository(tx))
	})
}

// RunCheckout inicia una transacción con carrito, pedidos y outbox atados a ella.
func (r *TxRunner) RunCheckout(ctx context.Context, fn func(
	carts repository.CartRepository,
	orders repository.OrderRepository,
	outbox repository.OutboxRepository,
) error) error {
	return r.run(ctx, func(tx pgx.Tx) error {
		return fn(NewCartRepository(tx), NewOrderRepository(tx), NewOutboxRepository(tx))
	})
}

// run hace Commit si fn termina bien y Rollback en cualquier otro caso.
func (r *TxRunner) run(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
