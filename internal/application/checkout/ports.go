package checkout

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/storefront-api/internal/domain/repository"
)

// TxRunner ejecuta fn dentro de una transacción con los repositorios del checkout.
// Si fn retorna error no queda ningún efecto: ni pedido, ni evento, ni carrito vaciado.
type TxRunner interface {
	RunCheckout(ctx context.Context, fn func(
		carts repository.CartRepository,
		orders repository.OrderRepository,
		outbox repository.OutboxRepository,
	) error) error
}

// IdempotencyStore guarda las claves Idempotency-Key de checkout.
// Reserve devuelve reserved=true si la clave es nueva; si ya existía devuelve el pedido
// asociado, o 0 cuando la primera llamada sigue en curso.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (orderID int64, reserved bool, err error)
	Complete(ctx context.Context, key string, orderID int64) error
	Release(ctx context.Context, key string) error
}

// Metrics observa los resultados del checkout.
type Metrics interface {
	CheckoutCompleted(total decimal.Decimal, items int)
	CheckoutFailed(reason string)
	CheckoutReplayed()
}

type nopMetrics struct{}

func (nopMetrics) CheckoutCompleted(decimal.Decimal, int) {}
func (nopMetrics) CheckoutFailed(string)                  {}
func (nopMetrics) CheckoutReplayed()                      {}
