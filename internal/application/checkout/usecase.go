package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/jhoicas/storefront-api/internal/application/dto"
	"github.com/jhoicas/storefront-api/internal/application/orders"
	"github.com/jhoicas/storefront-api/internal/domain"
	"github.com/jhoicas/storefront-api/internal/domain/entity"
	"github.com/jhoicas/storefront-api/internal/domain/pricing"
	"github.com/jhoicas/storefront-api/internal/domain/repository"
	"github.com/jhoicas/storefront-api/pkg/logger"
)

// MaxIdempotencyKeyLength longitud máxima aceptada para Idempotency-Key.
const MaxIdempotencyKeyLength = 255

// Option configura dependencias opcionales del checkout.
type Option func(*CheckoutUseCase)

// WithIdempotency habilita Idempotency-Key con el almacén dado.
func WithIdempotency(store IdempotencyStore) Option {
	return func(uc *CheckoutUseCase) { uc.idem = store }
}

// WithMetrics registra los resultados del checkout.
func WithMetrics(m Metrics) Option {
	return func(uc *CheckoutUseCase) { uc.metrics = m }
}

// WithClock reemplaza el reloj (tests).
func WithClock(now func() time.Time) Option {
	return func(uc *CheckoutUseCase) { uc.now = now }
}

// CheckoutUseCase convierte el carrito del usuario en un pedido inmutable en una sola tx.
type CheckoutUseCase struct {
	txRunner TxRunner
	orders   repository.OrderRepository
	currency pricing.Currency
	log      *logger.Logger
	idem     IdempotencyStore
	metrics  Metrics
	now      func() time.Time
}

// NewCheckoutUseCase construye el caso de uso. orders (sobre el pool) se usa para
// responder reintentos idempotentes.
func NewCheckoutUseCase(txRunner TxRunner, orders repository.OrderRepository, currency pricing.Currency, log *logger.Logger, opts ...Option) *CheckoutUseCase {
	uc := &CheckoutUseCase{
		txRunner: txRunner,
		orders:   orders,
		currency: currency,
		log:      log,
		metrics:  nopMetrics{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Checkout crea el pedido a partir del carrito. Con idempotencyKey, una clave repetida
// devuelve el mismo pedido en lugar de crear otro.
func (uc *CheckoutUseCase) Checkout(ctx context.Context, userID, idempotencyKey string) (*dto.OrderResponse, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if len(idempotencyKey) > MaxIdempotencyKeyLength {
		return nil, domain.ErrInvalidInput
	}
	if idempotencyKey == "" || uc.idem == nil {
		return uc.place(ctx, userID)
	}

	key := userID + ":" + idempotencyKey
	orderID, reserved, err := uc.idem.Reserve(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reservar idempotency key: %w", err)
	}
	if !reserved {
		return uc.replay(ctx, userID, orderID)
	}

	out, err := uc.place(ctx, userID)
	if err != nil {
		if relErr := uc.idem.Release(ctx, key); relErr != nil {
			uc.log.Warn().Err(relErr).Str("user_id", userID).Msg("no se pudo liberar idempotency key")
		}
		return nil, err
	}
	if err := uc.idem.Complete(ctx, key, out.ID); err != nil {
		uc.log.Warn().Err(err).Str("user_id", userID).Int64("order_id", out.ID).Msg("no se pudo completar idempotency key")
	}
	return out, nil
}

func (uc *CheckoutUseCase) replay(ctx context.Context, userID string, orderID int64) (*dto.OrderResponse, error) {
	if orderID == 0 {
		return nil, domain.ErrConflict
	}
	o, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil || o.UserID != userID {
		return nil, domain.ErrConflict
	}
	uc.metrics.CheckoutReplayed()
	uc.log.Info().Str("user_id", userID).Int64("order_id", o.ID).Msg("checkout repetido, se devuelve el pedido existente")
	return orders.ToOrderResponse(o, uc.currency), nil
}

func (uc *CheckoutUseCase) place(ctx context.Context, userID string) (*dto.OrderResponse, error) {
	var order *entity.Order
	err := uc.txRunner.RunCheckout(ctx, func(
		carts repository.CartRepository,
		orderRepo repository.OrderRepository,
		outbox repository.OutboxRepository,
	) error {
		c, err := carts.GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		// El lock se mantiene hasta el commit: un AddItem concurrente espera y cae en el carrito ya vacío.
		if err := carts.Lock(ctx, c.ID); err != nil {
			return err
		}
		lines, err := carts.ListLines(ctx, c.ID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return domain.ErrEmptyCart
		}

		total := pricing.Total(uc.currency, lines)
		if total.GreaterThan(entity.MaxOrderTotal) {
			return domain.ErrInvalidInput
		}
		o := &entity.Order{
			UserID:    userID,
			Total:     total,
			CreatedAt: uc.now().UTC().Truncate(time.Microsecond),
			Lines: lo.Map(lines, func(l entity.CartLine, _ int) entity.OrderLine {
				return entity.OrderLine{ProductID: l.ProductID, Name: l.Name, Price: l.Price, Quantity: l.Quantity}
			}),
		}
		if err := orderRepo.Create(ctx, o); err != nil {
			return err
		}
		event, err := newOrderPlacedEvent(o, uc.currency.Code)
		if err != nil {
			return fmt.Errorf("serializar evento: %w", err)
		}
		if err := outbox.Insert(ctx, event); err != nil {
			return err
		}
		if _, err := carts.ClearLines(ctx, c.ID); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		uc.metrics.CheckoutFailed(failureReason(err))
		return nil, err
	}

	items := lo.SumBy(order.Lines, func(l entity.OrderLine) int { return l.Quantity })
	uc.metrics.CheckoutCompleted(order.Total, items)
	uc.log.Info().
		Str("user_id", userID).
		Int64("order_id", order.ID).
		Str("total", order.Total.StringFixed(uc.currency.Scale)).
		Int("lines", len(order.Lines)).
		Msg("pedido creado")
	return orders.ToOrderResponse(order, uc.currency), nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "storage"
	}
}
