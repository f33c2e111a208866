package orders

import (
	"context"

	"github.com/samber/lo"

	"github.com/jhoicas/storefront-api/internal/application/dto"
	"github.com/jhoicas/storefront-api/internal/domain"
	"github.com/jhoicas/storefront-api/internal/domain/entity"
	"github.com/jhoicas/storefront-api/internal/domain/pricing"
	"github.com/jhoicas/storefront-api/internal/domain/repository"
)

// ReceiptRenderer genera el comprobante PDF de un pedido a partir de su snapshot.
type ReceiptRenderer interface {
	Render(order *entity.Order, currency string) ([]byte, error)
}

// OrderUseCase lectura del libro de pedidos. No existe actualización ni borrado.
type OrderUseCase struct {
	repo     repository.OrderRepository
	currency pricing.Currency
	receipts ReceiptRenderer
}

// NewOrderUseCase construye el caso de uso. receipts puede ser nil (sin comprobantes).
func NewOrderUseCase(repo repository.OrderRepository, currency pricing.Currency, receipts ReceiptRenderer) *OrderUseCase {
	return &OrderUseCase{repo: repo, currency: currency, receipts: receipts}
}

// List devuelve los pedidos del usuario en orden de creación.
func (uc *OrderUseCase) List(ctx context.Context, userID string) ([]dto.OrderResponse, error) {
	list, err := uc.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return lo.Map(list, func(o *entity.Order, _ int) dto.OrderResponse {
		return *ToOrderResponse(o, uc.currency)
	}), nil
}

// Get devuelve un pedido del usuario. Un pedido ajeno se reporta como inexistente.
func (uc *OrderUseCase) Get(ctx context.Context, userID string, orderID int64) (*dto.OrderResponse, error) {
	o, err := uc.find(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	return ToOrderResponse(o, uc.currency), nil
}

// Receipt genera el PDF del pedido con los precios congelados.
func (uc *OrderUseCase) Receipt(ctx context.Context, userID string, orderID int64) ([]byte, error) {
	if uc.receipts == nil {
		return nil, domain.ErrNotFound
	}
	o, err := uc.find(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	return uc.receipts.Render(o, uc.currency.Code)
}

func (uc *OrderUseCase) find(ctx context.Context, userID string, orderID int64) (*entity.Order, error) {
	if orderID <= 0 {
		return nil, domain.ErrNotFound
	}
	o, err := uc.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil || o.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

// ToOrderResponse mapea un pedido con sus líneas snapshot; los importes salen con la escala de currency.
func ToOrderResponse(o *entity.Order, currency pricing.Currency) *dto.OrderResponse {
	if o == nil {
		return nil
	}
	return &dto.OrderResponse{
		ID:        o.ID,
		Total:     dto.NewMoney(o.Total, currency.Scale),
		Currency:  currency.Code,
		CreatedAt: o.CreatedAt,
		Items: lo.Map(o.Lines, func(l entity.OrderLine, _ int) dto.OrderLineResponse {
			return dto.OrderLineResponse{
				ProductID: l.ProductID,
				Name:      l.Name,
				Price:     dto.NewMoney(l.Price, currency.Scale),
				Quantity:  l.Quantity,
			}
		}),
	}
}
