package cart

import (
	"context"

	"github.com/samber/lo"

	"github.com/jhoicas/storefront-api/internal/application/catalog"
	"github.com/jhoicas/storefront-api/internal/application/dto"
	"github.com/jhoicas/storefront-api/internal/domain"
	"github.com/jhoicas/storefront-api/internal/domain/entity"
	"github.com/jhoicas/storefront-api/internal/domain/pricing"
	"github.com/jhoicas/storefront-api/internal/domain/repository"
)

// CartUseCase operaciones del carrito por usuario. Cada mutación corre en una tx que
// bloquea la fila del carrito y devuelve el estado posterior leído en esa misma tx.
type CartUseCase struct {
	txRunner TxRunner
	currency pricing.Currency
}

// NewCartUseCase construye el caso de uso.
func NewCartUseCase(txRunner TxRunner, currency pricing.Currency) *CartUseCase {
	return &CartUseCase{txRunner: txRunner, currency: currency}
}

// mutation recibe el ID del carrito ya bloqueado.
type mutation func(ctx context.Context, cartID int64, carts repository.CartRepository, products repository.ProductRepository) error

// GetCart devuelve el carrito del usuario, creándolo si no existe.
func (uc *CartUseCase) GetCart(ctx context.Context, userID string) (*dto.CartResponse, error) {
	return uc.run(ctx, userID, nil)
}

// AddItem agrega quantity unidades del producto; si la línea existe se suman.
func (uc *CartUseCase) AddItem(ctx context.Context, userID string, in dto.AddCartItemRequest) (*dto.CartResponse, error) {
	if in.ProductID <= 0 || in.Quantity <= 0 || in.Quantity > entity.MaxLineQuantity {
		return nil, domain.ErrInvalidInput
	}
	return uc.run(ctx, userID, func(ctx context.Context, cartID int64, carts repository.CartRepository, products repository.ProductRepository) error {
		if _, err := catalog.Lookup(ctx, products, in.ProductID); err != nil {
			return err
		}
		return carts.AddLine(ctx, cartID, in.ProductID, in.Quantity)
	})
}

// UpdateItem reemplaza la cantidad de una línea existente; quantity <= 0 la elimina.
func (uc *CartUseCase) UpdateItem(ctx context.Context, userID string, productID int64, in dto.UpdateCartItemRequest) (*dto.CartResponse, error) {
	if in.Quantity == nil {
		return nil, domain.ErrInvalidInput
	}
	qty := *in.Quantity
	if qty > entity.MaxLineQuantity {
		return nil, domain.ErrInvalidInput
	}
	return uc.run(ctx, userID, func(ctx context.Context, cartID int64, carts repository.CartRepository, _ repository.ProductRepository) error {
		var found bool
		var err error
		if qty <= 0 {
			found, err = carts.DeleteLine(ctx, cartID, productID)
		} else {
			found, err = carts.SetLineQuantity(ctx, cartID, productID, qty)
		}
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrNotFound
		}
		return nil
	})
}

// RemoveItem elimina la línea del producto. Si no existe no es error.
func (uc *CartUseCase) RemoveItem(ctx context.Context, userID string, productID int64) (*dto.CartResponse, error) {
	return uc.run(ctx, userID, func(ctx context.Context, cartID int64, carts repository.CartRepository, _ repository.ProductRepository) error {
		_, err := carts.DeleteLine(ctx, cartID, productID)
		return err
	})
}

func (uc *CartUseCase) run(ctx context.Context, userID string, mutate mutation) (*dto.CartResponse, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	var out *dto.CartResponse
	err := uc.txRunner.RunCart(ctx, func(carts repository.CartRepository, products repository.ProductRepository) error {
		c, err := carts.GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		if mutate != nil {
			if err := carts.Lock(ctx, c.ID); err != nil {
				return err
			}
			if err := mutate(ctx, c.ID, carts, products); err != nil {
				return err
			}
		}
		lines, err := carts.ListLines(ctx, c.ID)
		if err != nil {
			return err
		}
		out = uc.toCartResponse(c.ID, lines)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (uc *CartUseCase) toCartResponse(cartID int64, lines []entity.CartLine) *dto.CartResponse {
	return &dto.CartResponse{
		CartID: cartID,
		Items: lo.Map(lines, func(l entity.CartLine, _ int) dto.CartLineResponse {
			return dto.CartLineResponse{
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
				Name:      l.Name,
				Price:     dto.NewMoney(l.Price, uc.currency.Scale),
				Category:  l.Category,
				Subtotal:  dto.NewMoney(l.Subtotal(), uc.currency.Scale),
			}
		}),
		ItemCount: pricing.ItemCount(lo.Map(lines, func(l entity.CartLine, _ int) int { return l.Quantity })),
		Subtotal:  dto.NewMoney(pricing.Total(uc.currency, lines), uc.currency.Scale),
		Currency:  uc.currency.Code,
	}
}
