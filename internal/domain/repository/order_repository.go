package repository

import (
	"context"

	"github.com/jhoicas/storefront-api/internal/domain/entity"
)

// OrderRepository define el puerto del libro de pedidos. Solo inserción y lectura:
// pedidos y líneas no se actualizan ni se borran.
type OrderRepository interface {
	// Create inserta cabecera y líneas; asigna ID y CreatedAt en order.
	Create(ctx context.Context, order *entity.Order) error
	// GetByID devuelve el pedido con sus líneas, o (nil, nil) si no existe.
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	// ListByUser devuelve los pedidos del usuario en orden de creación.
	ListByUser(ctx context.Context, userID string) ([]*entity.Order, error)
}
