package repository

import (
	"context"

	"github.com/jhoicas/storefront-api/internal/domain/entity"
)

// CartRepository define el puerto de persistencia del carrito.
// Las implementaciones pueden estar atadas a un pool o a una transacción.
type CartRepository interface {
	// GetOrCreate devuelve el carrito del usuario creándolo si no existe (upsert atómico).
	GetOrCreate(ctx context.Context, userID string) (*entity.Cart, error)
	// Lock bloquea la fila del carrito hasta el fin de la transacción. ErrNotFound si no existe.
	Lock(ctx context.Context, cartID int64) error
	// ListLines devuelve las líneas con datos vivos del catálogo.
	ListLines(ctx context.Context, cartID int64) ([]entity.CartLine, error)
	// AddLine suma quantity a la línea existente o la crea, en una sola sentencia.
	AddLine(ctx context.Context, cartID, productID int64, quantity int) error
	// SetLineQuantity reemplaza la cantidad. Devuelve false si la línea no existe.
	SetLineQuantity(ctx context.Context, cartID, productID int64, quantity int) (bool, error)
	// DeleteLine borra la línea. Devuelve false si no existía.
	DeleteLine(ctx context.Context, cartID, productID int64) (bool, error)
	// ClearLines borra todas las líneas y devuelve cuántas había.
	ClearLines(ctx context.Context, cartID int64) (int64, error)
}
