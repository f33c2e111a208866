package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/storefront-api/internal/domain"
	"github.com/jhoicas/storefront-api/internal/domain/entity"
	"github.com/jhoicas/storefront-api/internal/domain/repository"
)

var _ repository.CartRepository = (*CartRepo)(nil)

// CartRepo implementación de CartRepository sobre PostgreSQL (usable con pool o tx).
// Las mutaciones deben ejecutarse dentro de una tx que antes haya llamado Lock.
type CartRepo struct {
	q Querier
}

// NewCartRepository construye el adaptador del carrito. Pasar pool o tx (Querier).
func NewCartRepository(q Querier) *CartRepo {
	return &CartRepo{q: q}
}

// GetOrCreate inserta el carrito o devuelve el existente; la unicidad la impone carts.user_id.
// Un carrito existente no se toca: la lectura no bloquea la fila ni compite con un checkout.
func (r *CartRepo) GetOrCreate(ctx context.Context, userID string) (*entity.Cart, error) {
	insert := `
		INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING id, user_id, created_at`
	var c entity.Cart
	err := r.q.QueryRow(ctx, insert, userID).Scan(&c.ID, &c.UserID, &c.CreatedAt)
	if err == nil {
		return &c, nil
	}
	if isForeignKeyViolation(err) {
		return nil, domain.ErrNotFound
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get or create cart: %w", err)
	}
	err = r.q.QueryRow(ctx, `SELECT id, user_id, created_at FROM carts WHERE user_id = $1`, userID).
		Scan(&c.ID, &c.UserID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return &c, nil
}

// Lock bloquea la fila del carrito (SELECT FOR UPDATE) hasta el fin de la transacción.
func (r *CartRepo) Lock(ctx context.Context, cartID int64) error {
	var id int64
	err := r.q.QueryRow(ctx, `SELECT id FROM carts WHERE id = $1 FOR UPDATE`, cartID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("lock cart: %w", err)
	}
	return nil
}

// ListLines devuelve las líneas en orden de inserción, unidas al catálogo vivo.
func (r *CartRepo) ListLines(ctx context.Context, cartID int64) ([]entity.CartLine, error) {
	query := `
		SELECT ci.product_id, ci.quantity, p.name, p.price, p.category
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.added_at, ci.product_id`
	rows, err := r.q.Query(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	defer rows.Close()

	lines := make([]entity.CartLine, 0)
	for rows.Next() {
		var l entity.CartLine
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.Name, &l.Price, &l.Category); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// AddLine suma quantity a la línea existente o la crea. Un producto borrado entre la
// validación y el insert se reporta como ErrNotFound.
func (r *CartRepo) AddLine(ctx context.Context, cartID, productID int64, quantity int) error {
	query := `
		INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`
	if _, err := r.q.Exec(ctx, query, cartID, productID, quantity); err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrNotFound
		}
		if isNumericOutOfRange(err) {
			return domain.ErrInvalidInput
		}
		return fmt.Errorf("add cart line: %w", err)
	}
	return nil
}

// SetLineQuantity reemplaza la cantidad de una línea existente.
func (r *CartRepo) SetLineQuantity(ctx context.Context, cartID, productID int64, quantity int) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE cart_items SET quantity = $3 WHERE cart_id = $1 AND product_id = $2`,
		cartID, productID, quantity)
	if err != nil {
		if isNumericOutOfRange(err) {
			return false, domain.ErrInvalidInput
		}
		return false, fmt.Errorf("set cart line quantity: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteLine borra la línea del producto.
func (r *CartRepo) DeleteLine(ctx context.Context, cartID, productID int64) (bool, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
	if err != nil {
		return false, fmt.Errorf("delete cart line: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ClearLines vacía el carrito.
func (r *CartRepo) ClearLines(ctx context.Context, cartID int64) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}
	return tag.RowsAffected(), nil
}
