package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxOrderTotal mayor total que admite orders.total (NUMERIC(14,2)).
var MaxOrderTotal = decimal.RequireFromString("999999999999.99")

// Order es un pedido inmutable. Total se calcula una sola vez al crearlo.
type Order struct {
	ID        int64
	UserID    string
	Total     decimal.Decimal
	CreatedAt time.Time
	Lines     []OrderLine
}

// OrderLine es una línea congelada del pedido: Name y Price son un snapshot
// del producto en el momento del checkout.
type OrderLine struct {
	OrderID   int64
	ProductID int64
	Name      string
	Price     decimal.Decimal
	Quantity  int
}

// Subtotal precio snapshot × cantidad.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
