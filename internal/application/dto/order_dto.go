package dto

import "time"

// OrderLineResponse línea congelada del pedido.
type OrderLineResponse struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Price     Money  `json:"price"`
	Quantity  int    `json:"quantity"`
}

// OrderResponse pedido con sus líneas snapshot.
type OrderResponse struct {
	ID        int64               `json:"id"`
	Total     Money               `json:"total"`
	Currency  string              `json:"currency"`
	CreatedAt time.Time           `json:"date"`
	Items     []OrderLineResponse `json:"items"`
}
