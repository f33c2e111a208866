package dto

// AddCartItemRequest entrada para agregar un producto al carrito.
type AddCartItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// UpdateCartItemRequest entrada para fijar la cantidad de una línea (<= 0 la elimina).
type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity"`
}

// CartLineResponse línea del carrito con precio vivo del catálogo.
type CartLineResponse struct {
	ProductID int64  `json:"productId"`
	Quantity  int    `json:"quantity"`
	Name      string `json:"name"`
	Price     Money  `json:"price"`
	Category  string `json:"category"`
	Subtotal  Money  `json:"subtotal"`
}

// CartResponse estado del carrito tras cada operación.
type CartResponse struct {
	CartID    int64              `json:"cartId"`
	Items     []CartLineResponse `json:"items"`
	ItemCount int                `json:"itemCount"`
	Subtotal  Money              `json:"subtotal"`
	Currency  string             `json:"currency"`
}
