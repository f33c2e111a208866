package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/storefront-api/internal/application/checkout"
	"github.com/jhoicas/storefront-api/internal/application/orders"
)

// HeaderIdempotencyKey header opcional del checkout.
const HeaderIdempotencyKey = "Idempotency-Key"

// OrderHandler checkout y consulta de pedidos del usuario autenticado.
type OrderHandler struct {
	checkout *checkout.CheckoutUseCase
	orders   *orders.OrderUseCase
}

// NewOrderHandler construye el handler.
func NewOrderHandler(checkoutUC *checkout.CheckoutUseCase, ordersUC *orders.OrderUseCase) *OrderHandler {
	return &OrderHandler{checkout: checkoutUC, orders: ordersUC}
}

// Checkout godoc
// @Summary      Crear pedido desde el carrito
// @Description  Convierte el carrito en un pedido con precios congelados y lo vacía, todo en una transacción.
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        Idempotency-Key  header  string  false  "Clave para reintentos seguros"
// @Success      201  {object}  dto.OrderResponse
// @Failure      400  {object}  dto.ErrorResponse  "EMPTY_CART"
// @Failure      409  {object}  dto.ErrorResponse  "Checkout con la misma clave en curso"
// @Router       /api/orders [post]
func (h *OrderHandler) Checkout(c *fiber.Ctx) error {
	out, err := h.checkout.Checkout(c.UserContext(), GetUserID(c), c.Get(HeaderIdempotencyKey))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List godoc
// @Summary      Listar pedidos
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  dto.OrderResponse
// @Router       /api/orders [get]
func (h *OrderHandler) List(c *fiber.Ctx) error {
	out, err := h.orders.List(c.UserContext(), GetUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// GetByID godoc
// @Summary      Obtener pedido
// @Tags         orders
// @Security     Bearer
// @Produce      json
// @Param        id   path  int  true  "ID del pedido"
// @Success      200  {object}  dto.OrderResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/orders/{id} [get]
func (h *OrderHandler) GetByID(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	out, err := h.orders.Get(c.UserContext(), GetUserID(c), id)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Receipt godoc
// @Summary      Comprobante PDF del pedido
// @Tags         orders
// @Security     Bearer
// @Produce      application/pdf
// @Param        id   path  int  true  "ID del pedido"
// @Success      200  {file}  binary
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/orders/{id}/receipt [get]
func (h *OrderHandler) Receipt(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	pdf, err := h.orders.Receipt(c.UserContext(), GetUserID(c), id)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="pedido-%d.pdf"`, id))
	return c.Send(pdf)
}
