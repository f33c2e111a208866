package checkout

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/storefront-api/internal/domain/entity"
)

// OrderPlaced payload del evento order.placed.
type OrderPlaced struct {
	EventID   string            `json:"eventId"`
	OrderID   int64             `json:"orderId"`
	UserID    string            `json:"userId"`
	Total     decimal.Decimal   `json:"total"`
	Currency  string            `json:"currency"`
	CreatedAt time.Time         `json:"createdAt"`
	Items     []OrderPlacedItem `json:"items"`
}

// OrderPlacedItem línea del evento con el precio snapshot.
type OrderPlacedItem struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func newOrderPlacedEvent(o *entity.Order, currency string) (*entity.OutboxEvent, error) {
	eventID := uuid.New().String()
	payload, err := json.Marshal(OrderPlaced{
		EventID:   eventID,
		OrderID:   o.ID,
		UserID:    o.UserID,
		Total:     o.Total,
		Currency:  currency,
		CreatedAt: o.CreatedAt,
		Items: lo.Map(o.Lines, func(l entity.OrderLine, _ int) OrderPlacedItem {
			return OrderPlacedItem{ProductID: l.ProductID, Quantity: l.Quantity, Price: l.Price}
		}),
	})
	if err != nil {
		return nil, err
	}
	return &entity.OutboxEvent{
		EventID:   eventID,
		EventType: entity.EventOrderPlaced,
		Key:       strconv.FormatInt(o.ID, 10),
		Payload:   payload,
	}, nil
}
