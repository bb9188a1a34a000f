package orderapi

import (
	"time"

	"github.com/tablr/orderwatch/internal/domain"
)

// wireOrder mirrors the Order API's JSON shape. Amount and address are
// pointers so absent fields can be told apart from zero values.
type wireOrder struct {
	OrderID         string   `json:"orderId"`
	Status          string   `json:"status"`
	TotalAmount     *float64 `json:"totalAmount"`
	DeliveryAddress *struct {
		Address string `json:"address"`
	} `json:"deliveryAddress"`
	CreatedAt       time.Time `json:"createdAt"`
	StatusUpdatedAt time.Time `json:"statusUpdatedAt"`
}

// toDomain converts a wire order into an OrderSnapshot. Malformed or missing
// amount/address default to 0/"" rather than failing the fetch.
func (w wireOrder) toDomain() domain.OrderSnapshot {
	snap := domain.OrderSnapshot{
		OrderID:         w.OrderID,
		Status:          domain.OrderStatus(w.Status),
		CreatedAt:       w.CreatedAt,
		StatusUpdatedAt: w.StatusUpdatedAt,
	}
	if w.TotalAmount != nil {
		snap.TotalAmount = *w.TotalAmount
	}
	if w.DeliveryAddress != nil {
		snap.Address = w.DeliveryAddress.Address
	}
	return snap
}
