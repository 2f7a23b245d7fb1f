package httpgin

import (
	"encoding/json"
	"time"

	"github.com/pawcall/pawcall/internal/domain"
)

type QuoteRequest struct {
	PetID         string   `json:"pet_id" binding:"required"`
	BaseServiceID string   `json:"base_service_id" binding:"required"`
	AddonIDs      []string `json:"addon_ids"`
}

type CreateHoldRequest struct {
	PetID     string `json:"pet_id" binding:"required"`
	ServiceID string `json:"service_id" binding:"required"`
	Date      string `json:"date"`
}

type HoldResponse struct {
	HoldID    string        `json:"hold_id"`
	Status    string        `json:"status"`
	ServiceID string        `json:"service_id"`
	PetID     string        `json:"pet_id"`
	Date      string        `json:"date,omitempty"`
	Quote     *domain.Quote `json:"quote,omitempty"`
	ExpiresAt time.Time     `json:"expires_at"`
}

func toHoldResponse(h *domain.Hold) HoldResponse {
	return HoldResponse{
		HoldID:    h.ID.String(),
		Status:    string(h.Status),
		ServiceID: h.ServiceID,
		PetID:     h.PetID,
		Date:      h.Date,
		Quote:     h.Quote,
		ExpiresAt: h.ExpiresAt,
	}
}

type CartItemInput struct {
	Kind           string            `json:"kind" binding:"required,oneof=service_base service_addon product"`
	RefID          string            `json:"ref_id" binding:"required"`
	Name           string            `json:"name"`
	Quantity       int               `json:"quantity"`
	UnitPriceCents int64             `json:"unit_price_cents"`
	Meta           map[string]string `json:"meta"`
}

func (in CartItemInput) toDomain() domain.CartItem {
	return domain.CartItem{
		Kind:           domain.CartItemKind(in.Kind),
		RefID:          in.RefID,
		Name:           in.Name,
		Quantity:       in.Quantity,
		UnitPriceCents: in.UnitPriceCents,
		Meta:           in.Meta,
	}
}

type CreateCartRequest struct {
	Items []CartItemInput `json:"items" binding:"required,min=1,dive"`
}

type ReplaceItemsRequest struct {
	Items []CartItemInput `json:"items" binding:"required,dive"`
}

type CartItemResponse struct {
	ID             string            `json:"id"`
	Kind           string            `json:"kind"`
	RefID          string            `json:"ref_id"`
	Name           string            `json:"name,omitempty"`
	Quantity       int               `json:"quantity"`
	UnitPriceCents int64             `json:"unit_price_cents"`
	Meta           map[string]string `json:"meta,omitempty"`
}

type CartResponse struct {
	CartID    string             `json:"cart_id"`
	Status    string             `json:"status"`
	ExpiresAt time.Time          `json:"expires_at"`
	Items     []CartItemResponse `json:"items"`
}

func toCartResponse(cw *domain.CartWithItems) CartResponse {
	items := make([]CartItemResponse, 0, len(cw.Items))
	for _, it := range cw.Items {
		items = append(items, CartItemResponse{
			ID:             it.ID.String(),
			Kind:           string(it.Kind),
			RefID:          it.RefID,
			Name:           it.Name,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
			Meta:           it.Meta,
		})
	}
	return CartResponse{
		CartID:    cw.Cart.ID.String(),
		Status:    string(cw.Cart.Status),
		ExpiresAt: cw.Cart.ExpiresAt,
		Items:     items,
	}
}

type CreateOrderRequest struct {
	CartID  string          `json:"cart_id" binding:"required,uuid"`
	Address json.RawMessage `json:"address"`
}

type OrderResponse struct {
	OrderID        string             `json:"order_id"`
	Status         string             `json:"status"`
	DeliveryStatus string             `json:"delivery_status"`
	Items          []domain.OrderItem `json:"items,omitempty"`
	TotalCents     int64              `json:"total_cents"`
	Currency       string             `json:"currency"`
	Address        json.RawMessage    `json:"address,omitempty"`
	ProviderID     string             `json:"provider_id,omitempty"`
	ScheduledAt    *time.Time         `json:"scheduled_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

func toOrderResponse(o *domain.Order) OrderResponse {
	return OrderResponse{
		OrderID:        o.ID.String(),
		Status:         string(o.Status),
		DeliveryStatus: string(o.DeliveryStatus),
		Items:          o.Items,
		TotalCents:     o.TotalCents,
		Currency:       o.Currency,
		Address:        o.Address,
		ProviderID:     o.ProviderID,
		ScheduledAt:    o.ScheduledAt,
		CreatedAt:      o.CreatedAt,
	}
}

type SlotResponse struct {
	SlotID    string `json:"slot_id"`
	ServiceID string `json:"service_id"`
	Date      string `json:"date"`
	Capacity  int    `json:"capacity"`
	Booked    int    `json:"booked"`
	Remaining int    `json:"remaining"`
	Active    bool   `json:"active"`
}

func toSlotResponse(s *domain.Slot) SlotResponse {
	return SlotResponse{
		SlotID:    s.ID,
		ServiceID: s.ServiceID,
		Date:      s.Date,
		Capacity:  s.Capacity,
		Booked:    s.Booked,
		Remaining: s.Remaining(),
		Active:    s.Active,
	}
}

type UpsertServiceRequest struct {
	ID         string   `json:"id" binding:"required"`
	Name       string   `json:"name" binding:"required"`
	Kind       string   `json:"kind" binding:"required,oneof=base addon"`
	Species    string   `json:"species" binding:"required"`
	BreedAllow []string `json:"breed_allow"`
	Requires   []string `json:"requires"`
	Active     *bool    `json:"active"`
}

type UpsertPriceRuleRequest struct {
	ID            string  `json:"id"`
	ServiceID     string  `json:"service_id" binding:"required"`
	Species       string  `json:"species" binding:"required"`
	BreedCategory string  `json:"breed_category" binding:"required"`
	WeightMinKg   float64 `json:"weight_min_kg"`
	WeightMaxKg   float64 `json:"weight_max_kg"`
	AmountCents   int64   `json:"amount_cents" binding:"required,gt=0"`
	Currency      string  `json:"currency"`
	Active        *bool   `json:"active"`
}

type CreateSlotRequest struct {
	ServiceID string `json:"service_id" binding:"required"`
	Date      string `json:"date" binding:"required"`
	Capacity  int    `json:"capacity" binding:"required,gt=0"`
}

type UpdateCapacityRequest struct {
	Capacity int `json:"capacity" binding:"required,gt=0"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type AssignOrderRequest struct {
	ProviderID  string `json:"provider_id" binding:"required"`
	ScheduledAt string `json:"scheduled_at" binding:"required"`
	Notes       string `json:"notes"`
}

type SetDeliveryStatusRequest struct {
	DeliveryStatus string `json:"delivery_status" binding:"required"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func parseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
