package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ServiceKind string

const (
	ServiceKindBase  ServiceKind = "base"
	ServiceKindAddon ServiceKind = "addon"
)

// Service is a catalog entry. Immutable once referenced by price rules;
// toggled active/inactive, never deleted.
type Service struct {
	ID         string
	Name       string
	Kind       ServiceKind
	Species    string
	BreedAllow []string // empty means any breed
	Requires   []string // base service ids an addon applies to
	Active     bool
}

// AllowsBreed reports whether the service is applicable to the given breed.
func (s Service) AllowsBreed(breed string) bool {
	if len(s.BreedAllow) == 0 {
		return true
	}
	for _, b := range s.BreedAllow {
		if b == breed {
			return true
		}
	}
	return false
}

// RequiresService reports whether an addon lists baseID in its
// required-services set.
func (s Service) RequiresService(baseID string) bool {
	for _, id := range s.Requires {
		if id == baseID {
			return true
		}
	}
	return false
}

// BreedCategoryMixed is the generic fallback category used when no price
// rule matches the pet's own breed category.
const BreedCategoryMixed = "mixed"

// PriceRule maps (service, species, breed category, weight band) to a price.
// WeightMaxKg <= 0 means the band is unbounded above.
type PriceRule struct {
	ID            string
	ServiceID     string
	Species       string
	BreedCategory string
	WeightMinKg   float64
	WeightMaxKg   float64
	AmountCents   int64
	Currency      string
	Active        bool
}

// Matches reports whether the rule covers the given species, category and
// weight. Bands are half-open: [min, max).
func (r PriceRule) Matches(species, category string, weightKg float64) bool {
	if !r.Active || r.Species != species || r.BreedCategory != category {
		return false
	}
	if weightKg < r.WeightMinKg {
		return false
	}
	if r.WeightMaxKg > 0 && weightKg >= r.WeightMaxKg {
		return false
	}
	return true
}

// Pet is the projection of the pet registry the engine needs.
type Pet struct {
	ID            string
	UserID        string
	Name          string
	Species       string
	Breed         string
	BreedCategory string
	WeightKg      float64
}

// Slot is a per (service, date) capacity counter. Invariant: 0 <= Booked <= Capacity.
type Slot struct {
	ID        string
	ServiceID string
	Date      string // YYYY-MM-DD
	Capacity  int
	Booked    int
	Active    bool
	CreatedAt time.Time
}

func (s Slot) Remaining() int {
	if r := s.Capacity - s.Booked; r > 0 {
		return r
	}
	return 0
}

type QuoteLine struct {
	ServiceID   string `json:"service_id"`
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
}

// Quote is an immutable pricing snapshot. A hold freezes one on confirm.
type Quote struct {
	BaseServiceID string      `json:"base_service_id"`
	Lines         []QuoteLine `json:"lines"`
	TotalCents    int64       `json:"total_cents"`
	Currency      string      `json:"currency"`
	GeneratedAt   time.Time   `json:"generated_at"`
}

type HoldStatus string

const (
	HoldHeld      HoldStatus = "held"
	HoldConfirmed HoldStatus = "confirmed"
	HoldCancelled HoldStatus = "cancelled"
	HoldExpired   HoldStatus = "expired"
)

// Hold is a time-boxed provisional reservation. Date is empty for bare
// timer-only holds that are not tied to a slot.
type Hold struct {
	ID        uuid.UUID
	UserID    string
	PetID     string
	ServiceID string
	Status    HoldStatus
	Date      string // YYYY-MM-DD, optional
	Quote     *Quote
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (h Hold) SlotBound() bool { return h.Date != "" }

func (h Hold) Lapsed(now time.Time) bool {
	return h.Status == HoldHeld && !now.Before(h.ExpiresAt)
}

type CartStatus string

const (
	CartActive     CartStatus = "active"
	CartCheckedOut CartStatus = "checked_out"
	// CartOrdered marks a checked out cart that has been converted to an
	// order; the conversion happens at most once per cart.
	CartOrdered   CartStatus = "ordered"
	CartExpired   CartStatus = "expired"
	CartCancelled CartStatus = "cancelled"
)

type Cart struct {
	ID        uuid.UUID
	UserID    string
	Status    CartStatus
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c Cart) Lapsed(now time.Time) bool {
	return c.Status == CartActive && !now.Before(c.ExpiresAt)
}

type CartItemKind string

const (
	ItemServiceBase  CartItemKind = "service_base"
	ItemServiceAddon CartItemKind = "service_addon"
	ItemProduct      CartItemKind = "product"
)

// Metadata keys carried by cart items.
const (
	MetaPetID         = "pet_id"
	MetaScheduledDate = "scheduled_date"
	MetaScheduledTime = "scheduled_time"
	MetaRequiresBase  = "requires_base"
)

type CartItem struct {
	ID             uuid.UUID
	CartID         uuid.UUID
	Kind           CartItemKind
	RefID          string
	Name           string
	Quantity       int
	UnitPriceCents int64 // 0 means no price configured
	Meta           map[string]string
}

type CartWithItems struct {
	Cart  Cart
	Items []CartItem
}

type OrderStatus string

const (
	OrderCreated   OrderStatus = "created"
	OrderAccepted  OrderStatus = "accepted"
	OrderOnTheWay  OrderStatus = "on_the_way"
	OrderInService OrderStatus = "in_service"
	OrderDone      OrderStatus = "done"
	OrderCancelled OrderStatus = "cancelled"
)

// OrderItem is a deep copy of a cart item taken at checkout time. It is
// never re-read from the cart afterwards.
type OrderItem struct {
	Kind           CartItemKind      `json:"kind"`
	RefID          string            `json:"ref_id"`
	Name           string            `json:"name"`
	Quantity       int               `json:"quantity"`
	UnitPriceCents int64             `json:"unit_price_cents"`
	Meta           map[string]string `json:"meta,omitempty"`
}

type Order struct {
	ID             uuid.UUID
	UserID         string
	Status         OrderStatus
	DeliveryStatus DeliveryStatus
	Items          []OrderItem
	TotalCents     int64
	Currency       string
	Address        json.RawMessage
	ProviderID     string // denormalized latest assignment
	ScheduledAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Assignment rows are append-only history; the order keeps a denormalized
// pointer to the latest one.
type Assignment struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProviderID  string
	ScheduledAt time.Time
	AssignedBy  string
	Notes       string
	CreatedAt   time.Time
}

type Provider struct {
	ID     string
	Name   string
	Active bool
}
