// Package order implements the post-checkout lifecycle: creation from a
// checked out cart with an immutable item snapshot, operator assignment to
// providers, the provider-gated fulfillment chain, cancellation, and the
// parallel ranked delivery-status track.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pawcall/pawcall/internal/domain"
	"github.com/pawcall/pawcall/internal/notification"
	"github.com/pawcall/pawcall/internal/repository"
	"github.com/pawcall/pawcall/internal/uow"
)

type Config struct {
	// Currency used when no priced item supplies one.
	Currency string
}

type Service struct {
	stores   repository.Stores
	uow      *uow.UoW
	notifier notification.Notifier
	logger   *slog.Logger
	cfg      Config
	now      func() time.Time
}

func New(
	stores repository.Stores,
	u *uow.UoW,
	notifier notification.Notifier,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &Service{
		stores:   stores,
		uow:      u,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// CreateFromCart turns a checked out cart into an order. Items are deep
// copied into the order at this moment and never re-read from the cart:
// later cart mutations cannot leak into the order.
func (s *Service) CreateFromCart(ctx context.Context, userID string, cartID uuid.UUID, address json.RawMessage) (*domain.Order, error) {
	const op = "service.order.Service.CreateFromCart"

	now := s.now().UTC()
	order := domain.Order{
		ID:             uuid.New(),
		UserID:         userID,
		Status:         domain.OrderCreated,
		DeliveryStatus: domain.DeliveryCreated,
		Currency:       s.cfg.Currency,
		Address:        address,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Stores, after func(uow.AfterCommit)) error {
		cart, err := tx.Carts().GetByID(ctx, cartID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrCartNotFound
			}
			return err
		}
		if cart.UserID != userID {
			return ErrNotOwner
		}
		switch cart.Status {
		case domain.CartOrdered:
			return ErrCartConsumed
		case domain.CartCheckedOut:
		default:
			return ErrCartNotCheckedOut
		}

		items, err := tx.Carts().ListItems(ctx, cartID)
		if err != nil {
			return err
		}
		for _, it := range items {
			order.Items = append(order.Items, snapshot(it))
			if it.UnitPriceCents > 0 {
				order.TotalCents += it.UnitPriceCents * int64(it.Quantity)
			}
		}

		// Consume the cart so a retried request cannot mint a second order
		// from the same items.
		ok, err := tx.Carts().SetStatus(ctx, cartID, domain.CartCheckedOut, domain.CartOrdered)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCartConsumed
		}

		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		after(func(ctx context.Context) {
			s.notify(ctx, userID, notification.TypeOrderCreated, "Order placed",
				"We received your order and will assign a caretaker shortly.",
				map[string]any{"order_id": order.ID.String()})
		})
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrCartNotFound),
			errors.Is(err, ErrNotOwner),
			errors.Is(err, ErrCartNotCheckedOut),
			errors.Is(err, ErrCartConsumed):
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &order, nil
}

// Get returns the caller's own order.
func (s *Service) Get(ctx context.Context, userID string, id uuid.UUID) (*domain.Order, error) {
	const op = "service.order.Service.Get"

	order, err := s.fetch(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrNotOwner
	}
	return order, nil
}

// List returns the caller's orders, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]domain.Order, error) {
	const op = "service.order.Service.List"

	orders, err := s.stores.Orders().List(ctx, repository.OrderFilter{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

// AdminGet returns any order without ownership scoping.
func (s *Service) AdminGet(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	const op = "service.order.Service.AdminGet"
	return s.fetch(ctx, op, id)
}

// AdminList returns orders matching the filter for back-office views.
func (s *Service) AdminList(ctx context.Context, f repository.OrderFilter) ([]domain.Order, error) {
	const op = "service.order.Service.AdminList"

	orders, err := s.stores.Orders().List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

// ProviderList returns orders currently assigned to the provider.
func (s *Service) ProviderList(ctx context.Context, providerID string, limit, offset int) ([]domain.Order, error) {
	const op = "service.order.Service.ProviderList"

	orders, err := s.stores.Orders().List(ctx, repository.OrderFilter{
		ProviderID: providerID,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

// Assign records an assignment of the order to a provider. Reassignment is
// allowed any time before the order closes; history is append-only and the
// order keeps a pointer to the latest row.
func (s *Service) Assign(ctx context.Context, orderID uuid.UUID, providerID string, scheduledAt time.Time, assignedBy, notes string) (*domain.Order, error) {
	const op = "service.order.Service.Assign"

	var assigned *domain.Order
	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Stores, after func(uow.AfterCommit)) error {
		order, err := tx.Orders().GetByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if order.Status.Terminal() {
			return ErrOrderClosed
		}

		provider, err := tx.Providers().GetByID(ctx, providerID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrProviderNotFound
			}
			return err
		}
		if !provider.Active {
			return ErrProviderInactive
		}

		a := domain.Assignment{
			ID:          uuid.New(),
			OrderID:     orderID,
			ProviderID:  providerID,
			ScheduledAt: scheduledAt.UTC(),
			AssignedBy:  assignedBy,
			Notes:       notes,
			CreatedAt:   s.now().UTC(),
		}
		if err := tx.Orders().AddAssignment(ctx, a); err != nil {
			return err
		}
		if err := tx.Orders().SetCurrentAssignment(ctx, orderID, providerID, a.ScheduledAt); err != nil {
			return err
		}

		order.ProviderID = providerID
		order.ScheduledAt = &a.ScheduledAt
		assigned = order
		after(func(ctx context.Context) {
			s.notify(ctx, order.UserID, notification.TypeOrderAssigned, "Caretaker assigned",
				"A caretaker has been assigned to your order.",
				map[string]any{"order_id": orderID.String(), "provider_id": providerID})
		})
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound),
			errors.Is(err, ErrOrderClosed),
			errors.Is(err, ErrProviderNotFound),
			errors.Is(err, ErrProviderInactive):
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return assigned, nil
}

// Accept moves created -> accepted. Only the assigned provider may call it.
func (s *Service) Accept(ctx context.Context, orderID uuid.UUID, providerID string) (*domain.Order, error) {
	return s.advance(ctx, "service.order.Service.Accept", orderID, providerID, domain.OrderAccepted)
}

// Depart moves accepted -> on_the_way.
func (s *Service) Depart(ctx context.Context, orderID uuid.UUID, providerID string) (*domain.Order, error) {
	return s.advance(ctx, "service.order.Service.Depart", orderID, providerID, domain.OrderOnTheWay)
}

// Arrive moves on_the_way -> in_service.
func (s *Service) Arrive(ctx context.Context, orderID uuid.UUID, providerID string) (*domain.Order, error) {
	return s.advance(ctx, "service.order.Service.Arrive", orderID, providerID, domain.OrderInService)
}

// Complete moves in_service -> done.
func (s *Service) Complete(ctx context.Context, orderID uuid.UUID, providerID string) (*domain.Order, error) {
	return s.advance(ctx, "service.order.Service.Complete", orderID, providerID, domain.OrderDone)
}

// Cancel closes the order from any non-terminal state. Cancelling an
// already cancelled order is idempotent; a done order cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	const op = "service.order.Service.Cancel"

	var cancelled *domain.Order
	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Stores, after func(uow.AfterCommit)) error {
		order, err := tx.Orders().GetByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if order.Status == domain.OrderCancelled {
			cancelled = order
			return nil
		}
		if !domain.CanCancelOrder(order.Status) {
			return ErrOrderClosed
		}

		ok, err := tx.Orders().SetStatus(ctx, orderID, order.Status, domain.OrderCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.TransitionError{Current: string(order.Status), Attempted: string(domain.OrderCancelled)}
		}

		order.Status = domain.OrderCancelled
		cancelled = order
		after(func(ctx context.Context) {
			s.notify(ctx, order.UserID, notification.TypeOrderCancel, "Order cancelled",
				"Your order has been cancelled.",
				map[string]any{"order_id": orderID.String()})
		})
		return nil
	})
	if err != nil {
		var terr *domain.TransitionError
		if errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrOrderClosed) || errors.As(err, &terr) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cancelled, nil
}

// SetDeliveryStatus advances the ranked delivery track. Unlike the
// fulfillment chain it may skip states, but the rank never decreases.
func (s *Service) SetDeliveryStatus(ctx context.Context, orderID uuid.UUID, to domain.DeliveryStatus) (*domain.Order, error) {
	const op = "service.order.Service.SetDeliveryStatus"

	if !to.Valid() {
		return nil, ErrBadDeliveryStatus
	}

	var updated *domain.Order
	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Stores, after func(uow.AfterCommit)) error {
		order, err := tx.Orders().GetByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if !domain.CanAdvanceDelivery(order.DeliveryStatus, to) {
			return &domain.TransitionError{Current: string(order.DeliveryStatus), Attempted: string(to)}
		}
		if err := tx.Orders().SetDeliveryStatus(ctx, orderID, to); err != nil {
			return err
		}

		order.DeliveryStatus = to
		updated = order
		after(func(ctx context.Context) {
			s.notify(ctx, order.UserID, notification.TypeOrderStatus, "Delivery update",
				"Your order delivery status changed to "+string(to)+".",
				map[string]any{"order_id": orderID.String(), "delivery_status": string(to)})
		})
		return nil
	})
	if err != nil {
		var terr *domain.TransitionError
		if errors.Is(err, ErrOrderNotFound) || errors.As(err, &terr) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

// Assignments returns the append-only assignment history of an order.
func (s *Service) Assignments(ctx context.Context, orderID uuid.UUID) ([]domain.Assignment, error) {
	const op = "service.order.Service.Assignments"

	if _, err := s.fetch(ctx, op, orderID); err != nil {
		return nil, err
	}
	history, err := s.stores.Orders().ListAssignments(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return history, nil
}

// advance performs one provider-gated single step of the fulfillment chain.
func (s *Service) advance(ctx context.Context, op string, orderID uuid.UUID, providerID string, target domain.OrderStatus) (*domain.Order, error) {
	var updated *domain.Order
	err := s.uow.Do(ctx, func(ctx context.Context, tx repository.Stores, after func(uow.AfterCommit)) error {
		order, err := tx.Orders().GetByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if order.ProviderID == "" || order.ProviderID != providerID {
			return ErrNotAssignedToYou
		}
		next, ok := domain.NextOrderStatus(order.Status)
		if !ok || next != target {
			return &domain.TransitionError{Current: string(order.Status), Attempted: string(target)}
		}

		applied, err := tx.Orders().SetStatus(ctx, orderID, order.Status, target)
		if err != nil {
			return err
		}
		if !applied {
			return &domain.TransitionError{Current: string(order.Status), Attempted: string(target)}
		}

		order.Status = target
		updated = order
		after(func(ctx context.Context) {
			s.notify(ctx, order.UserID, notification.TypeOrderStatus, "Order update",
				"Your order moved to "+string(target)+".",
				map[string]any{"order_id": orderID.String(), "status": string(target)})
		})
		return nil
	})
	if err != nil {
		var terr *domain.TransitionError
		if errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrNotAssignedToYou) || errors.As(err, &terr) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return updated, nil
}

func (s *Service) fetch(ctx context.Context, op string, id uuid.UUID) (*domain.Order, error) {
	order, err := s.stores.Orders().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return order, nil
}

func (s *Service) notify(ctx context.Context, userID, typ, title, body string, data map[string]any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, typ, title, body, data); err != nil {
		s.logger.Warn("notification delivery failed",
			slog.String("type", typ),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// snapshot deep copies a cart item, including its metadata map, so the order
// keeps its own copy.
func snapshot(it domain.CartItem) domain.OrderItem {
	var meta map[string]string
	if len(it.Meta) > 0 {
		meta = make(map[string]string, len(it.Meta))
		for k, v := range it.Meta {
			meta[k] = v
		}
	}
	return domain.OrderItem{
		Kind:           it.Kind,
		RefID:          it.RefID,
		Name:           it.Name,
		Quantity:       it.Quantity,
		UnitPriceCents: it.UnitPriceCents,
		Meta:           meta,
	}
}
