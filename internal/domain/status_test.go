package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return v
}

func TestCanTransitionHold(t *testing.T) {
	assert.True(t, CanTransitionHold(HoldHeld, HoldConfirmed))
	assert.True(t, CanTransitionHold(HoldHeld, HoldCancelled))
	assert.True(t, CanTransitionHold(HoldHeld, HoldExpired))

	for _, from := range []HoldStatus{HoldConfirmed, HoldCancelled, HoldExpired} {
		assert.False(t, CanTransitionHold(from, HoldConfirmed), "from %s", from)
		assert.False(t, CanTransitionHold(from, HoldCancelled), "from %s", from)
	}
}

func TestNextOrderStatus(t *testing.T) {
	chain := []OrderStatus{OrderCreated, OrderAccepted, OrderOnTheWay, OrderInService, OrderDone}
	for i := 0; i < len(chain)-1; i++ {
		next, ok := NextOrderStatus(chain[i])
		assert.True(t, ok)
		assert.Equal(t, chain[i+1], next)
	}

	_, ok := NextOrderStatus(OrderDone)
	assert.False(t, ok)
	_, ok = NextOrderStatus(OrderCancelled)
	assert.False(t, ok)
}

func TestCanCancelOrder(t *testing.T) {
	for _, s := range []OrderStatus{OrderCreated, OrderAccepted, OrderOnTheWay, OrderInService} {
		assert.True(t, CanCancelOrder(s), "from %s", s)
	}
	assert.False(t, CanCancelOrder(OrderDone))
	assert.False(t, CanCancelOrder(OrderCancelled))
}

func TestCanAdvanceDelivery(t *testing.T) {
	// skipping states forward is allowed
	assert.True(t, CanAdvanceDelivery(DeliveryCreated, DeliveryOnTheWay))
	assert.True(t, CanAdvanceDelivery(DeliveryCreated, DeliveryDelivered))
	// same rank is a no-op, not a regression
	assert.True(t, CanAdvanceDelivery(DeliveryOnTheWay, DeliveryOnTheWay))
	// rank never decreases
	assert.False(t, CanAdvanceDelivery(DeliveryDelivered, DeliveryOnTheWay))
	assert.False(t, CanAdvanceDelivery(DeliveryInProcess, DeliveryCreated))
	// unknown statuses never pass
	assert.False(t, CanAdvanceDelivery(DeliveryCreated, DeliveryStatus("lost")))
	assert.False(t, CanAdvanceDelivery(DeliveryStatus(""), DeliveryDelivered))
}

func TestPriceRuleMatches(t *testing.T) {
	rule := PriceRule{
		Species:       "dog",
		BreedCategory: "small",
		WeightMinKg:   5,
		WeightMaxKg:   10,
		Active:        true,
	}

	assert.True(t, rule.Matches("dog", "small", 5))  // min inclusive
	assert.True(t, rule.Matches("dog", "small", 9.9))
	assert.False(t, rule.Matches("dog", "small", 10)) // max exclusive
	assert.False(t, rule.Matches("dog", "small", 4.5))
	assert.False(t, rule.Matches("cat", "small", 7))
	assert.False(t, rule.Matches("dog", "large", 7))

	rule.Active = false
	assert.False(t, rule.Matches("dog", "small", 7))

	unbounded := PriceRule{Species: "dog", BreedCategory: "large", WeightMinKg: 25, Active: true}
	assert.True(t, unbounded.Matches("dog", "large", 80))
}

func TestHoldLapsed(t *testing.T) {
	now := mustTime(t, "2026-09-01T12:00:00Z")
	h := Hold{Status: HoldHeld, ExpiresAt: now}

	assert.True(t, h.Lapsed(now))
	assert.False(t, h.Lapsed(now.Add(-1)))

	h.Status = HoldConfirmed
	assert.False(t, h.Lapsed(now), "terminal holds never lapse")
}
