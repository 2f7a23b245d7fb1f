package httpgin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pawcall/pawcall/internal/auth"
	"github.com/pawcall/pawcall/internal/domain"
	"github.com/pawcall/pawcall/internal/repository"
	"github.com/pawcall/pawcall/internal/service"
)

func NewRouter(
	svcs *service.Services,
	verifier auth.TokenVerifier,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public catalog and availability reads
	r.GET("/services", handleListServices(svcs))
	r.GET("/services/:id", handleGetService(svcs))
	r.GET("/services/:id/slots", handleListSlots(svcs))
	r.GET("/services/:id/slots/:date", handleGetSlot(svcs))

	authed := r.Group("", AuthMiddleware(verifier))

	// Customer API
	customer := authed.Group("", RequireRole(auth.RoleCustomer))
	{
		customer.POST("/quotes", handleQuote(svcs))

		customer.POST("/holds", handleCreateHold(svcs))
		customer.GET("/holds/:id", handleGetHold(svcs))
		customer.POST("/holds/:id/confirm", handleConfirmHold(svcs))
		customer.POST("/holds/:id/cancel", handleCancelHold(svcs))

		customer.GET("/cart", handleGetActiveCart(svcs))
		customer.POST("/carts", handleCreateCart(svcs))
		customer.GET("/carts/:id", handleGetCart(svcs))
		customer.PUT("/carts/:id/items", handleReplaceItems(svcs))
		customer.POST("/carts/:id/items", handleAddItem(svcs))
		customer.DELETE("/carts/:id/items/:itemID", handleRemoveItem(svcs))
		customer.GET("/carts/:id/validate", handleValidateCart(svcs))
		customer.POST("/carts/:id/checkout", handleCheckout(svcs))

		customer.POST("/orders", handleCreateOrder(svcs))
		customer.GET("/orders", handleListOrders(svcs))
		customer.GET("/orders/:id", handleGetOrder(svcs))
	}

	// Operator back office
	admin := authed.Group("/admin", RequireRole(auth.RoleOperator))
	{
		admin.PUT("/services", handleUpsertService(svcs))
		admin.GET("/services/:id/price-rules", handleListPriceRules(svcs))
		admin.PUT("/price-rules", handleUpsertPriceRule(svcs))

		admin.POST("/slots", handleCreateSlot(svcs))
		admin.PATCH("/slots/:id/capacity", handleUpdateCapacity(svcs))
		admin.PATCH("/slots/:id/active", handleSetSlotActive(svcs))

		admin.GET("/orders", handleAdminListOrders(svcs))
		admin.GET("/orders/:id", handleAdminGetOrder(svcs))
		admin.GET("/orders/:id/assignments", handleListAssignments(svcs))
		admin.POST("/orders/:id/assign", handleAssignOrder(svcs))
		admin.POST("/orders/:id/cancel", handleCancelOrder(svcs))
		admin.PATCH("/orders/:id/delivery-status", handleSetDeliveryStatus(svcs))
	}

	// Provider app
	provider := authed.Group("/provider", RequireRole(auth.RoleProvider))
	{
		provider.GET("/orders", handleProviderListOrders(svcs))
		provider.POST("/orders/:id/accept", handleProviderStep(svcs.Order.Accept))
		provider.POST("/orders/:id/depart", handleProviderStep(svcs.Order.Depart))
		provider.POST("/orders/:id/arrive", handleProviderStep(svcs.Order.Arrive))
		provider.POST("/orders/:id/complete", handleProviderStep(svcs.Order.Complete))
	}

	return r
}

// --- Catalog ---

func handleListServices(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		activeOnly := c.DefaultQuery("active", "true") != "false"
		services, err := svcs.Catalog.ListServices(c.Request.Context(), activeOnly)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, services, "public, max-age=60", true)
	}
}

func handleGetService(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, err := svcs.Catalog.GetService(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, svc, "public, max-age=60", true)
	}
}

// --- Availability ---

func handleListSlots(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		days := parseIntDefault(c.Query("days"), 0)
		activeOnly := c.DefaultQuery("active", "true") != "false"

		slots, err := svcs.Availability.ListSlots(
			c.Request.Context(),
			c.Param("id"),
			c.Query("from"),
			days,
			activeOnly,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		out := make([]SlotResponse, 0, len(slots))
		for i := range slots {
			out = append(out, toSlotResponse(&slots[i]))
		}
		// short cache, capacity counters churn
		writeJSONWithCache(c, http.StatusOK, out, "public, max-age=15", true)
	}
}

func handleGetSlot(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		slot, err := svcs.Availability.GetSlot(c.Request.Context(), c.Param("id"), c.Param("date"))
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, toSlotResponse(slot), "public, max-age=15", true)
	}
}

// --- Quotes ---

func handleQuote(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req QuoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		quote, err := svcs.Pricing.Quote(c.Request.Context(), req.PetID, req.BaseServiceID, req.AddonIDs)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, quote)
	}
}

// --- Holds ---

func handleCreateHold(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateHoldRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		h, err := svcs.Hold.Create(
			c.Request.Context(),
			identity(c).SubjectID,
			req.PetID,
			req.ServiceID,
			req.Date,
			idemKey,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		if idemKey != "" {
			c.Header("Idempotency-Key", idemKey)
		}
		c.JSON(http.StatusCreated, toHoldResponse(h))
	}
}

func handleGetHold(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		h, err := svcs.Hold.Get(c.Request.Context(), identity(c).SubjectID, id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toHoldResponse(h))
	}
}

func handleConfirmHold(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		h, err := svcs.Hold.Confirm(c.Request.Context(), identity(c).SubjectID, id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toHoldResponse(h))
	}
}

func handleCancelHold(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		h, err := svcs.Hold.Cancel(c.Request.Context(), identity(c).SubjectID, id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toHoldResponse(h))
	}
}

// --- Carts ---

func handleGetActiveCart(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		cw, err := svcs.Cart.GetOrCreateActive(c.Request.Context(), identity(c).SubjectID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toCartResponse(cw))
	}
}

func handleCreateCart(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateCartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		cw, err := svcs.Cart.CreateWithItems(c.Request.Context(), identity(c).SubjectID, toDomainItems(req.Items))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, toCartResponse(cw))
	}
}

func handleGetCart(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		cw, err := svcs.Cart.Get(c.Request.Context(), identity(c).SubjectID, id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toCartResponse(cw))
	}
}

func handleReplaceItems(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req ReplaceItemsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		cw, err := svcs.Cart.ReplaceItems(c.Request.Context(), identity(c).SubjectID, id, toDomainItems(req.Items))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toCartResponse(cw))
	}
}

func handleAddItem(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req CartItemInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		cw, err := svcs.Cart.AddItem(c.Request.Context(), identity(c).SubjectID, id, req.toDomain())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toCartResponse(cw))
	}
}

func handleRemoveItem(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		itemID, err := uuid.Parse(c.Param("itemID"))
		if err != nil {
			badRequest(c, "invalid itemID")
			return
		}
		if err := svcs.Cart.RemoveItem(c.Request.Context(), identity(c).SubjectID, id, itemID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleValidateCart(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		res, err := svcs.Cart.Validate(c.Request.Context(), identity(c).SubjectID, id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func handleCheckout(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		ct, err := svcs.Cart.Checkout(c.Request.Context(), identity(c).SubjectID, id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"cart_id": ct.ID.String(),
			"status":  string(ct.Status),
		})
	}
}

// --- Orders (customer) ---

func handleCreateOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		cartID, err := uuid.Parse(req.CartID)
		if err != nil {
			badRequest(c, "invalid cart_id")
			return
		}
		o, err := svcs.Order.CreateFromCart(c.Request.Context(), identity(c).SubjectID, cartID, req.Address)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, toOrderResponse(o))
	}
}

func handleListOrders(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := parseIntDefault(c.Query("limit"), 50)
		offset := parseIntDefault(c.Query("offset"), 0)

		orders, err := svcs.Order.List(c.Request.Context(), identity(c).SubjectID, limit, offset)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toOrderResponses(orders))
	}
}

func handleGetOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		o, err := svcs.Order.Get(c.Request.Context(), identity(c).SubjectID, id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toOrderResponse(o))
	}
}

// --- Admin: catalog ---

func handleUpsertService(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpsertServiceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		active := true
		if req.Active != nil {
			active = *req.Active
		}
		err := svcs.Catalog.UpsertService(c.Request.Context(), domain.Service{
			ID:         req.ID,
			Name:       req.Name,
			Kind:       domain.ServiceKind(req.Kind),
			Species:    req.Species,
			BreedAllow: req.BreedAllow,
			Requires:   req.Requires,
			Active:     active,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": req.ID})
	}
}

func handleListPriceRules(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		rules, err := svcs.Catalog.ListPriceRules(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, rules)
	}
}

func handleUpsertPriceRule(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpsertPriceRuleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		active := true
		if req.Active != nil {
			active = *req.Active
		}
		rule, err := svcs.Catalog.UpsertPriceRule(c.Request.Context(), domain.PriceRule{
			ID:            req.ID,
			ServiceID:     req.ServiceID,
			Species:       req.Species,
			BreedCategory: req.BreedCategory,
			WeightMinKg:   req.WeightMinKg,
			WeightMaxKg:   req.WeightMaxKg,
			AmountCents:   req.AmountCents,
			Currency:      req.Currency,
			Active:        active,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, rule)
	}
}

// --- Admin: slots ---

func handleCreateSlot(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateSlotRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		slot, err := svcs.Availability.CreateSlot(c.Request.Context(), req.ServiceID, req.Date, req.Capacity)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, toSlotResponse(slot))
	}
}

func handleUpdateCapacity(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateCapacityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		slot, err := svcs.Availability.UpdateCapacity(c.Request.Context(), c.Param("id"), req.Capacity)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toSlotResponse(slot))
	}
}

func handleSetSlotActive(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SetActiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		slot, err := svcs.Availability.SetActive(c.Request.Context(), c.Param("id"), *req.Active)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toSlotResponse(slot))
	}
}

// --- Admin: orders ---

func handleAdminListOrders(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := repositoryFilter(c)
		orders, err := svcs.Order.AdminList(c.Request.Context(), f)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toOrderResponses(orders))
	}
}

func handleAdminGetOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		o, err := svcs.Order.AdminGet(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toOrderResponse(o))
	}
}

func handleListAssignments(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		history, err := svcs.Order.Assignments(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, history)
	}
}

func handleAssignOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req AssignOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		scheduledAt, err := parseRFC3339(req.ScheduledAt)
		if err != nil {
			badRequest(c, "invalid scheduled_at (RFC3339)")
			return
		}
		o, err := svcs.Order.Assign(
			c.Request.Context(),
			id,
			req.ProviderID,
			scheduledAt,
			identity(c).SubjectID,
			req.Notes,
		)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toOrderResponse(o))
	}
}

func handleCancelOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		o, err := svcs.Order.Cancel(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toOrderResponse(o))
	}
}

func handleSetDeliveryStatus(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req SetDeliveryStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		o, err := svcs.Order.SetDeliveryStatus(c.Request.Context(), id, domain.DeliveryStatus(req.DeliveryStatus))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toOrderResponse(o))
	}
}

// --- Provider ---

func handleProviderListOrders(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := parseIntDefault(c.Query("limit"), 50)
		offset := parseIntDefault(c.Query("offset"), 0)

		orders, err := svcs.Order.ProviderList(c.Request.Context(), identity(c).SubjectID, limit, offset)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toOrderResponses(orders))
	}
}

type providerStep func(ctx context.Context, orderID uuid.UUID, providerID string) (*domain.Order, error)

func handleProviderStep(step providerStep) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		o, err := step(c.Request.Context(), id, identity(c).SubjectID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toOrderResponse(o))
	}
}

// --- Helpers ---

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func toDomainItems(inputs []CartItemInput) []domain.CartItem {
	items := make([]domain.CartItem, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, in.toDomain())
	}
	return items
}

func toOrderResponses(orders []domain.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResponse(&orders[i]))
	}
	return out
}

func repositoryFilter(c *gin.Context) repository.OrderFilter {
	return repository.OrderFilter{
		Status:     domain.OrderStatus(c.Query("status")),
		ProviderID: c.Query("provider_id"),
		UserID:     c.Query("user_id"),
		Limit:      parseIntDefault(c.Query("limit"), 50),
		Offset:     parseIntDefault(c.Query("offset"), 0),
	}
}
