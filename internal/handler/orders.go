package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tabemono-pos/api/internal/auth"
	"github.com/tabemono-pos/api/internal/database"
	"github.com/tabemono-pos/api/internal/enum"
	"github.com/tabemono-pos/api/internal/middleware"
	"github.com/tabemono-pos/api/internal/redisx"
	"github.com/tabemono-pos/api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderDetail, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*service.OrderDetail, error)
	ListOrders(ctx context.Context, storeID uuid.UUID, from, to time.Time) ([]database.Order, error)
	ListTodayOrders(ctx context.Context, storeID uuid.UUID) ([]database.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) (database.Order, error)
	UpdateOrderCoupons(ctx context.Context, req service.UpdateCouponsRequest) (*service.OrderDetail, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	AddOrderLine(ctx context.Context, orderID uuid.UUID, line service.LineRequest) (*service.OrderDetail, error)
	RemoveOrderLine(ctx context.Context, orderID, instanceID uuid.UUID) (*service.OrderDetail, error)
}

// IdempotencyKeys remembers which order an Idempotency-Key produced.
// Satisfied by *redisx.Idempotency.
type IdempotencyKeys interface {
	Claim(ctx context.Context, storeID uuid.UUID, key string) (uuid.UUID, error)
	Complete(ctx context.Context, storeID uuid.UUID, key string, orderID uuid.UUID) error
	Release(ctx context.Context, storeID uuid.UUID, key string) error
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc  OrderServicer
	idem IdempotencyKeys // nil disables Idempotency-Key handling
}

func NewOrderHandler(svc OrderServicer, idem IdempotencyKeys) *OrderHandler {
	return &OrderHandler{svc: svc, idem: idem}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a store-scoped subrouter: /stores/{sid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/today", h.ListToday)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Put("/{id}/coupons", h.UpdateCoupons)
	r.Post("/{id}/lines", h.AddLine)
	r.Delete("/{id}/lines/{iid}", h.RemoveLine)
}

// RegisterCustomerRoutes registers self-service ordering for customers.
// Mounted at /me.
func (h *OrderHandler) RegisterCustomerRoutes(r chi.Router) {
	r.Use(middleware.RequireRole(enum.UserRoleCustomer))
	r.Post("/stores/{sid}/orders", h.Checkout)
	r.Get("/orders/{id}", h.GetOwn)
	r.Put("/orders/{id}/coupons", h.UpdateOwnCoupons)
}

// --- Request / Response types ---

type createOrderRequest struct {
	Platform            string        `json:"platform"`
	PickupMethod        string        `json:"pickup_method" validate:"required"`
	PaymentMethod       string        `json:"payment_method" validate:"required"`
	OnlinePaymentCode   string        `json:"online_payment_code" validate:"max=64"`
	TableNumber         string        `json:"table_number" validate:"max=16"`
	Remarks             string        `json:"remarks" validate:"max=500"`
	DeliveryAddress     string        `json:"delivery_address" validate:"max=500"`
	ScheduledPickupTime *time.Time    `json:"scheduled_pickup_time"`
	CustomerID          string        `json:"customer_id" validate:"omitempty,uuid"`
	ManualDiscount      string        `json:"manual_discount"`
	PointsDiscount      string        `json:"points_discount"`
	DeliveryFee         string        `json:"delivery_fee"`
	Lines               []lineRequest `json:"lines" validate:"required,min=1,dive"`
	Coupons             []string      `json:"coupons" validate:"dive,uuid"`
}

type lineRequest struct {
	TemplateID          string             `json:"template_id" validate:"required,uuid"`
	Quantity            int32              `json:"quantity" validate:"gt=0"`
	OptionIDs           []string           `json:"option_ids" validate:"dive,uuid"`
	SpecialInstructions string             `json:"special_instructions" validate:"max=500"`
	Items               []comboItemRequest `json:"items" validate:"dive"`
}

type comboItemRequest struct {
	DishTemplateID string   `json:"dish_template_id" validate:"required,uuid"`
	OptionIDs      []string `json:"option_ids" validate:"dive,uuid"`
	CreateInstance bool     `json:"create_instance"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type updateCouponsRequest struct {
	Coupons []string `json:"coupons" validate:"dive,uuid"`
}

type orderResponse struct {
	ID                  uuid.UUID  `json:"id"`
	StoreID             uuid.UUID  `json:"store_id"`
	OrderNumber         int32      `json:"order_number"`
	BusinessDate        string     `json:"business_date"`
	Weekday             string     `json:"weekday"`
	Platform            string     `json:"platform"`
	PickupMethod        string     `json:"pickup_method"`
	PaymentMethod       string     `json:"payment_method"`
	OnlinePaymentCode   *string    `json:"online_payment_code"`
	OrderAmount         string     `json:"order_amount"`
	ManualDiscount      string     `json:"manual_discount"`
	Discounts           string     `json:"discounts"`
	PointsDiscount      string     `json:"points_discount"`
	DeliveryFee         string     `json:"delivery_fee"`
	TotalMoney          string     `json:"total_money"`
	Status              string     `json:"status"`
	TableNumber         *string    `json:"table_number"`
	Remarks             *string    `json:"remarks"`
	DeliveryAddress     *string    `json:"delivery_address"`
	ScheduledPickupTime *time.Time `json:"scheduled_pickup_time"`
	CustomerID          *uuid.UUID `json:"customer_id"`
	AppliedCoupons      []string   `json:"applied_coupons"`
	CreatedBy           *uuid.UUID `json:"created_by"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

type orderDetailResponse struct {
	orderResponse
	Lines []orderLineResponse `json:"lines"`
}

type orderLineResponse struct {
	InstanceID          uuid.UUID          `json:"instance_id"`
	Kind                string             `json:"kind"`
	TemplateID          uuid.UUID          `json:"template_id"`
	Name                string             `json:"name"`
	Quantity            int32              `json:"quantity"`
	BasePrice           string             `json:"base_price"`
	FinalPrice          string             `json:"final_price"`
	LineTotal           string             `json:"line_total"`
	SpecialInstructions *string            `json:"special_instructions"`
	Options             json.RawMessage    `json:"options"`
	Items               json.RawMessage    `json:"items"`
	Children            []instanceResponse `json:"children"`
}

type instanceResponse struct {
	ID         uuid.UUID       `json:"id"`
	TemplateID uuid.UUID       `json:"template_id"`
	Name       string          `json:"name"`
	FinalPrice string          `json:"final_price"`
	Options    json.RawMessage `json:"options"`
}

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:                o.ID,
		StoreID:           o.StoreID,
		OrderNumber:       o.OrderNumber,
		Weekday:           o.Weekday,
		Platform:          o.Platform,
		PickupMethod:      o.PickupMethod,
		PaymentMethod:     o.PaymentMethod,
		OnlinePaymentCode: textPtr(o.OnlinePaymentCode),
		OrderAmount:       money(o.OrderAmount),
		ManualDiscount:    money(o.ManualDiscount),
		Discounts:         money(o.Discounts),
		PointsDiscount:    money(o.PointsDiscount),
		DeliveryFee:       money(o.DeliveryFee),
		TotalMoney:        money(o.TotalMoney),
		Status:            string(o.Status),
		TableNumber:       textPtr(o.TableNumber),
		Remarks:           textPtr(o.Remarks),
		DeliveryAddress:   textPtr(o.DeliveryAddress),
		CustomerID:        uuidPtr(o.CustomerID),
		AppliedCoupons:    make([]string, len(o.AppliedCoupons)),
		CreatedBy:         uuidPtr(o.CreatedBy),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	if o.BusinessDate.Valid {
		resp.BusinessDate = o.BusinessDate.Time.Format(dateLayout)
	}
	if o.ScheduledPickupTime.Valid {
		t := o.ScheduledPickupTime.Time
		resp.ScheduledPickupTime = &t
	}
	for i, c := range o.AppliedCoupons {
		resp.AppliedCoupons[i] = c.String()
	}
	return resp
}

func rawJSON(b []byte) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(b)
}

func toOrderDetailResponse(d *service.OrderDetail) orderDetailResponse {
	resp := orderDetailResponse{
		orderResponse: toOrderResponse(d.Order),
		Lines:         make([]orderLineResponse, len(d.Lines)),
	}
	for i, l := range d.Lines {
		children := make([]instanceResponse, len(l.Children))
		for j, c := range l.Children {
			children[j] = instanceResponse{
				ID:         c.ID,
				TemplateID: c.TemplateID,
				Name:       c.Name,
				FinalPrice: money(c.FinalPrice),
				Options:    rawJSON(c.Options),
			}
		}
		resp.Lines[i] = orderLineResponse{
			InstanceID:          l.Instance.ID,
			Kind:                string(l.Instance.Kind),
			TemplateID:          l.Instance.TemplateID,
			Name:                l.Instance.Name,
			Quantity:            l.Item.Quantity,
			BasePrice:           money(l.Instance.BasePrice),
			FinalPrice:          money(l.Instance.FinalPrice),
			LineTotal:           money(l.Item.LineTotal),
			SpecialInstructions: textPtr(l.Instance.SpecialInstructions),
			Options:             rawJSON(l.Instance.Options),
			Items:               rawJSON(l.Instance.Items),
			Children:            children,
		}
	}
	return resp
}

func toOrderList(orders []database.Order) []orderResponse {
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	return resp
}

func toLineRequest(l lineRequest) (service.LineRequest, error) {
	templateID, err := uuid.Parse(l.TemplateID)
	if err != nil {
		return service.LineRequest{}, fmt.Errorf("invalid template_id")
	}
	optionIDs, err := parseUUIDs(l.OptionIDs)
	if err != nil {
		return service.LineRequest{}, err
	}
	items := make([]service.ComboItemRequest, len(l.Items))
	for i, it := range l.Items {
		dishID, err := uuid.Parse(it.DishTemplateID)
		if err != nil {
			return service.LineRequest{}, fmt.Errorf("invalid dish_template_id")
		}
		opts, err := parseUUIDs(it.OptionIDs)
		if err != nil {
			return service.LineRequest{}, err
		}
		items[i] = service.ComboItemRequest{DishTemplateID: dishID, OptionIDs: opts, CreateInstance: it.CreateInstance}
	}
	return service.LineRequest{
		TemplateID:          templateID,
		Quantity:            l.Quantity,
		OptionIDs:           optionIDs,
		SpecialInstructions: l.SpecialInstructions,
		Items:               items,
	}, nil
}

func (req createOrderRequest) toService(storeID, createdBy uuid.UUID) (service.CreateOrderRequest, error) {
	out := service.CreateOrderRequest{
		StoreID:             storeID,
		CreatedBy:           createdBy,
		Platform:            req.Platform,
		PickupMethod:        req.PickupMethod,
		PaymentMethod:       req.PaymentMethod,
		OnlinePaymentCode:   req.OnlinePaymentCode,
		TableNumber:         req.TableNumber,
		Remarks:             req.Remarks,
		DeliveryAddress:     req.DeliveryAddress,
		ScheduledPickupTime: req.ScheduledPickupTime,
	}

	var err error
	if out.CustomerID, err = parseOptionalUUID(req.CustomerID); err != nil {
		return out, fmt.Errorf("invalid customer_id")
	}
	if out.ManualDiscount, err = parseMoney(req.ManualDiscount); err != nil {
		return out, fmt.Errorf("invalid manual_discount")
	}
	if out.PointsDiscount, err = parseMoney(req.PointsDiscount); err != nil {
		return out, fmt.Errorf("invalid points_discount")
	}
	if out.DeliveryFee, err = parseMoney(req.DeliveryFee); err != nil {
		return out, fmt.Errorf("invalid delivery_fee")
	}
	if out.Coupons, err = parseUUIDs(req.Coupons); err != nil {
		return out, err
	}
	out.Lines = make([]service.LineRequest, len(req.Lines))
	for i, l := range req.Lines {
		line, err := toLineRequest(l)
		if err != nil {
			return out, fmt.Errorf("lines[%d]: %w", i, err)
		}
		out.Lines[i] = line
	}
	return out, nil
}

// --- Handlers ---

// Create handles POST /stores/{sid}/orders for store staff.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	storeID, ok := urlUUID(w, r, "sid", "store")
	if !ok {
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	svcReq, err := req.toService(storeID, claims.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.place(w, r, storeID, svcReq)
}

// Checkout handles POST /me/stores/{sid}/orders. The order is placed online
// on behalf of the authenticated customer, who also owns its coupons.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	storeID, ok := urlUUID(w, r, "sid", "store")
	if !ok {
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	svcReq, err := req.toService(storeID, uuid.Nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if svcReq.CustomerID != uuid.Nil && svcReq.CustomerID != claims.UserID {
		writeError(w, http.StatusForbidden, "cannot order for another customer")
		return
	}
	if !svcReq.ManualDiscount.IsZero() || !svcReq.PointsDiscount.IsZero() {
		writeError(w, http.StatusBadRequest, "discounts are applied by store staff")
		return
	}
	svcReq.CustomerID = claims.UserID
	svcReq.Platform = enum.PlatformOnline
	h.place(w, r, storeID, svcReq)
}

// place creates the order. With an Idempotency-Key header a replayed request
// returns the order created by the first one.
func (h *OrderHandler) place(w http.ResponseWriter, r *http.Request, storeID uuid.UUID, svcReq service.CreateOrderRequest) {
	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idem != nil {
		existing, err := h.idem.Claim(r.Context(), storeID, key)
		switch {
		case errors.Is(err, redisx.ErrInFlight):
			writeError(w, http.StatusConflict, "a request with this Idempotency-Key is in progress")
			return
		case err != nil:
			log.Printf("ERROR: claim idempotency key: %v", err)
			writeError(w, http.StatusServiceUnavailable, "please retry")
			return
		case existing != uuid.Nil:
			detail, err := h.svc.GetOrder(r.Context(), existing)
			if err != nil {
				writeServiceError(w, "replay order", err)
				return
			}
			writeData(w, http.StatusOK, toOrderDetailResponse(detail))
			return
		}
	} else {
		key = ""
	}

	detail, err := h.svc.CreateOrder(r.Context(), svcReq)
	if err != nil {
		if key != "" {
			if rerr := h.idem.Release(r.Context(), storeID, key); rerr != nil {
				log.Printf("WARN: release idempotency key: %v", rerr)
			}
		}
		writeServiceError(w, "create order", err)
		return
	}

	if key != "" {
		if err := h.idem.Complete(r.Context(), storeID, key, detail.Order.ID); err != nil {
			log.Printf("WARN: complete idempotency key: %v", err)
		}
	}

	writeData(w, http.StatusCreated, toOrderDetailResponse(detail))
}

// List handles GET /stores/{sid}/orders?from=RFC3339&to=RFC3339.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	storeID, ok := urlUUID(w, r, "sid", "store")
	if !ok {
		return
	}

	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be an RFC3339 timestamp")
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be an RFC3339 timestamp")
		return
	}

	orders, err := h.svc.ListOrders(r.Context(), storeID, from, to)
	if err != nil {
		writeServiceError(w, "list orders", err)
		return
	}
	writeData(w, http.StatusOK, toOrderList(orders))
}

// ListToday handles GET /stores/{sid}/orders/today.
func (h *OrderHandler) ListToday(w http.ResponseWriter, r *http.Request) {
	storeID, ok := urlUUID(w, r, "sid", "store")
	if !ok {
		return
	}
	orders, err := h.svc.ListTodayOrders(r.Context(), storeID)
	if err != nil {
		writeServiceError(w, "list today orders", err)
		return
	}
	writeData(w, http.StatusOK, toOrderList(orders))
}

// loadOrder fetches the order named in the URL and checks it belongs to the
// store in the URL. Orders of other stores are reported as not found.
func (h *OrderHandler) loadOrder(w http.ResponseWriter, r *http.Request) (*service.OrderDetail, bool) {
	storeID, ok := urlUUID(w, r, "sid", "store")
	if !ok {
		return nil, false
	}
	orderID, ok := urlUUID(w, r, "id", "order")
	if !ok {
		return nil, false
	}
	detail, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, "get order", err)
		return nil, false
	}
	if detail.Order.StoreID != storeID {
		writeError(w, http.StatusNotFound, service.ErrOrderNotFound.Error())
		return nil, false
	}
	return detail, true
}

// Get handles GET /stores/{sid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, toOrderDetailResponse(detail))
}

// Delete handles DELETE /stores/{sid}/orders/{id}.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	detail, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteOrder(r.Context(), detail.Order.ID); err != nil {
		writeServiceError(w, "delete order", err)
		return
	}
	writeData(w, http.StatusOK, map[string]uuid.UUID{"id": detail.Order.ID})
}

// UpdateStatus handles PATCH /stores/{sid}/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	detail, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	order, err := h.svc.UpdateOrderStatus(r.Context(), detail.Order.ID, req.Status)
	if err != nil {
		writeServiceError(w, "update order status", err)
		return
	}
	writeData(w, http.StatusOK, toOrderResponse(order))
}

// UpdateCoupons handles PUT /stores/{sid}/orders/{id}/coupons.
func (h *OrderHandler) UpdateCoupons(w http.ResponseWriter, r *http.Request) {
	detail, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	var req updateCouponsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	coupons, err := parseUUIDs(req.Coupons)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.svc.UpdateOrderCoupons(r.Context(), service.UpdateCouponsRequest{
		OrderID: detail.Order.ID,
		Coupons: coupons,
		Actor:   actor(middleware.ClaimsFromContext(r.Context())),
	})
	if err != nil {
		writeServiceError(w, "update order coupons", err)
		return
	}
	writeData(w, http.StatusOK, toOrderDetailResponse(updated))
}

// GetOwn handles GET /me/orders/{id}.
func (h *OrderHandler) GetOwn(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id", "order")
	if !ok {
		return
	}
	detail, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, "get order", err)
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if !detail.Order.CustomerID.Valid || uuid.UUID(detail.Order.CustomerID.Bytes) != claims.UserID {
		writeServiceError(w, "get order", service.ErrOrderNotOwned)
		return
	}
	writeData(w, http.StatusOK, toOrderDetailResponse(detail))
}

// UpdateOwnCoupons handles PUT /me/orders/{id}/coupons. The service refuses
// orders placed for another customer.
func (h *OrderHandler) UpdateOwnCoupons(w http.ResponseWriter, r *http.Request) {
	orderID, ok := urlUUID(w, r, "id", "order")
	if !ok {
		return
	}
	var req updateCouponsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	coupons, err := parseUUIDs(req.Coupons)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.svc.UpdateOrderCoupons(r.Context(), service.UpdateCouponsRequest{
		OrderID: orderID,
		Coupons: coupons,
		Actor:   middleware.ClaimsFromContext(r.Context()).UserID,
	})
	if err != nil {
		writeServiceError(w, "update order coupons", err)
		return
	}
	writeData(w, http.StatusOK, toOrderDetailResponse(updated))
}

// actor is the customer acting on an order, uuid.Nil for store staff.
func actor(claims *auth.Claims) uuid.UUID {
	if claims == nil || claims.Role != enum.UserRoleCustomer {
		return uuid.Nil
	}
	return claims.UserID
}

// AddLine handles POST /stores/{sid}/orders/{id}/lines.
func (h *OrderHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	detail, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	var req lineRequest
	if !decodeBody(w, r, &req) {
		return
	}
	line, err := toLineRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.svc.AddOrderLine(r.Context(), detail.Order.ID, line)
	if err != nil {
		writeServiceError(w, "add order line", err)
		return
	}
	writeData(w, http.StatusCreated, toOrderDetailResponse(updated))
}

// RemoveLine handles DELETE /stores/{sid}/orders/{id}/lines/{iid}.
func (h *OrderHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	detail, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	instanceID, ok := urlUUID(w, r, "iid", "line")
	if !ok {
		return
	}
	updated, err := h.svc.RemoveOrderLine(r.Context(), detail.Order.ID, instanceID)
	if err != nil {
		writeServiceError(w, "remove order line", err)
		return
	}
	writeData(w, http.StatusOK, toOrderDetailResponse(updated))
}
