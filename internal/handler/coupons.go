package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tabemono-pos/api/internal/database"
	"github.com/tabemono-pos/api/internal/enum"
	"github.com/tabemono-pos/api/internal/middleware"
	"github.com/tabemono-pos/api/internal/service"
)

// CouponServicer defines the coupon operations needed by coupon handlers.
// Satisfied by *service.CouponService.
type CouponServicer interface {
	Purchase(ctx context.Context, templateID, customerID uuid.UUID) (database.CouponInstance, error)
	Issue(ctx context.Context, templateID, customerID uuid.UUID, method string) (database.CouponInstance, error)
	GetCoupon(ctx context.Context, id uuid.UUID) (database.CouponInstance, error)
	ListCustomerCoupons(ctx context.Context, customerID uuid.UUID) ([]database.CouponInstance, error)
	ListUsableCoupons(ctx context.Context, customerID uuid.UUID) ([]database.CouponInstance, error)

	CreateTemplate(ctx context.Context, in service.CouponTemplateInput) (database.CouponTemplate, error)
	UpdateTemplate(ctx context.Context, id uuid.UUID, in service.CouponTemplateInput) (database.CouponTemplate, error)
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
	ListTemplates(ctx context.Context) ([]database.CouponTemplate, error)
}

// CouponHandler handles coupon templates and customer coupons.
type CouponHandler struct {
	svc CouponServicer
}

func NewCouponHandler(svc CouponServicer) *CouponHandler {
	return &CouponHandler{svc: svc}
}

// RegisterRoutes registers coupon endpoints. Mounted at /coupons behind
// Authenticate.
func (h *CouponHandler) RegisterRoutes(r chi.Router) {
	r.Get("/templates", h.ListTemplates)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.UserRoleAdmin))
		r.Post("/templates", h.CreateTemplate)
		r.Put("/templates/{id}", h.UpdateTemplate)
		r.Delete("/templates/{id}", h.DeleteTemplate)
		r.Post("/templates/{id}/issue", h.Issue)
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.UserRoleCustomer))
		r.Post("/purchase", h.Purchase)
		r.Get("/mine", h.Mine)
	})
	r.With(middleware.RequireRole(enum.UserRoleAdmin, enum.UserRoleStaff)).Get("/customers/{cid}", h.ListForCustomer)
	r.Get("/{id}", h.Get)
}

// --- Request / Response types ---

type couponTemplateRequest struct {
	Name               string     `json:"name" validate:"required,max=100"`
	Type               string     `json:"type" validate:"omitempty,oneof=discount exchange"`
	Discount           string     `json:"discount"`
	ExchangeTemplateID string     `json:"exchange_template_id" validate:"omitempty,uuid"`
	Description        string     `json:"description" validate:"max=1000"`
	Price              string     `json:"price"`
	Active             bool       `json:"active"`
	StartAt            *time.Time `json:"start_at"`
	EndAt              *time.Time `json:"end_at"`
	Stock              *int32     `json:"stock"`
	LimitPerCustomer   *int32     `json:"limit_per_customer"`
}

type issueCouponRequest struct {
	CustomerID string `json:"customer_id" validate:"required,uuid"`
	Method     string `json:"method" validate:"omitempty,oneof=purchase activity"`
}

type purchaseCouponRequest struct {
	TemplateID string `json:"template_id" validate:"required,uuid"`
}

type couponTemplateResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	Type               string     `json:"type"`
	Discount           *string    `json:"discount"`
	ExchangeTemplateID *uuid.UUID `json:"exchange_template_id"`
	Description        *string    `json:"description"`
	Price              string     `json:"price"`
	Active             bool       `json:"active"`
	StartAt            *time.Time `json:"start_at"`
	EndAt              *time.Time `json:"end_at"`
	Stock              int32      `json:"stock"`
	LimitPerCustomer   int32      `json:"limit_per_customer"`
}

type couponResponse struct {
	ID                 uuid.UUID  `json:"id"`
	TemplateID         uuid.UUID  `json:"template_id"`
	Name               string     `json:"name"`
	Type               string     `json:"type"`
	Discount           *string    `json:"discount"`
	ExchangeTemplateID *uuid.UUID `json:"exchange_template_id"`
	StartAt            time.Time  `json:"start_at"`
	ExpireAt           time.Time  `json:"expire_at"`
	IsUsed             bool       `json:"is_used"`
	UsedAt             *time.Time `json:"used_at"`
	UsedOrder          *uuid.UUID `json:"used_order"`
	Owner              uuid.UUID  `json:"owner"`
	AcquisitionMethod  string     `json:"acquisition_method"`
}

func timePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func moneyPtr(n pgtype.Numeric) *string {
	if !n.Valid {
		return nil
	}
	s := money(n)
	return &s
}

func toCouponTemplateResponse(t database.CouponTemplate) couponTemplateResponse {
	return couponTemplateResponse{
		ID:                 t.ID,
		Name:               t.Name,
		Type:               string(t.Type),
		Discount:           moneyPtr(t.Discount),
		ExchangeTemplateID: uuidPtr(t.ExchangeTemplateID),
		Description:        textPtr(t.Description),
		Price:              money(t.Price),
		Active:             t.Active,
		StartAt:            timePtr(t.StartAt),
		EndAt:              timePtr(t.EndAt),
		Stock:              t.Stock,
		LimitPerCustomer:   t.LimitPerCustomer,
	}
}

func toCouponResponse(c database.CouponInstance) couponResponse {
	return couponResponse{
		ID:                 c.ID,
		TemplateID:         c.TemplateID,
		Name:               c.Name,
		Type:               string(c.Type),
		Discount:           moneyPtr(c.Discount),
		ExchangeTemplateID: uuidPtr(c.ExchangeTemplateID),
		StartAt:            c.StartAt,
		ExpireAt:           c.ExpireAt,
		IsUsed:             c.IsUsed,
		UsedAt:             timePtr(c.UsedAt),
		UsedOrder:          uuidPtr(c.UsedOrder),
		Owner:              c.Owner,
		AcquisitionMethod:  c.AcquisitionMethod,
	}
}

func toCouponList(cs []database.CouponInstance) []couponResponse {
	resp := make([]couponResponse, len(cs))
	for i, c := range cs {
		resp[i] = toCouponResponse(c)
	}
	return resp
}

// toInput converts the request. Unset stock and limit mean unlimited.
func (req couponTemplateRequest) toInput() (service.CouponTemplateInput, error) {
	in := service.CouponTemplateInput{
		Name:             req.Name,
		Type:             req.Type,
		Description:      req.Description,
		Active:           req.Active,
		StartAt:          req.StartAt,
		EndAt:            req.EndAt,
		Stock:            -1,
		LimitPerCustomer: -1,
	}
	if req.Stock != nil {
		in.Stock = *req.Stock
	}
	if req.LimitPerCustomer != nil {
		in.LimitPerCustomer = *req.LimitPerCustomer
	}

	var err error
	if in.Discount, err = parseMoney(req.Discount); err != nil {
		return in, errInvalidField("discount")
	}
	if in.Price, err = parseMoney(req.Price); err != nil {
		return in, errInvalidField("price")
	}
	if in.ExchangeTemplateID, err = parseOptionalUUID(req.ExchangeTemplateID); err != nil {
		return in, errInvalidField("exchange_template_id")
	}
	return in, nil
}

type errInvalidField string

func (e errInvalidField) Error() string { return "invalid " + string(e) }

// --- Handlers ---

// ListTemplates handles GET /coupons/templates.
func (h *CouponHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	ts, err := h.svc.ListTemplates(r.Context())
	if err != nil {
		writeServiceError(w, "list coupon templates", err)
		return
	}
	resp := make([]couponTemplateResponse, len(ts))
	for i, t := range ts {
		resp[i] = toCouponTemplateResponse(t)
	}
	writeData(w, http.StatusOK, resp)
}

// CreateTemplate handles POST /coupons/templates.
func (h *CouponHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req couponTemplateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.svc.CreateTemplate(r.Context(), in)
	if err != nil {
		writeServiceError(w, "create coupon template", err)
		return
	}
	writeData(w, http.StatusCreated, toCouponTemplateResponse(t))
}

// UpdateTemplate handles PUT /coupons/templates/{id}. Type, discount and
// exchange target are fixed at creation and ignored here.
func (h *CouponHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "coupon template")
	if !ok {
		return
	}
	var req couponTemplateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.svc.UpdateTemplate(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, "update coupon template", err)
		return
	}
	writeData(w, http.StatusOK, toCouponTemplateResponse(t))
}

// DeleteTemplate handles DELETE /coupons/templates/{id}.
func (h *CouponHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "coupon template")
	if !ok {
		return
	}
	if err := h.svc.DeleteTemplate(r.Context(), id); err != nil {
		writeServiceError(w, "delete coupon template", err)
		return
	}
	writeData(w, http.StatusOK, map[string]uuid.UUID{"id": id})
}

// Issue handles POST /coupons/templates/{id}/issue.
func (h *CouponHandler) Issue(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "coupon template")
	if !ok {
		return
	}
	var req issueCouponRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.svc.Issue(r.Context(), id, uuid.MustParse(req.CustomerID), req.Method)
	if err != nil {
		writeServiceError(w, "issue coupon", err)
		return
	}
	writeData(w, http.StatusCreated, toCouponResponse(c))
}

// Purchase handles POST /coupons/purchase for the calling customer.
func (h *CouponHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	var req purchaseCouponRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.svc.Purchase(r.Context(), uuid.MustParse(req.TemplateID), claims.UserID)
	if err != nil {
		writeServiceError(w, "purchase coupon", err)
		return
	}
	writeData(w, http.StatusCreated, toCouponResponse(c))
}

// Mine handles GET /coupons/mine[?usable=true].
func (h *CouponHandler) Mine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	var (
		cs  []database.CouponInstance
		err error
	)
	if r.URL.Query().Get("usable") == "true" {
		cs, err = h.svc.ListUsableCoupons(r.Context(), claims.UserID)
	} else {
		cs, err = h.svc.ListCustomerCoupons(r.Context(), claims.UserID)
	}
	if err != nil {
		writeServiceError(w, "list my coupons", err)
		return
	}
	writeData(w, http.StatusOK, toCouponList(cs))
}

// ListForCustomer handles GET /coupons/customers/{cid} for staff at the till.
func (h *CouponHandler) ListForCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, ok := urlUUID(w, r, "cid", "customer")
	if !ok {
		return
	}
	cs, err := h.svc.ListCustomerCoupons(r.Context(), customerID)
	if err != nil {
		writeServiceError(w, "list customer coupons", err)
		return
	}
	writeData(w, http.StatusOK, toCouponList(cs))
}

// Get handles GET /coupons/{id}. Customers only see their own coupons.
func (h *CouponHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "coupon")
	if !ok {
		return
	}
	c, err := h.svc.GetCoupon(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get coupon", err)
		return
	}
	claims := middleware.ClaimsFromContext(r.Context())
	if claims != nil && claims.Role == enum.UserRoleCustomer && c.Owner != claims.UserID {
		writeServiceError(w, "get coupon", service.ErrCouponNotOwned)
		return
	}
	writeData(w, http.StatusOK, toCouponResponse(c))
}
