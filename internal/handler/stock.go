package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tabemono-pos/api/internal/database"
	"github.com/tabemono-pos/api/internal/enum"
	"github.com/tabemono-pos/api/internal/middleware"
	"github.com/tabemono-pos/api/internal/service"
)

// StockServicer defines the ledger operations exposed to admins.
// Satisfied by *service.StockService.
type StockServicer interface {
	ManualAdjust(ctx context.Context, templateID uuid.UUID, delta int32, reason string, adminID uuid.UUID) (database.SellableTemplate, error)
	Initialize(ctx context.Context, templateID uuid.UUID, initialStock int32, adminID uuid.UUID) (database.SellableTemplate, error)
	SetDisplayStock(ctx context.Context, templateID uuid.UUID, value int32) (database.SellableTemplate, error)
	History(ctx context.Context, templateID uuid.UUID) ([]database.StockChangeRecord, error)
	ListRecords(ctx context.Context, f service.RecordFilter) ([]database.StockChangeRecord, error)
	Reconcile(ctx context.Context, templateID uuid.UUID) (service.Reconciliation, error)
}

// StockHandler handles stock counters and the stock change log.
type StockHandler struct {
	svc StockServicer
}

func NewStockHandler(svc StockServicer) *StockHandler {
	return &StockHandler{svc: svc}
}

// RegisterTemplateRoutes registers the per-template stock endpoints. Expected
// to be mounted on the /templates subrouter.
func (h *StockHandler) RegisterTemplateRoutes(r chi.Router) {
	r.Get("/{id}/stock/logs", h.History)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.UserRoleAdmin))
		r.Post("/{id}/stock/adjust", h.Adjust)
		r.Post("/{id}/stock/initialize", h.Initialize)
		r.Put("/{id}/stock/display", h.SetDisplay)
		r.Get("/{id}/stock/reconcile", h.Reconcile)
	})
}

// RegisterRoutes registers the store-wide stock log. Mounted at /stock.
func (h *StockHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireRole(enum.UserRoleAdmin)).Get("/logs", h.ListRecords)
}

// --- Request / Response types ---

type adjustStockRequest struct {
	Delta  int32  `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"max=200"`
}

type initializeStockRequest struct {
	InitialStock *int32 `json:"initial_stock" validate:"required"`
}

type displayStockRequest struct {
	DisplayStock *int32 `json:"display_stock" validate:"required"`
}

type stockResponse struct {
	TemplateID   uuid.UUID `json:"template_id"`
	Name         string    `json:"name"`
	ActualStock  int32     `json:"actual_stock"`
	DisplayStock int32     `json:"display_stock"`
}

type stockRecordResponse struct {
	ID            uuid.UUID  `json:"id"`
	TemplateID    uuid.UUID  `json:"template_id"`
	TemplateName  string     `json:"template_name"`
	PreviousStock int32      `json:"previous_stock"`
	NewStock      int32      `json:"new_stock"`
	ChangeAmount  int32      `json:"change_amount"`
	ChangeType    string     `json:"change_type"`
	Reason        *string    `json:"reason"`
	AdminID       *uuid.UUID `json:"admin_id"`
	OrderID       *uuid.UUID `json:"order_id"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toStockResponse(t database.SellableTemplate) stockResponse {
	return stockResponse{TemplateID: t.ID, Name: t.Name, ActualStock: t.ActualStock, DisplayStock: t.DisplayStock}
}

func toStockRecords(recs []database.StockChangeRecord) []stockRecordResponse {
	resp := make([]stockRecordResponse, len(recs))
	for i, rec := range recs {
		resp[i] = stockRecordResponse{
			ID:            rec.ID,
			TemplateID:    rec.TemplateID,
			TemplateName:  rec.TemplateName,
			PreviousStock: rec.PreviousStock,
			NewStock:      rec.NewStock,
			ChangeAmount:  rec.ChangeAmount,
			ChangeType:    string(rec.ChangeType),
			Reason:        textPtr(rec.Reason),
			AdminID:       uuidPtr(rec.AdminID),
			OrderID:       uuidPtr(rec.OrderID),
			CreatedAt:     rec.CreatedAt,
		}
	}
	return resp
}

// --- Handlers ---

// Adjust handles POST /templates/{id}/stock/adjust.
func (h *StockHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "template")
	if !ok {
		return
	}
	var req adjustStockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := h.svc.ManualAdjust(r.Context(), id, req.Delta, req.Reason, adminID(r))
	if err != nil {
		writeServiceError(w, "adjust stock", err)
		return
	}
	writeData(w, http.StatusOK, toStockResponse(t))
}

// Initialize handles POST /templates/{id}/stock/initialize. -1 disables
// tracking.
func (h *StockHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "template")
	if !ok {
		return
	}
	var req initializeStockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := h.svc.Initialize(r.Context(), id, *req.InitialStock, adminID(r))
	if err != nil {
		writeServiceError(w, "initialize stock", err)
		return
	}
	writeData(w, http.StatusOK, toStockResponse(t))
}

// SetDisplay handles PUT /templates/{id}/stock/display.
func (h *StockHandler) SetDisplay(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "template")
	if !ok {
		return
	}
	var req displayStockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := h.svc.SetDisplayStock(r.Context(), id, *req.DisplayStock)
	if err != nil {
		writeServiceError(w, "set display stock", err)
		return
	}
	writeData(w, http.StatusOK, toStockResponse(t))
}

// History handles GET /templates/{id}/stock/logs.
func (h *StockHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "template")
	if !ok {
		return
	}
	recs, err := h.svc.History(r.Context(), id)
	if err != nil {
		writeServiceError(w, "stock history", err)
		return
	}
	writeData(w, http.StatusOK, toStockRecords(recs))
}

// Reconcile handles GET /templates/{id}/stock/reconcile.
func (h *StockHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "template")
	if !ok {
		return
	}
	rec, err := h.svc.Reconcile(r.Context(), id)
	if err != nil {
		writeServiceError(w, "reconcile stock", err)
		return
	}
	writeData(w, http.StatusOK, rec)
}

// ListRecords handles GET /stock/logs?from=&to=&name=&type=&limit=.
func (h *StockHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := service.RecordFilter{
		Name:       q.Get("name"),
		ChangeType: q.Get("type"),
	}

	var err error
	if s := q.Get("from"); s != "" {
		if f.From, err = time.Parse(time.RFC3339, s); err != nil {
			writeError(w, http.StatusBadRequest, "from must be an RFC3339 timestamp")
			return
		}
	}
	if s := q.Get("to"); s != "" {
		if f.To, err = time.Parse(time.RFC3339, s); err != nil {
			writeError(w, http.StatusBadRequest, "to must be an RFC3339 timestamp")
			return
		}
	}
	if s := q.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = int32(min(v, 100))
	}

	recs, err := h.svc.ListRecords(r.Context(), f)
	if err != nil {
		writeServiceError(w, "list stock records", err)
		return
	}
	writeData(w, http.StatusOK, toStockRecords(recs))
}

func adminID(r *http.Request) uuid.UUID {
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		return claims.UserID
	}
	return uuid.Nil
}
