package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tabemono-pos/api/internal/database"
	"github.com/tabemono-pos/api/internal/enum"
	"github.com/tabemono-pos/api/internal/middleware"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	GetDailySales(ctx context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error)
	GetTemplateSales(ctx context.Context, arg database.GetTemplateSalesParams) ([]database.GetTemplateSalesRow, error)
	GetPaymentSummary(ctx context.Context, arg database.GetPaymentSummaryParams) ([]database.GetPaymentSummaryRow, error)
}

// ReportsHandler serves sales reports over completed orders.
type ReportsHandler struct {
	store ReportsStore
	loc   *time.Location
}

// NewReportsHandler creates a ReportsHandler whose default date range is
// computed in the business time zone.
func NewReportsHandler(store ReportsStore, utcOffsetHours int) *ReportsHandler {
	return &ReportsHandler{
		store: store,
		loc:   time.FixedZone("business", utcOffsetHours*3600),
	}
}

// RegisterRoutes registers store-scoped report endpoints.
// Expected to be mounted inside a store-scoped subrouter: /stores/{sid}/reports
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.RequireRole(enum.UserRoleAdmin))
	r.Get("/daily-sales", h.DailySales)
	r.Get("/template-sales", h.TemplateSales)
	r.Get("/payment-summary", h.PaymentSummary)
}

// --- Response types ---

type dailySalesResponse struct {
	Date          string `json:"date"`
	OrderCount    int64  `json:"order_count"`
	OrderAmount   string `json:"order_amount"`
	TotalDiscount string `json:"total_discount"`
	TotalMoney    string `json:"total_money"`
}

type templateSalesResponse struct {
	TemplateID   uuid.UUID `json:"template_id"`
	Name         string    `json:"name"`
	Kind         string    `json:"kind"`
	QuantitySold int64     `json:"quantity_sold"`
	Revenue      string    `json:"revenue"`
}

type paymentSummaryResponse struct {
	PaymentMethod string `json:"payment_method"`
	OrderCount    int64  `json:"order_count"`
	TotalMoney    string `json:"total_money"`
}

// --- Handlers ---

// DailySales returns per business day totals for a date range.
func (h *ReportsHandler) DailySales(w http.ResponseWriter, r *http.Request) {
	storeID, from, to, ok := h.reportScope(w, r)
	if !ok {
		return
	}

	rows, err := h.store.GetDailySales(r.Context(), database.GetDailySalesParams{
		StoreID:  storeID,
		FromDate: from,
		ToDate:   to,
	})
	if err != nil {
		log.Printf("ERROR: get daily sales: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]dailySalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = dailySalesResponse{
			Date:          row.BusinessDate.Time.Format(dateLayout),
			OrderCount:    row.OrderCount,
			OrderAmount:   money(row.OrderAmount),
			TotalDiscount: money(row.TotalDiscount),
			TotalMoney:    money(row.TotalMoney),
		}
	}
	writeData(w, http.StatusOK, resp)
}

// TemplateSales returns the best selling templates by quantity.
func (h *ReportsHandler) TemplateSales(w http.ResponseWriter, r *http.Request) {
	storeID, from, to, ok := h.reportScope(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 20, 100)
	if limit == 0 {
		limit = 20
	}

	rows, err := h.store.GetTemplateSales(r.Context(), database.GetTemplateSalesParams{
		StoreID:  storeID,
		FromDate: from,
		ToDate:   to,
		Limit:    int32(limit),
	})
	if err != nil {
		log.Printf("ERROR: get template sales: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]templateSalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = templateSalesResponse{
			TemplateID:   row.TemplateID,
			Name:         row.Name,
			Kind:         string(row.Kind),
			QuantitySold: row.QuantitySold,
			Revenue:      money(row.Revenue),
		}
	}
	writeData(w, http.StatusOK, resp)
}

// PaymentSummary breaks completed sales down by payment method.
func (h *ReportsHandler) PaymentSummary(w http.ResponseWriter, r *http.Request) {
	storeID, from, to, ok := h.reportScope(w, r)
	if !ok {
		return
	}

	rows, err := h.store.GetPaymentSummary(r.Context(), database.GetPaymentSummaryParams{
		StoreID:  storeID,
		FromDate: from,
		ToDate:   to,
	})
	if err != nil {
		log.Printf("ERROR: get payment summary: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]paymentSummaryResponse, len(rows))
	for i, row := range rows {
		resp[i] = paymentSummaryResponse{
			PaymentMethod: row.PaymentMethod,
			OrderCount:    row.OrderCount,
			TotalMoney:    money(row.TotalMoney),
		}
	}
	writeData(w, http.StatusOK, resp)
}

// --- Helpers ---

func (h *ReportsHandler) reportScope(w http.ResponseWriter, r *http.Request) (uuid.UUID, pgtype.Date, pgtype.Date, bool) {
	storeID, ok := urlUUID(w, r, "sid", "store")
	if !ok {
		return uuid.Nil, pgtype.Date{}, pgtype.Date{}, false
	}
	from, to, err := h.parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return uuid.Nil, pgtype.Date{}, pgtype.Date{}, false
	}
	return storeID, pgtype.Date{Time: from, Valid: true}, pgtype.Date{Time: to, Valid: true}, true
}

// parseDateRange reads start_date and end_date as inclusive business dates.
// Defaults to the 30 days up to and including today.
func (h *ReportsHandler) parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	now := time.Now().In(h.loc)
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -30)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid start_date, expected YYYY-MM-DD")
		}
		start = t
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid end_date, expected YYYY-MM-DD")
		}
		end = t
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, errors.New("start_date must not be after end_date")
	}
	return start, end, nil
}
