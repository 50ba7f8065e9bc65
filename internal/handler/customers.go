package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tabemono-pos/api/internal/database"
	"github.com/tabemono-pos/api/internal/enum"
	"github.com/tabemono-pos/api/internal/middleware"
)

// CustomerStore defines the database methods needed by customer lookup
// handlers. Satisfied by *database.Queries; narrow interface for testability.
type CustomerStore interface {
	SearchCustomers(ctx context.Context, arg database.SearchCustomersParams) ([]database.Customer, error)
	GetCustomerByID(ctx context.Context, id uuid.UUID) (database.Customer, error)
	GetCustomerStats(ctx context.Context, customerID uuid.UUID) (database.GetCustomerStatsRow, error)
	ListCustomerOrders(ctx context.Context, arg database.ListCustomerOrdersParams) ([]database.Order, error)
}

// CustomerHandler lets store staff look up registered customers. Customers
// manage their own accounts through the auth endpoints.
type CustomerHandler struct {
	store CustomerStore
}

func NewCustomerHandler(store CustomerStore) *CustomerHandler {
	return &CustomerHandler{store: store}
}

// RegisterRoutes registers customer lookup endpoints. Mounted at /customers.
func (h *CustomerHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.RequireRole(enum.UserRoleAdmin, enum.UserRoleStaff))
	r.Get("/", h.List)
	r.Route("/{cid}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Get("/stats", h.Stats)
		r.Get("/orders", h.Orders)
	})
}

// --- Response types ---

type customerResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type customerStatsResponse struct {
	TotalOrders int64  `json:"total_orders"`
	TotalSpend  string `json:"total_spend"`
	AvgTicket   string `json:"avg_ticket"`
}

func toCustomerResponse(c database.Customer) customerResponse {
	return customerResponse{ID: c.ID, Name: c.Name, Email: c.Email, CreatedAt: c.CreatedAt}
}

// --- Handlers ---

// List searches customers by name or email (?q=), newest first.
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 200)
	customers, err := h.store.SearchCustomers(r.Context(), database.SearchCustomersParams{
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
		Limit: int32(limit),
	})
	if err != nil {
		log.Printf("ERROR: search customers: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]customerResponse, len(customers))
	for i, c := range customers {
		resp[i] = toCustomerResponse(c)
	}
	writeData(w, http.StatusOK, resp)
}

// Get returns one customer.
func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCustomer(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, toCustomerResponse(c))
}

// Stats returns totals over the customer's completed orders.
func (h *CustomerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCustomer(w, r)
	if !ok {
		return
	}
	stats, err := h.store.GetCustomerStats(r.Context(), c.ID)
	if err != nil {
		log.Printf("ERROR: get customer stats: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeData(w, http.StatusOK, customerStatsResponse{
		TotalOrders: stats.TotalOrders,
		TotalSpend:  money(stats.TotalSpend),
		AvgTicket:   money(stats.AvgTicket),
	})
}

// Orders returns the customer's order history, newest first.
func (h *CustomerHandler) Orders(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCustomer(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 20, 100)
	offset := queryInt(r, "offset", 0, 0)

	orders, err := h.store.ListCustomerOrders(r.Context(), database.ListCustomerOrdersParams{
		CustomerID: c.ID,
		Limit:      int32(limit),
		Offset:     int32(offset),
	})
	if err != nil {
		log.Printf("ERROR: list customer orders: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeData(w, http.StatusOK, toOrderList(orders))
}

func (h *CustomerHandler) loadCustomer(w http.ResponseWriter, r *http.Request) (database.Customer, bool) {
	id, ok := urlUUID(w, r, "cid", "customer")
	if !ok {
		return database.Customer{}, false
	}
	c, err := h.store.GetCustomerByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "customer not found")
			return database.Customer{}, false
		}
		log.Printf("ERROR: get customer: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return database.Customer{}, false
	}
	return c, true
}

// queryInt reads a non-negative integer query parameter. Missing or
// malformed values fall back to def; max caps it when positive.
func queryInt(r *http.Request, name string, def, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 0 {
		return def
	}
	if max > 0 && v > max {
		v = max
	}
	return v
}
