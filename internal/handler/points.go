package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tabemono-pos/api/internal/database"
	"github.com/tabemono-pos/api/internal/enum"
	"github.com/tabemono-pos/api/internal/middleware"
	"github.com/tabemono-pos/api/internal/service"
)

// PointStore defines the database methods needed by point system handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type PointStore interface {
	ListPointSystems(ctx context.Context) ([]database.PointSystem, error)
	GetPointSystem(ctx context.Context, id uuid.UUID) (database.PointSystem, error)
	GetActivePointSystem(ctx context.Context) (database.PointSystem, error)
	CreatePointSystem(ctx context.Context, arg database.CreatePointSystemParams) (database.PointSystem, error)
	UpdatePointSystem(ctx context.Context, arg database.UpdatePointSystemParams) (database.PointSystem, error)
	DeactivatePointSystems(ctx context.Context) error
	ActivatePointSystem(ctx context.Context, id uuid.UUID) (database.PointSystem, error)
	DeleteInactivePointSystem(ctx context.Context, id uuid.UUID) (int64, error)
}

// NewPointStore creates a PointStore from a DBTX (pool or tx).
type NewPointStore func(db database.DBTX) PointStore

// PointHandler manages loyalty point rules. At most one rule is active.
type PointHandler struct {
	store    PointStore
	pool     TxBeginner
	newStore NewPointStore
}

func NewPointHandler(store PointStore, pool TxBeginner, newStore NewPointStore) *PointHandler {
	return &PointHandler{store: store, pool: pool, newStore: newStore}
}

// RegisterRoutes registers point system endpoints. Mounted at /point-systems.
func (h *PointHandler) RegisterRoutes(r chi.Router) {
	r.Get("/active", h.Active)
	r.Get("/quote", h.Quote)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.UserRoleAdmin))
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Post("/{id}/activate", h.Activate)
		r.Delete("/{id}", h.Delete)
	})
}

// --- Request / Response types ---

type pointSystemRequest struct {
	Name           string `json:"name" validate:"required,max=100"`
	MinAmount      string `json:"min_amount"`
	AmountPerPoint string `json:"amount_per_point" validate:"required"`
	Description    string `json:"description" validate:"max=1000"`
}

type pointSystemResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	MinAmount      string    `json:"min_amount"`
	AmountPerPoint string    `json:"amount_per_point"`
	Description    *string   `json:"description"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

type pointQuoteResponse struct {
	Amount        string     `json:"amount"`
	Points        int64      `json:"points"`
	PointSystemID *uuid.UUID `json:"point_system_id"`
}

func toPointSystemResponse(p database.PointSystem) pointSystemResponse {
	return pointSystemResponse{
		ID:             p.ID,
		Name:           p.Name,
		MinAmount:      money(p.MinAmount),
		AmountPerPoint: money(p.AmountPerPoint),
		Description:    textPtr(p.Description),
		Active:         p.Active,
		CreatedAt:      p.CreatedAt,
	}
}

var (
	errPointSystemNotFound = errors.New("point system not found")
	errNoActivePointSystem = errors.New("no active point system")
	errPointSystemActive   = errors.New("the active point system cannot be deleted")
	errBadPointRate        = errors.New("amount_per_point must be positive and min_amount non-negative")
)

// --- Handlers ---

func (h *PointHandler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.store.ListPointSystems(r.Context())
	if err != nil {
		log.Printf("ERROR: list point systems: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	resp := make([]pointSystemResponse, len(rules))
	for i, p := range rules {
		resp[i] = toPointSystemResponse(p)
	}
	writeData(w, http.StatusOK, resp)
}

// Active returns the rule currently earning points.
func (h *PointHandler) Active(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetActivePointSystem(r.Context())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, errNoActivePointSystem.Error())
			return
		}
		h.writeErr(w, "get active point system", err)
		return
	}
	writeData(w, http.StatusOK, toPointSystemResponse(p))
}

// Quote handles GET /point-systems/quote?amount=. Without an active rule
// nothing is earned.
func (h *PointHandler) Quote(w http.ResponseWriter, r *http.Request) {
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil || amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "amount must be a non-negative decimal")
		return
	}
	resp := pointQuoteResponse{Amount: amount.StringFixed(2)}
	p, err := h.store.GetActivePointSystem(r.Context())
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		h.writeErr(w, "quote points", err)
		return
	default:
		resp.Points = service.PointsEarned(p, amount)
		resp.PointSystemID = &p.ID
	}
	writeData(w, http.StatusOK, resp)
}

// Create adds an inactive rule.
func (h *PointHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req pointSystemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	minAmount, perPoint, err := req.parse()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.store.CreatePointSystem(r.Context(), database.CreatePointSystemParams{
		Name:           req.Name,
		MinAmount:      service.DecimalToNumeric(minAmount),
		AmountPerPoint: service.DecimalToNumeric(perPoint),
		Description:    pgText(req.Description),
	})
	if err != nil {
		h.writeErr(w, "create point system", err)
		return
	}
	writeData(w, http.StatusCreated, toPointSystemResponse(p))
}

func (h *PointHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "point system")
	if !ok {
		return
	}
	var req pointSystemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	minAmount, perPoint, err := req.parse()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := h.store.UpdatePointSystem(r.Context(), database.UpdatePointSystemParams{
		ID:             id,
		Name:           req.Name,
		MinAmount:      service.DecimalToNumeric(minAmount),
		AmountPerPoint: service.DecimalToNumeric(perPoint),
		Description:    pgText(req.Description),
	})
	if err != nil {
		h.writeErr(w, "update point system", err)
		return
	}
	writeData(w, http.StatusOK, toPointSystemResponse(p))
}

// Activate makes the rule the only active one.
func (h *PointHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "point system")
	if !ok {
		return
	}
	var p database.PointSystem
	err := h.inTx(r.Context(), func(store PointStore) error {
		if err := store.DeactivatePointSystems(r.Context()); err != nil {
			return err
		}
		var err error
		p, err = store.ActivatePointSystem(r.Context(), id)
		return err
	})
	if err != nil {
		h.writeErr(w, "activate point system", err)
		return
	}
	writeData(w, http.StatusOK, toPointSystemResponse(p))
}

// Delete removes an inactive rule.
func (h *PointHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "point system")
	if !ok {
		return
	}
	n, err := h.store.DeleteInactivePointSystem(r.Context(), id)
	if err != nil {
		h.writeErr(w, "delete point system", err)
		return
	}
	if n == 0 {
		if _, err := h.store.GetPointSystem(r.Context(), id); err == nil {
			writeError(w, http.StatusConflict, errPointSystemActive.Error())
			return
		}
		writeError(w, http.StatusNotFound, errPointSystemNotFound.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]uuid.UUID{"id": id})
}

// --- Helpers ---

func (req pointSystemRequest) parse() (decimal.Decimal, decimal.Decimal, error) {
	minAmount, err := parseMoney(req.MinAmount)
	if err != nil || minAmount.IsNegative() {
		return decimal.Zero, decimal.Zero, errBadPointRate
	}
	perPoint, err := decimal.NewFromString(req.AmountPerPoint)
	if err != nil || !perPoint.IsPositive() {
		return decimal.Zero, decimal.Zero, errBadPointRate
	}
	return minAmount, perPoint, nil
}

func (h *PointHandler) inTx(ctx context.Context, fn func(store PointStore) error) error {
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(h.newStore(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (h *PointHandler) writeErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		writeError(w, http.StatusNotFound, errPointSystemNotFound.Error())
	case pgErrCode(err) == "23505":
		writeError(w, http.StatusConflict, "another point system was activated concurrently")
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
