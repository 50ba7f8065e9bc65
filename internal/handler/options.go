package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tabemono-pos/api/internal/database"
	"github.com/tabemono-pos/api/internal/enum"
	"github.com/tabemono-pos/api/internal/middleware"
	"github.com/tabemono-pos/api/internal/service"
)

// OptionStore defines the database methods needed by option handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OptionStore interface {
	ListOptionCategories(ctx context.Context) ([]database.OptionCategory, error)
	GetOptionCategory(ctx context.Context, id uuid.UUID) (database.OptionCategory, error)
	CreateOptionCategory(ctx context.Context, name string) (database.OptionCategory, error)
	UpdateOptionCategory(ctx context.Context, arg database.UpdateOptionCategoryParams) (database.OptionCategory, error)
	DeleteOptionCategory(ctx context.Context, id uuid.UUID) (int64, error)

	ListOptionsByCategory(ctx context.Context, categoryID uuid.UUID) ([]database.Option, error)
	CreateOption(ctx context.Context, arg database.CreateOptionParams) (database.Option, error)
	DeleteOption(ctx context.Context, arg database.DeleteOptionParams) (int64, error)
}

// OptionHandler handles option category and option CRUD endpoints.
type OptionHandler struct {
	store OptionStore
}

func NewOptionHandler(store OptionStore) *OptionHandler {
	return &OptionHandler{store: store}
}

// RegisterRoutes registers option endpoints. Mounted at /option-categories.
func (h *OptionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.ListCategories)
	r.Get("/{cid}", h.GetCategory)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.UserRoleAdmin))
		r.Post("/", h.CreateCategory)
		r.Put("/{cid}", h.UpdateCategory)
		r.Delete("/{cid}", h.DeleteCategory)
		r.Post("/{cid}/options", h.CreateOption)
		r.Delete("/{cid}/options/{oid}", h.DeleteOption)
	})
}

// --- Request / Response types ---

type optionCategoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type createOptionRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Price string `json:"price"`
}

type optionResponse struct {
	ID         uuid.UUID `json:"id"`
	CategoryID uuid.UUID `json:"category_id"`
	Name       string    `json:"name"`
	Price      string    `json:"price"`
}

type optionCategoryResponse struct {
	ID      uuid.UUID        `json:"id"`
	Name    string           `json:"name"`
	Options []optionResponse `json:"options"`
}

func toOptionResponse(o database.Option) optionResponse {
	return optionResponse{ID: o.ID, CategoryID: o.CategoryID, Name: o.Name, Price: money(o.Price)}
}

func toOptionCategoryResponse(c database.OptionCategory, opts []database.Option) optionCategoryResponse {
	resp := optionCategoryResponse{ID: c.ID, Name: c.Name, Options: make([]optionResponse, len(opts))}
	for i, o := range opts {
		resp.Options[i] = toOptionResponse(o)
	}
	return resp
}

var errCategoryNotFound = errors.New("option category not found")

// --- Category handlers ---

// ListCategories returns every option category with its options.
func (h *OptionHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.store.ListOptionCategories(r.Context())
	if err != nil {
		log.Printf("ERROR: list option categories: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]optionCategoryResponse, len(cats))
	for i, c := range cats {
		opts, err := h.store.ListOptionsByCategory(r.Context(), c.ID)
		if err != nil {
			log.Printf("ERROR: list options for category %s: %v", c.ID, err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		resp[i] = toOptionCategoryResponse(c, opts)
	}
	writeData(w, http.StatusOK, resp)
}

// GetCategory returns one option category with its options.
func (h *OptionHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "cid", "option category")
	if !ok {
		return
	}
	c, ok := h.loadCategory(w, r, id)
	if !ok {
		return
	}
	opts, err := h.store.ListOptionsByCategory(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list options: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeData(w, http.StatusOK, toOptionCategoryResponse(c, opts))
}

// CreateCategory adds an option category.
func (h *OptionHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req optionCategoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.store.CreateOptionCategory(r.Context(), req.Name)
	if err != nil {
		log.Printf("ERROR: create option category: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeData(w, http.StatusCreated, toOptionCategoryResponse(c, nil))
}

// UpdateCategory renames an option category.
func (h *OptionHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "cid", "option category")
	if !ok {
		return
	}
	var req optionCategoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, err := h.store.UpdateOptionCategory(r.Context(), database.UpdateOptionCategoryParams{ID: id, Name: req.Name})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, errCategoryNotFound.Error())
			return
		}
		log.Printf("ERROR: update option category: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeData(w, http.StatusOK, toOptionCategoryResponse(c, nil))
}

// DeleteCategory removes a category together with its options and template
// links. Orders keep their option snapshots.
func (h *OptionHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "cid", "option category")
	if !ok {
		return
	}
	n, err := h.store.DeleteOptionCategory(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: delete option category: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, errCategoryNotFound.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]uuid.UUID{"id": id})
}

// --- Option handlers ---

// CreateOption adds an option to a category.
func (h *OptionHandler) CreateOption(w http.ResponseWriter, r *http.Request) {
	catID, ok := urlUUID(w, r, "cid", "option category")
	if !ok {
		return
	}
	var req createOptionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	price, err := parseMoney(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid price")
		return
	}
	if price.IsNegative() {
		writeError(w, http.StatusBadRequest, service.ErrInvalidAmount.Error())
		return
	}

	o, err := h.store.CreateOption(r.Context(), database.CreateOptionParams{
		CategoryID: catID,
		Name:       req.Name,
		Price:      service.DecimalToNumeric(price),
	})
	if err != nil {
		if pgErrCode(err) == "23503" {
			writeError(w, http.StatusNotFound, errCategoryNotFound.Error())
			return
		}
		log.Printf("ERROR: create option: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeData(w, http.StatusCreated, toOptionResponse(o))
}

// DeleteOption removes an option from its category.
func (h *OptionHandler) DeleteOption(w http.ResponseWriter, r *http.Request) {
	catID, ok := urlUUID(w, r, "cid", "option category")
	if !ok {
		return
	}
	optID, ok := urlUUID(w, r, "oid", "option")
	if !ok {
		return
	}
	n, err := h.store.DeleteOption(r.Context(), database.DeleteOptionParams{ID: optID, CategoryID: catID})
	if err != nil {
		log.Printf("ERROR: delete option: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, service.ErrOptionNotFound.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]uuid.UUID{"id": optID})
}

func (h *OptionHandler) loadCategory(w http.ResponseWriter, r *http.Request, id uuid.UUID) (database.OptionCategory, bool) {
	c, err := h.store.GetOptionCategory(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, errCategoryNotFound.Error())
			return c, false
		}
		log.Printf("ERROR: get option category: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return c, false
	}
	return c, true
}
