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
	"github.com/tabemono-pos/api/internal/database"
	"github.com/tabemono-pos/api/internal/enum"
	"github.com/tabemono-pos/api/internal/middleware"
)

// CategoryStore defines the database methods needed by menu category handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CategoryStore interface {
	ListMenuCategories(ctx context.Context, menuID uuid.UUID) ([]database.MenuCategory, error)
	CreateMenuCategory(ctx context.Context, arg database.CreateMenuCategoryParams) (database.MenuCategory, error)
	UpdateMenuCategory(ctx context.Context, arg database.UpdateMenuCategoryParams) (database.MenuCategory, error)
	DeleteMenuCategory(ctx context.Context, arg database.DeleteMenuCategoryParams) (int64, error)

	SetMenuItem(ctx context.Context, arg database.SetMenuItemParams) (int64, error)
	RemoveMenuItem(ctx context.Context, arg database.RemoveMenuItemParams) (int64, error)
}

// CategoryHandler handles menu categories and the templates listed in them.
type CategoryHandler struct {
	store CategoryStore
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(store CategoryStore) *CategoryHandler {
	return &CategoryHandler{store: store}
}

// RegisterRoutes registers category endpoints on the given Chi router.
// Expected to be mounted inside a menu-scoped subrouter: /menus/{mid}/categories
func (h *CategoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.UserRoleAdmin))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Put("/{id}/items/{tid}", h.SetItem)
		r.Delete("/{id}/items/{tid}", h.RemoveItem)
	})
}

// --- Request / Response types ---

type createCategoryRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	SortOrder int32  `json:"sort_order"`
}

type updateCategoryRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	SortOrder int32  `json:"sort_order"`
}

type menuItemRequest struct {
	SortOrder int32 `json:"sort_order"`
}

type categoryResponse struct {
	ID        uuid.UUID `json:"id"`
	MenuID    uuid.UUID `json:"menu_id"`
	Name      string    `json:"name"`
	SortOrder int32     `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

func toCategoryResponse(c database.MenuCategory) categoryResponse {
	return categoryResponse{
		ID:        c.ID,
		MenuID:    c.MenuID,
		Name:      c.Name,
		SortOrder: c.SortOrder,
		CreatedAt: c.CreatedAt,
	}
}

var (
	errMenuCategoryNotFound = errors.New("menu category not found")
	errMenuItemNotFound     = errors.New("template is not listed in this category")
	errUnknownTemplate      = errors.New("unknown template")
)

// --- Handlers ---

// List returns the categories of the given menu in display order.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	menuID, ok := urlUUID(w, r, "mid", "menu")
	if !ok {
		return
	}

	categories, err := h.store.ListMenuCategories(r.Context(), menuID)
	if err != nil {
		log.Printf("ERROR: list menu categories: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]categoryResponse, len(categories))
	for i, c := range categories {
		resp[i] = toCategoryResponse(c)
	}

	writeData(w, http.StatusOK, resp)
}

// Create adds a new category to the given menu.
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	menuID, ok := urlUUID(w, r, "mid", "menu")
	if !ok {
		return
	}

	var req createCategoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	category, err := h.store.CreateMenuCategory(r.Context(), database.CreateMenuCategoryParams{
		MenuID:    menuID,
		Name:      req.Name,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		if pgErrCode(err) == "23503" {
			writeError(w, http.StatusNotFound, errMenuNotFound.Error())
			return
		}
		log.Printf("ERROR: create menu category: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeData(w, http.StatusCreated, toCategoryResponse(category))
}

// Update renames or reorders a category of the given menu.
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	menuID, ok := urlUUID(w, r, "mid", "menu")
	if !ok {
		return
	}
	catID, ok := urlUUID(w, r, "id", "category")
	if !ok {
		return
	}

	var req updateCategoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	category, err := h.store.UpdateMenuCategory(r.Context(), database.UpdateMenuCategoryParams{
		Name:      req.Name,
		SortOrder: req.SortOrder,
		ID:        catID,
		MenuID:    menuID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, errMenuCategoryNotFound.Error())
			return
		}
		log.Printf("ERROR: update menu category: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeData(w, http.StatusOK, toCategoryResponse(category))
}

// Delete removes a category and the item listings under it. The templates
// themselves are untouched.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	menuID, ok := urlUUID(w, r, "mid", "menu")
	if !ok {
		return
	}
	catID, ok := urlUUID(w, r, "id", "category")
	if !ok {
		return
	}

	n, err := h.store.DeleteMenuCategory(r.Context(), database.DeleteMenuCategoryParams{
		ID:     catID,
		MenuID: menuID,
	})
	if err != nil {
		log.Printf("ERROR: delete menu category: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, errMenuCategoryNotFound.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetItem lists a template in the category, or moves it if already listed.
func (h *CategoryHandler) SetItem(w http.ResponseWriter, r *http.Request) {
	menuID, ok := urlUUID(w, r, "mid", "menu")
	if !ok {
		return
	}
	catID, ok := urlUUID(w, r, "id", "category")
	if !ok {
		return
	}
	templateID, ok := urlUUID(w, r, "tid", "template")
	if !ok {
		return
	}

	var req menuItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	n, err := h.store.SetMenuItem(r.Context(), database.SetMenuItemParams{
		MenuID:     menuID,
		CategoryID: catID,
		TemplateID: templateID,
		SortOrder:  req.SortOrder,
	})
	if err != nil {
		if pgErrCode(err) == "23503" {
			writeError(w, http.StatusBadRequest, errUnknownTemplate.Error())
			return
		}
		log.Printf("ERROR: set menu item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, errMenuCategoryNotFound.Error())
		return
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"category_id": catID,
		"template_id": templateID,
		"sort_order":  req.SortOrder,
	})
}

// RemoveItem takes a template off the category.
func (h *CategoryHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	menuID, ok := urlUUID(w, r, "mid", "menu")
	if !ok {
		return
	}
	catID, ok := urlUUID(w, r, "id", "category")
	if !ok {
		return
	}
	templateID, ok := urlUUID(w, r, "tid", "template")
	if !ok {
		return
	}

	n, err := h.store.RemoveMenuItem(r.Context(), database.RemoveMenuItemParams{
		MenuID:     menuID,
		CategoryID: catID,
		TemplateID: templateID,
	})
	if err != nil {
		log.Printf("ERROR: remove menu item: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, errMenuItemNotFound.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
