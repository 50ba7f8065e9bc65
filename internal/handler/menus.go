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

// menuReader loads a menu with its categories and items.
type menuReader interface {
	GetMenu(ctx context.Context, id uuid.UUID) (database.Menu, error)
	ListMenuCategories(ctx context.Context, menuID uuid.UUID) ([]database.MenuCategory, error)
	ListMenuItems(ctx context.Context, menuID uuid.UUID) ([]database.MenuItemRow, error)
}

// MenuStore defines the database methods needed by menu handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuStore interface {
	menuReader
	ListMenus(ctx context.Context) ([]database.Menu, error)
	CreateMenu(ctx context.Context, name string) (database.Menu, error)
	UpdateMenu(ctx context.Context, arg database.UpdateMenuParams) (database.Menu, error)
	DeleteMenu(ctx context.Context, id uuid.UUID) (int64, error)
}

// MenuHandler handles menu CRUD. Categories and their items are served by
// CategoryHandler under /menus/{mid}/categories.
type MenuHandler struct {
	store      MenuStore
	categories *CategoryHandler
}

func NewMenuHandler(store MenuStore, categories *CategoryHandler) *MenuHandler {
	return &MenuHandler{store: store, categories: categories}
}

// RegisterRoutes registers menu endpoints. Mounted at /menus; writes require
// an admin.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{mid}", h.Get)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.UserRoleAdmin))
		r.Post("/", h.Create)
		r.Put("/{mid}", h.Update)
		r.Delete("/{mid}", h.Delete)
	})
	if h.categories != nil {
		r.Route("/{mid}/categories", h.categories.RegisterRoutes)
	}
}

// --- Request / Response types ---

type menuRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type menuItemResponse struct {
	TemplateID   uuid.UUID `json:"template_id"`
	Kind         string    `json:"kind"`
	Name         string    `json:"name"`
	BasePrice    string    `json:"base_price"`
	ImageURL     *string   `json:"image_url"`
	IsAvailable  bool      `json:"is_available"`
	DisplayStock int32     `json:"display_stock"`
	SortOrder    int32     `json:"sort_order"`
}

type menuSectionResponse struct {
	ID        uuid.UUID          `json:"id"`
	Name      string             `json:"name"`
	SortOrder int32              `json:"sort_order"`
	Items     []menuItemResponse `json:"items"`
}

type menuResponse struct {
	ID         uuid.UUID             `json:"id"`
	Name       string                `json:"name"`
	Categories []menuSectionResponse `json:"categories,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

func toMenuResponse(m database.Menu) menuResponse {
	return menuResponse{ID: m.ID, Name: m.Name, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

var errMenuNotFound = errors.New("menu not found")

// loadMenu assembles the full menu tree. Categories keep their sort order
// and items are grouped under the category they were listed in.
func loadMenu(ctx context.Context, store menuReader, id uuid.UUID) (menuResponse, error) {
	m, err := store.GetMenu(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return menuResponse{}, errMenuNotFound
		}
		return menuResponse{}, err
	}
	cats, err := store.ListMenuCategories(ctx, id)
	if err != nil {
		return menuResponse{}, err
	}
	items, err := store.ListMenuItems(ctx, id)
	if err != nil {
		return menuResponse{}, err
	}

	resp := toMenuResponse(m)
	resp.Categories = make([]menuSectionResponse, len(cats))
	index := make(map[uuid.UUID]int, len(cats))
	for i, c := range cats {
		resp.Categories[i] = menuSectionResponse{ID: c.ID, Name: c.Name, SortOrder: c.SortOrder, Items: []menuItemResponse{}}
		index[c.ID] = i
	}
	for _, it := range items {
		i, ok := index[it.CategoryID]
		if !ok {
			continue
		}
		resp.Categories[i].Items = append(resp.Categories[i].Items, menuItemResponse{
			TemplateID:   it.TemplateID,
			Kind:         string(it.Kind),
			Name:         it.Name,
			BasePrice:    money(it.BasePrice),
			ImageURL:     textPtr(it.ImageUrl),
			IsAvailable:  it.IsAvailable,
			DisplayStock: it.DisplayStock,
			SortOrder:    it.SortOrder,
		})
	}
	return resp, nil
}

// --- Handlers ---

// List returns menus without their contents.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	menus, err := h.store.ListMenus(r.Context())
	if err != nil {
		log.Printf("ERROR: list menus: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	resp := make([]menuResponse, len(menus))
	for i, m := range menus {
		resp[i] = toMenuResponse(m)
	}
	writeData(w, http.StatusOK, resp)
}

// Get returns one menu with its categories and items.
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "mid", "menu")
	if !ok {
		return
	}
	resp, err := loadMenu(r.Context(), h.store, id)
	if err != nil {
		h.writeErr(w, "get menu", err)
		return
	}
	writeData(w, http.StatusOK, resp)
}

func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req menuRequest
	if !decodeBody(w, r, &req) {
		return
	}
	m, err := h.store.CreateMenu(r.Context(), req.Name)
	if err != nil {
		h.writeErr(w, "create menu", err)
		return
	}
	writeData(w, http.StatusCreated, toMenuResponse(m))
}

func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "mid", "menu")
	if !ok {
		return
	}
	var req menuRequest
	if !decodeBody(w, r, &req) {
		return
	}
	m, err := h.store.UpdateMenu(r.Context(), database.UpdateMenuParams{ID: id, Name: req.Name})
	if err != nil {
		h.writeErr(w, "update menu", err)
		return
	}
	writeData(w, http.StatusOK, toMenuResponse(m))
}

// Delete removes a menu with its categories. Stores that used it are left
// without a menu.
func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "mid", "menu")
	if !ok {
		return
	}
	n, err := h.store.DeleteMenu(r.Context(), id)
	if err != nil {
		h.writeErr(w, "delete menu", err)
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, errMenuNotFound.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]uuid.UUID{"id": id})
}

func (h *MenuHandler) writeErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, errMenuNotFound):
		writeError(w, http.StatusNotFound, errMenuNotFound.Error())
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
