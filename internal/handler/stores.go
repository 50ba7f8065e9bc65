package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tabemono-pos/api/internal/database"
	"github.com/tabemono-pos/api/internal/enum"
	"github.com/tabemono-pos/api/internal/media"
	"github.com/tabemono-pos/api/internal/middleware"
)

// StoreStore defines the database methods needed by store handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type StoreStore interface {
	ListStores(ctx context.Context) ([]database.Store, error)
	GetStore(ctx context.Context, id uuid.UUID) (database.Store, error)
	CreateStore(ctx context.Context, arg database.CreateStoreParams) (database.Store, error)
	UpdateStore(ctx context.Context, arg database.UpdateStoreParams) (database.Store, error)
	DeleteStore(ctx context.Context, id uuid.UUID) (int64, error)

	menuReader
}

// StoreHandler handles store administration and the public storefront.
type StoreHandler struct {
	store  StoreStore
	images media.ImageDeleter
}

func NewStoreHandler(store StoreStore, images media.ImageDeleter) *StoreHandler {
	if images == nil {
		images = media.Noop{}
	}
	return &StoreHandler{store: store, images: images}
}

// RegisterRoutes registers the store collection. Mounted at /stores, next to
// the /{sid} subrouter.
func (h *StoreHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.UserRoleAdmin))
		r.Get("/", h.List)
		r.Post("/", h.Create)
	})
}

// RegisterStoreRoutes registers single-store endpoints. Expected inside the
// store-scoped subrouter /stores/{sid}.
func (h *StoreHandler) RegisterStoreRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.UserRoleAdmin))
		r.Put("/", h.Update)
		r.Delete("/", h.Delete)
	})
}

// RegisterPublicRoutes registers the unauthenticated storefront. Mounted at
// /storefront.
func (h *StoreHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/stores", h.List)
	r.Get("/stores/{sid}", h.Storefront)
}

// --- Request / Response types ---

type announcement struct {
	Title   string `json:"title" validate:"required,max=100"`
	Content string `json:"content" validate:"max=2000"`
}

type storeRequest struct {
	Name          string         `json:"name" validate:"required,max=100"`
	MenuID        string         `json:"menu_id" validate:"omitempty,uuid"`
	ImageURL      string         `json:"image_url" validate:"omitempty,url"`
	ImagePublicID string         `json:"image_public_id" validate:"max=255"`
	Announcements []announcement `json:"announcements" validate:"max=20,dive"`
}

type storeResponse struct {
	ID            uuid.UUID      `json:"id"`
	Name          string         `json:"name"`
	MenuID        *uuid.UUID     `json:"menu_id"`
	ImageURL      *string        `json:"image_url"`
	Announcements []announcement `json:"announcements"`
	CreatedAt     time.Time      `json:"created_at"`
}

type storefrontResponse struct {
	storeResponse
	Menu *menuResponse `json:"menu"`
}

func toStoreResponse(s database.Store) storeResponse {
	resp := storeResponse{
		ID:            s.ID,
		Name:          s.Name,
		MenuID:        uuidPtr(s.MenuID),
		ImageURL:      textPtr(s.ImageUrl),
		Announcements: []announcement{},
		CreatedAt:     s.CreatedAt,
	}
	if len(s.Announcements) > 0 {
		if err := json.Unmarshal(s.Announcements, &resp.Announcements); err != nil {
			log.Printf("WARN: store %s announcements: %v", s.ID, err)
		}
	}
	return resp
}

var (
	errStoreNotFound = errors.New("store not found")
	errStoreInUse    = errors.New("store still has staff or orders")
	errUnknownMenu   = errors.New("unknown menu")
)

// --- Handlers ---

// List returns every store.
func (h *StoreHandler) List(w http.ResponseWriter, r *http.Request) {
	stores, err := h.store.ListStores(r.Context())
	if err != nil {
		log.Printf("ERROR: list stores: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	resp := make([]storeResponse, len(stores))
	for i, s := range stores {
		resp[i] = toStoreResponse(s)
	}
	writeData(w, http.StatusOK, resp)
}

// Get returns the store in the URL.
func (h *StoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "sid", "store")
	if !ok {
		return
	}
	s, err := h.store.GetStore(r.Context(), id)
	if err != nil {
		h.writeErr(w, "get store", err)
		return
	}
	writeData(w, http.StatusOK, toStoreResponse(s))
}

// Storefront returns a store together with its menu, if one is assigned.
func (h *StoreHandler) Storefront(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "sid", "store")
	if !ok {
		return
	}
	s, err := h.store.GetStore(r.Context(), id)
	if err != nil {
		h.writeErr(w, "get storefront", err)
		return
	}
	resp := storefrontResponse{storeResponse: toStoreResponse(s)}
	if s.MenuID.Valid {
		menu, err := loadMenu(r.Context(), h.store, uuid.UUID(s.MenuID.Bytes))
		if err != nil {
			h.writeErr(w, "get storefront", err)
			return
		}
		resp.Menu = &menu
	}
	writeData(w, http.StatusOK, resp)
}

// Create handles POST /stores.
func (h *StoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	menuID, announcements, err := req.parse()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.store.CreateStore(r.Context(), database.CreateStoreParams{
		Name:          req.Name,
		MenuID:        menuID,
		ImageUrl:      pgText(req.ImageURL),
		ImagePublicID: pgText(req.ImagePublicID),
		Announcements: announcements,
	})
	if err != nil {
		h.writeErr(w, "create store", err)
		return
	}
	writeData(w, http.StatusCreated, toStoreResponse(s))
}

// Update handles PUT /stores/{sid}. A replaced image is removed from the
// media host after the update succeeds.
func (h *StoreHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "sid", "store")
	if !ok {
		return
	}
	var req storeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	menuID, announcements, err := req.parse()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	current, err := h.store.GetStore(r.Context(), id)
	if err != nil {
		h.writeErr(w, "update store", err)
		return
	}
	s, err := h.store.UpdateStore(r.Context(), database.UpdateStoreParams{
		ID:            id,
		Name:          req.Name,
		MenuID:        menuID,
		ImageUrl:      pgText(req.ImageURL),
		ImagePublicID: pgText(req.ImagePublicID),
		Announcements: announcements,
	})
	if err != nil {
		h.writeErr(w, "update store", err)
		return
	}
	if current.ImagePublicID.Valid && current.ImagePublicID.String != req.ImagePublicID {
		h.deleteImage(r.Context(), current.ImagePublicID.String)
	}
	writeData(w, http.StatusOK, toStoreResponse(s))
}

// Delete handles DELETE /stores/{sid}. Stores with staff or order history
// are refused by the foreign keys.
func (h *StoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "sid", "store")
	if !ok {
		return
	}
	current, err := h.store.GetStore(r.Context(), id)
	if err != nil {
		h.writeErr(w, "delete store", err)
		return
	}
	n, err := h.store.DeleteStore(r.Context(), id)
	if err != nil {
		h.writeErr(w, "delete store", err)
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, errStoreNotFound.Error())
		return
	}
	if current.ImagePublicID.Valid {
		h.deleteImage(r.Context(), current.ImagePublicID.String)
	}
	writeData(w, http.StatusOK, map[string]uuid.UUID{"id": id})
}

// --- Helpers ---

func (req storeRequest) parse() (pgtype.UUID, []byte, error) {
	var menuID pgtype.UUID
	if req.MenuID != "" {
		id, err := uuid.Parse(req.MenuID)
		if err != nil {
			return pgtype.UUID{}, nil, errUnknownMenu
		}
		menuID = pgtype.UUID{Bytes: id, Valid: true}
	}
	list := req.Announcements
	if list == nil {
		list = []announcement{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return pgtype.UUID{}, nil, err
	}
	return menuID, raw, nil
}

func (h *StoreHandler) deleteImage(ctx context.Context, publicID string) {
	if err := h.images.DeleteImage(ctx, publicID); err != nil {
		log.Printf("WARN: delete image %s: %v", publicID, err)
	}
}

func (h *StoreHandler) writeErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		writeError(w, http.StatusNotFound, errStoreNotFound.Error())
	case errors.Is(err, errMenuNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case pgErrCode(err) == "23503" && op == "delete store":
		writeError(w, http.StatusConflict, errStoreInUse.Error())
	case pgErrCode(err) == "23503":
		writeError(w, http.StatusBadRequest, errUnknownMenu.Error())
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
