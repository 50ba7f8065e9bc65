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
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/tabemono-pos/api/internal/database"
	"github.com/tabemono-pos/api/internal/enum"
	"github.com/tabemono-pos/api/internal/media"
	"github.com/tabemono-pos/api/internal/middleware"
	"github.com/tabemono-pos/api/internal/service"
)

// TemplateStore defines the database methods needed by template handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type TemplateStore interface {
	GetTemplate(ctx context.Context, id uuid.UUID) (database.SellableTemplate, error)
	ListTemplates(ctx context.Context, kind database.NullSellableKind) ([]database.SellableTemplate, error)
	CreateTemplate(ctx context.Context, arg database.CreateTemplateParams) (database.SellableTemplate, error)
	UpdateTemplate(ctx context.Context, arg database.UpdateTemplateParams) (database.SellableTemplate, error)
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
	CountInstancesByTemplate(ctx context.Context, templateID uuid.UUID) (int64, error)

	ListTemplateOptionCategories(ctx context.Context, templateID uuid.UUID) ([]database.ListTemplateOptionCategoriesRow, error)
	ClearTemplateOptionCategories(ctx context.Context, templateID uuid.UUID) error
	LinkOptionCategory(ctx context.Context, arg database.LinkOptionCategoryParams) error

	ListComboDishes(ctx context.Context, comboID uuid.UUID) ([]database.ListComboDishesRow, error)
	ClearComboDishes(ctx context.Context, comboID uuid.UUID) error
	AddComboDish(ctx context.Context, arg database.AddComboDishParams) error
}

// NewTemplateStore creates a TemplateStore from a DBTX (pool or tx).
type NewTemplateStore func(db database.DBTX) TemplateStore

// TxBeginner starts a transaction. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TemplateHandler handles dish and combo template administration.
type TemplateHandler struct {
	store    TemplateStore
	pool     TxBeginner
	newStore NewTemplateStore
	images   media.ImageDeleter
}

func NewTemplateHandler(store TemplateStore, pool TxBeginner, newStore NewTemplateStore, images media.ImageDeleter) *TemplateHandler {
	if images == nil {
		images = media.Noop{}
	}
	return &TemplateHandler{store: store, pool: pool, newStore: newStore, images: images}
}

// RegisterRoutes registers template endpoints. Mounted at /templates; writes
// require an admin.
func (h *TemplateHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.UserRoleAdmin))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// --- Request / Response types ---

type templateRequest struct {
	Kind              string   `json:"kind" validate:"omitempty,oneof=dish combo"`
	Name              string   `json:"name" validate:"required,max=100"`
	BasePrice         string   `json:"base_price" validate:"required"`
	Description       string   `json:"description" validate:"max=1000"`
	ImageURL          string   `json:"image_url" validate:"omitempty,url"`
	ImagePublicID     string   `json:"image_public_id" validate:"max=255"`
	IsAvailable       *bool    `json:"is_available"`
	OptionCategoryIDs []string `json:"option_category_ids" validate:"dive,uuid"`
	DishIDs           []string `json:"dish_ids" validate:"dive,uuid"`
}

type templateResponse struct {
	ID               uuid.UUID           `json:"id"`
	Kind             string              `json:"kind"`
	Name             string              `json:"name"`
	BasePrice        string              `json:"base_price"`
	Description      *string             `json:"description"`
	ImageURL         *string             `json:"image_url"`
	IsAvailable      bool                `json:"is_available"`
	ActualStock      int32               `json:"actual_stock"`
	DisplayStock     int32               `json:"display_stock"`
	OptionCategories []optionCategoryRef `json:"option_categories,omitempty"`
	Dishes           []comboDishResponse `json:"dishes,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

type optionCategoryRef struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	SortOrder int32     `json:"sort_order"`
}

type comboDishResponse struct {
	DishID   uuid.UUID `json:"dish_id"`
	Name     string    `json:"name"`
	Position int32     `json:"position"`
}

func toTemplateResponse(t database.SellableTemplate) templateResponse {
	return templateResponse{
		ID:           t.ID,
		Kind:         string(t.Kind),
		Name:         t.Name,
		BasePrice:    money(t.BasePrice),
		Description:  textPtr(t.Description),
		ImageURL:     textPtr(t.ImageUrl),
		IsAvailable:  t.IsAvailable,
		ActualStock:  t.ActualStock,
		DisplayStock: t.DisplayStock,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

var (
	errNotADish       = errors.New("combo dishes must be dish templates")
	errDishesOnDish   = errors.New("dish_ids is only valid for combos")
	errBadPrice       = errors.New("base_price must be a non-negative decimal")
	errUnknownRefs    = errors.New("unknown option category or dish")
	errTemplateLinked = errors.New("template is referenced by a combo or coupon")
	errKindChanged    = errors.New("kind cannot be changed")
)

// --- Handlers ---

// List handles GET /templates?kind=dish|combo.
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	var kind database.NullSellableKind
	switch k := r.URL.Query().Get("kind"); k {
	case "":
	case enum.SellableKindDish, enum.SellableKindCombo:
		kind = database.NullSellableKind{SellableKind: database.SellableKind(k), Valid: true}
	default:
		writeError(w, http.StatusBadRequest, "kind must be dish or combo")
		return
	}

	templates, err := h.store.ListTemplates(r.Context(), kind)
	if err != nil {
		log.Printf("ERROR: list templates: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]templateResponse, len(templates))
	for i, t := range templates {
		resp[i] = toTemplateResponse(t)
	}
	writeData(w, http.StatusOK, resp)
}

// Get handles GET /templates/{id}, including option categories and combo dishes.
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "template")
	if !ok {
		return
	}
	resp, err := h.load(r.Context(), h.store, id)
	if err != nil {
		h.writeErr(w, "get template", err)
		return
	}
	writeData(w, http.StatusOK, resp)
}

// Create handles POST /templates.
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Kind == "" {
		req.Kind = enum.SellableKindDish
	}
	price, categoryIDs, dishIDs, err := req.parse()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Kind == enum.SellableKindDish && len(dishIDs) > 0 {
		writeError(w, http.StatusBadRequest, errDishesOnDish.Error())
		return
	}

	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}

	var resp templateResponse
	err = h.inTx(r.Context(), func(store TemplateStore) error {
		t, err := store.CreateTemplate(r.Context(), database.CreateTemplateParams{
			Kind:          database.SellableKind(req.Kind),
			Name:          req.Name,
			BasePrice:     service.DecimalToNumeric(price),
			Description:   pgText(req.Description),
			ImageUrl:      pgText(req.ImageURL),
			ImagePublicID: pgText(req.ImagePublicID),
			IsAvailable:   available,
		})
		if err != nil {
			return err
		}
		if err := setLinks(r.Context(), store, t, categoryIDs, dishIDs); err != nil {
			return err
		}
		resp, err = h.load(r.Context(), store, t.ID)
		return err
	})
	if err != nil {
		h.writeErr(w, "create template", err)
		return
	}
	writeData(w, http.StatusCreated, resp)
}

// Update handles PUT /templates/{id}. Option categories and combo dishes are
// replaced when present in the body. Stock is changed through the stock
// endpoints only.
func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "template")
	if !ok {
		return
	}
	var req templateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	price, categoryIDs, dishIDs, err := req.parse()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		resp     templateResponse
		oldImage string
	)
	err = h.inTx(r.Context(), func(store TemplateStore) error {
		current, err := store.GetTemplate(r.Context(), id)
		if err != nil {
			return err
		}
		if req.Kind != "" && req.Kind != string(current.Kind) {
			return errKindChanged
		}
		if current.Kind == database.SellableKindDish && len(dishIDs) > 0 {
			return errDishesOnDish
		}
		available := current.IsAvailable
		if req.IsAvailable != nil {
			available = *req.IsAvailable
		}

		t, err := store.UpdateTemplate(r.Context(), database.UpdateTemplateParams{
			ID:            id,
			Name:          req.Name,
			BasePrice:     service.DecimalToNumeric(price),
			Description:   pgText(req.Description),
			ImageUrl:      pgText(req.ImageURL),
			ImagePublicID: pgText(req.ImagePublicID),
			IsAvailable:   available,
		})
		if err != nil {
			return err
		}
		if current.ImagePublicID.Valid && current.ImagePublicID.String != req.ImagePublicID {
			oldImage = current.ImagePublicID.String
		}

		if req.OptionCategoryIDs != nil {
			if err := store.ClearTemplateOptionCategories(r.Context(), id); err != nil {
				return err
			}
		}
		if req.DishIDs != nil {
			if err := store.ClearComboDishes(r.Context(), id); err != nil {
				return err
			}
		}
		if err := setLinks(r.Context(), store, t, categoryIDs, dishIDs); err != nil {
			return err
		}
		resp, err = h.load(r.Context(), store, id)
		return err
	})
	if err != nil {
		h.writeErr(w, "update template", err)
		return
	}

	if oldImage != "" {
		h.deleteImage(r.Context(), oldImage)
	}
	writeData(w, http.StatusOK, resp)
}

// Delete handles DELETE /templates/{id}. Templates already sold are kept for
// the order history.
func (h *TemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "template")
	if !ok {
		return
	}

	var image string
	err := h.inTx(r.Context(), func(store TemplateStore) error {
		t, err := store.GetTemplate(r.Context(), id)
		if err != nil {
			return err
		}
		n, err := store.CountInstancesByTemplate(r.Context(), id)
		if err != nil {
			return err
		}
		if n > 0 {
			return service.ErrTemplateInUse
		}
		if err := store.DeleteTemplate(r.Context(), id); err != nil {
			return err
		}
		if t.ImagePublicID.Valid {
			image = t.ImagePublicID.String
		}
		return nil
	})
	if err != nil {
		h.writeErr(w, "delete template", err)
		return
	}

	if image != "" {
		h.deleteImage(r.Context(), image)
	}
	writeData(w, http.StatusOK, map[string]uuid.UUID{"id": id})
}

// --- Helpers ---

func (req templateRequest) parse() (decimal.Decimal, []uuid.UUID, []uuid.UUID, error) {
	price, err := decimal.NewFromString(req.BasePrice)
	if err != nil || price.IsNegative() {
		return decimal.Zero, nil, nil, errBadPrice
	}
	categoryIDs, err := parseUUIDs(req.OptionCategoryIDs)
	if err != nil {
		return decimal.Zero, nil, nil, err
	}
	dishIDs, err := parseUUIDs(req.DishIDs)
	if err != nil {
		return decimal.Zero, nil, nil, err
	}
	return price, categoryIDs, dishIDs, nil
}

func setLinks(ctx context.Context, store TemplateStore, t database.SellableTemplate, categoryIDs, dishIDs []uuid.UUID) error {
	for i, cid := range categoryIDs {
		if err := store.LinkOptionCategory(ctx, database.LinkOptionCategoryParams{
			TemplateID: t.ID,
			CategoryID: cid,
			SortOrder:  int32(i),
		}); err != nil {
			return err
		}
	}
	for i, did := range dishIDs {
		dish, err := store.GetTemplate(ctx, did)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errUnknownRefs
			}
			return err
		}
		if dish.Kind != database.SellableKindDish {
			return errNotADish
		}
		if err := store.AddComboDish(ctx, database.AddComboDishParams{
			ComboID:  t.ID,
			DishID:   did,
			Position: int32(i),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (h *TemplateHandler) load(ctx context.Context, store TemplateStore, id uuid.UUID) (templateResponse, error) {
	t, err := store.GetTemplate(ctx, id)
	if err != nil {
		return templateResponse{}, err
	}
	resp := toTemplateResponse(t)

	cats, err := store.ListTemplateOptionCategories(ctx, id)
	if err != nil {
		return templateResponse{}, err
	}
	for _, c := range cats {
		resp.OptionCategories = append(resp.OptionCategories, optionCategoryRef{ID: c.ID, Name: c.Name, SortOrder: c.SortOrder})
	}

	if t.Kind == database.SellableKindCombo {
		dishes, err := store.ListComboDishes(ctx, id)
		if err != nil {
			return templateResponse{}, err
		}
		for _, d := range dishes {
			resp.Dishes = append(resp.Dishes, comboDishResponse{DishID: d.DishID, Name: d.DishName, Position: d.Position})
		}
	}
	return resp, nil
}

func (h *TemplateHandler) inTx(ctx context.Context, fn func(store TemplateStore) error) error {
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

// deleteImage removes a replaced or orphaned image. Failures are logged only;
// a leftover remote image never blocks the catalog change.
func (h *TemplateHandler) deleteImage(ctx context.Context, publicID string) {
	if err := h.images.DeleteImage(ctx, publicID); err != nil {
		log.Printf("WARN: delete image %s: %v", publicID, err)
	}
}

func (h *TemplateHandler) writeErr(w http.ResponseWriter, op string, err error) {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		writeError(w, http.StatusNotFound, service.ErrTemplateNotFound.Error())
	case errors.Is(err, errNotADish), errors.Is(err, errDishesOnDish), errors.Is(err, errUnknownRefs), errors.Is(err, errKindChanged):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &pgErr) && pgErr.Code == "23503":
		if op == "delete template" {
			writeError(w, http.StatusConflict, errTemplateLinked.Error())
		} else {
			writeError(w, http.StatusBadRequest, errUnknownRefs.Error())
		}
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		writeError(w, http.StatusBadRequest, "duplicate option category or dish position")
	case statusFor(err) != http.StatusInternalServerError:
		writeServiceError(w, op, err)
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
