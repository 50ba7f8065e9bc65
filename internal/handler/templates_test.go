package handler_test

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tabemono-pos/api/internal/database"
	"github.com/tabemono-pos/api/internal/enum"
	"github.com/tabemono-pos/api/internal/handler"
)

// --- Mock store ---

type mockTemplateStore struct {
	templates  map[uuid.UUID]database.SellableTemplate
	categories map[uuid.UUID]string
	links      map[uuid.UUID][]database.ListTemplateOptionCategoriesRow
	dishes     map[uuid.UUID][]database.ListComboDishesRow
	instances  map[uuid.UUID]int64
}

func newMockTemplateStore() *mockTemplateStore {
	return &mockTemplateStore{
		templates:  make(map[uuid.UUID]database.SellableTemplate),
		categories: make(map[uuid.UUID]string),
		links:      make(map[uuid.UUID][]database.ListTemplateOptionCategoriesRow),
		dishes:     make(map[uuid.UUID][]database.ListComboDishesRow),
		instances:  make(map[uuid.UUID]int64),
	}
}

func (m *mockTemplateStore) add(kind database.SellableKind, name string) database.SellableTemplate {
	t := database.SellableTemplate{
		ID:          uuid.New(),
		Kind:        kind,
		Name:        name,
		BasePrice:   numeric("100"),
		IsAvailable: true,
		ActualStock: -1,
	}
	m.templates[t.ID] = t
	return t
}

func (m *mockTemplateStore) GetTemplate(_ context.Context, id uuid.UUID) (database.SellableTemplate, error) {
	t, ok := m.templates[id]
	if !ok {
		return database.SellableTemplate{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *mockTemplateStore) ListTemplates(_ context.Context, kind database.NullSellableKind) ([]database.SellableTemplate, error) {
	var result []database.SellableTemplate
	for _, t := range m.templates {
		if !kind.Valid || t.Kind == kind.SellableKind {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *mockTemplateStore) CreateTemplate(_ context.Context, arg database.CreateTemplateParams) (database.SellableTemplate, error) {
	t := database.SellableTemplate{
		ID:            uuid.New(),
		Kind:          arg.Kind,
		Name:          arg.Name,
		BasePrice:     arg.BasePrice,
		Description:   arg.Description,
		ImageUrl:      arg.ImageUrl,
		ImagePublicID: arg.ImagePublicID,
		IsAvailable:   arg.IsAvailable,
		ActualStock:   -1,
	}
	m.templates[t.ID] = t
	return t, nil
}

func (m *mockTemplateStore) UpdateTemplate(_ context.Context, arg database.UpdateTemplateParams) (database.SellableTemplate, error) {
	t, ok := m.templates[arg.ID]
	if !ok {
		return database.SellableTemplate{}, pgx.ErrNoRows
	}
	t.Name = arg.Name
	t.BasePrice = arg.BasePrice
	t.Description = arg.Description
	t.ImageUrl = arg.ImageUrl
	t.ImagePublicID = arg.ImagePublicID
	t.IsAvailable = arg.IsAvailable
	m.templates[arg.ID] = t
	return t, nil
}

func (m *mockTemplateStore) DeleteTemplate(_ context.Context, id uuid.UUID) error {
	delete(m.templates, id)
	return nil
}

func (m *mockTemplateStore) CountInstancesByTemplate(_ context.Context, id uuid.UUID) (int64, error) {
	return m.instances[id], nil
}

func (m *mockTemplateStore) ListTemplateOptionCategories(_ context.Context, id uuid.UUID) ([]database.ListTemplateOptionCategoriesRow, error) {
	return m.links[id], nil
}

func (m *mockTemplateStore) ClearTemplateOptionCategories(_ context.Context, id uuid.UUID) error {
	delete(m.links, id)
	return nil
}

func (m *mockTemplateStore) LinkOptionCategory(_ context.Context, arg database.LinkOptionCategoryParams) error {
	name, ok := m.categories[arg.CategoryID]
	if !ok {
		return &pgconn.PgError{Code: "23503"}
	}
	m.links[arg.TemplateID] = append(m.links[arg.TemplateID], database.ListTemplateOptionCategoriesRow{
		ID: arg.CategoryID, Name: name, SortOrder: arg.SortOrder,
	})
	return nil
}

func (m *mockTemplateStore) ListComboDishes(_ context.Context, id uuid.UUID) ([]database.ListComboDishesRow, error) {
	return m.dishes[id], nil
}

func (m *mockTemplateStore) ClearComboDishes(_ context.Context, id uuid.UUID) error {
	delete(m.dishes, id)
	return nil
}

func (m *mockTemplateStore) AddComboDish(_ context.Context, arg database.AddComboDishParams) error {
	m.dishes[arg.ComboID] = append(m.dishes[arg.ComboID], database.ListComboDishesRow{
		ComboID: arg.ComboID, DishID: arg.DishID, Position: arg.Position, DishName: m.templates[arg.DishID].Name,
	})
	return nil
}

// --- Mock TxBeginner ---

type mockTx struct {
	committed  bool
	rolledBack bool
}

func (m *mockTx) Commit(context.Context) error {
	m.committed = true
	return nil
}

func (m *mockTx) Rollback(context.Context) error {
	if !m.committed {
		m.rolledBack = true
	}
	return nil
}

func (m *mockTx) Begin(context.Context) (pgx.Tx, error) { return nil, nil }

func (m *mockTx) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockTx) Query(context.Context, string, ...interface{}) (pgx.Rows, error) { return nil, nil }

func (m *mockTx) QueryRow(context.Context, string, ...interface{}) pgx.Row { return nil }

func (m *mockTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (m *mockTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }

func (m *mockTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (m *mockTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (m *mockTx) Conn() *pgx.Conn { return nil }

type mockPool struct {
	txs     []*mockTx
	beginFn func(ctx context.Context) (pgx.Tx, error)
}

func (m *mockPool) Begin(ctx context.Context) (pgx.Tx, error) {
	if m.beginFn != nil {
		return m.beginFn(ctx)
	}
	tx := &mockTx{}
	m.txs = append(m.txs, tx)
	return tx, nil
}

// --- Mock image deleter ---

type recordingImages struct {
	deleted []string
	err     error
}

func (m *recordingImages) DeleteImage(_ context.Context, publicID string) error {
	m.deleted = append(m.deleted, publicID)
	return m.err
}

// --- Helpers ---

func newTemplateRouter(store *mockTemplateStore, pool *mockPool, images *recordingImages, role string) *chi.Mux {
	newStore := func(database.DBTX) handler.TemplateStore { return store }
	h := handler.NewTemplateHandler(store, pool, newStore, images)
	r := chi.NewRouter()
	r.Use(withClaims(uuid.New(), uuid.Nil, role))
	r.Route("/templates", h.RegisterRoutes)
	return r
}

// --- Tests ---

func TestCreateTemplate_DishDefaultsAndLinks(t *testing.T) {
	store := newMockTemplateStore()
	catID := uuid.New()
	store.categories[catID] = "Spice"
	pool := &mockPool{}
	router := newTemplateRouter(store, pool, &recordingImages{}, enum.UserRoleAdmin)

	rr := postJSON(t, router, "/templates", map[string]interface{}{
		"name":                "Curry Rice",
		"base_price":          "95.5",
		"option_category_ids": []string{catID.String()},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	data := decodeData(t, rr)
	if data["kind"] != "dish" {
		t.Errorf("kind: got %v, want dish", data["kind"])
	}
	if data["base_price"] != "95.50" {
		t.Errorf("base_price: got %v", data["base_price"])
	}
	if data["is_available"] != true {
		t.Errorf("is_available: got %v", data["is_available"])
	}
	cats := data["option_categories"].([]interface{})
	if len(cats) != 1 || cats[0].(map[string]interface{})["name"] != "Spice" {
		t.Errorf("option_categories: got %v", cats)
	}
	if len(pool.txs) != 1 || !pool.txs[0].committed {
		t.Error("expected one committed transaction")
	}
}

func TestCreateTemplate_Combo(t *testing.T) {
	store := newMockTemplateStore()
	dish := store.add(database.SellableKindDish, "Katsu")
	otherCombo := store.add(database.SellableKindCombo, "Set A")
	router := newTemplateRouter(store, &mockPool{}, &recordingImages{}, enum.UserRoleAdmin)

	rr := postJSON(t, router, "/templates", map[string]interface{}{
		"kind":       "combo",
		"name":       "Lunch Set",
		"base_price": "150",
		"dish_ids":   []string{dish.ID.String()},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	dishes := decodeData(t, rr)["dishes"].([]interface{})
	if len(dishes) != 1 || dishes[0].(map[string]interface{})["name"] != "Katsu" {
		t.Errorf("dishes: got %v", dishes)
	}

	pool := &mockPool{}
	router = newTemplateRouter(store, pool, &recordingImages{}, enum.UserRoleAdmin)
	rr = postJSON(t, router, "/templates", map[string]interface{}{
		"kind":       "combo",
		"name":       "Nested",
		"base_price": "150",
		"dish_ids":   []string{otherCombo.ID.String()},
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("combo in combo: got %d, want 400", rr.Code)
	}
	if len(pool.txs) != 1 || pool.txs[0].committed || !pool.txs[0].rolledBack {
		t.Error("expected the transaction to roll back")
	}
}

func TestCreateTemplate_Rejections(t *testing.T) {
	store := newMockTemplateStore()
	dish := store.add(database.SellableKindDish, "Katsu")

	tests := []struct {
		name       string
		role       string
		body       map[string]interface{}
		wantStatus int
	}{
		{"staff", enum.UserRoleStaff, map[string]interface{}{"name": "x", "base_price": "1"}, http.StatusForbidden},
		{"missing name", enum.UserRoleAdmin, map[string]interface{}{"base_price": "1"}, http.StatusBadRequest},
		{"negative price", enum.UserRoleAdmin, map[string]interface{}{"name": "x", "base_price": "-1"}, http.StatusBadRequest},
		{"bad kind", enum.UserRoleAdmin, map[string]interface{}{"name": "x", "base_price": "1", "kind": "drink"}, http.StatusBadRequest},
		{"dishes on dish", enum.UserRoleAdmin, map[string]interface{}{"name": "x", "base_price": "1", "dish_ids": []string{dish.ID.String()}}, http.StatusBadRequest},
		{"unknown category", enum.UserRoleAdmin, map[string]interface{}{"name": "x", "base_price": "1", "option_category_ids": []string{uuid.NewString()}}, http.StatusBadRequest},
		{"unknown dish", enum.UserRoleAdmin, map[string]interface{}{"name": "x", "base_price": "1", "kind": "combo", "dish_ids": []string{uuid.NewString()}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postJSON(t, newTemplateRouter(store, &mockPool{}, &recordingImages{}, tt.role), "/templates", tt.body)
			if rr.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d; body: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}
}

func TestUpdateTemplate_ReplacesImage(t *testing.T) {
	store := newMockTemplateStore()
	dish := store.add(database.SellableKindDish, "Katsu")
	dish.ImagePublicID = pgtype.Text{String: "old-img", Valid: true}
	store.templates[dish.ID] = dish
	images := &recordingImages{err: errors.New("cloud down")}
	router := newTemplateRouter(store, &mockPool{}, images, enum.UserRoleAdmin)

	rr := doJSON(t, router, "PUT", "/templates/"+dish.ID.String(), map[string]interface{}{
		"name":            "Katsu Deluxe",
		"base_price":      "130",
		"image_public_id": "new-img",
		"is_available":    false,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	data := decodeData(t, rr)
	if data["name"] != "Katsu Deluxe" || data["is_available"] != false {
		t.Errorf("got %v", data)
	}
	if len(images.deleted) != 1 || images.deleted[0] != "old-img" {
		t.Errorf("deleted images: got %v", images.deleted)
	}
}

func TestUpdateTemplate_KindIsFixed(t *testing.T) {
	store := newMockTemplateStore()
	dish := store.add(database.SellableKindDish, "Katsu")
	router := newTemplateRouter(store, &mockPool{}, &recordingImages{}, enum.UserRoleAdmin)

	rr := doJSON(t, router, "PUT", "/templates/"+dish.ID.String(), map[string]interface{}{
		"kind": "combo", "name": "Katsu", "base_price": "100",
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", rr.Code)
	}

	rr = doJSON(t, router, "PUT", "/templates/"+uuid.NewString(), map[string]interface{}{
		"name": "Ghost", "base_price": "100",
	})
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown: got %d, want 404", rr.Code)
	}
}

func TestDeleteTemplate(t *testing.T) {
	store := newMockTemplateStore()
	sold := store.add(database.SellableKindDish, "Sold")
	store.instances[sold.ID] = 3
	unsold := store.add(database.SellableKindDish, "Unsold")
	unsold.ImagePublicID = pgtype.Text{String: "img-1", Valid: true}
	store.templates[unsold.ID] = unsold
	images := &recordingImages{}
	router := newTemplateRouter(store, &mockPool{}, images, enum.UserRoleAdmin)

	rr := doJSON(t, router, "DELETE", "/templates/"+sold.ID.String(), nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("sold: got %d, want 409", rr.Code)
	}
	if _, ok := store.templates[sold.ID]; !ok {
		t.Error("sold template must be kept")
	}

	rr = doJSON(t, router, "DELETE", "/templates/"+unsold.ID.String(), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("unsold: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if len(images.deleted) != 1 || images.deleted[0] != "img-1" {
		t.Errorf("deleted images: got %v", images.deleted)
	}

	rr = doJSON(t, router, "DELETE", "/templates/"+unsold.ID.String(), nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("again: got %d, want 404", rr.Code)
	}
}

func TestListTemplates_KindFilter(t *testing.T) {
	store := newMockTemplateStore()
	store.add(database.SellableKindDish, "A dish")
	store.add(database.SellableKindCombo, "B combo")
	router := newTemplateRouter(store, &mockPool{}, &recordingImages{}, enum.UserRoleStaff)

	if got := decodeList(t, doJSON(t, router, "GET", "/templates", nil)); len(got) != 2 {
		t.Errorf("all: got %d, want 2", len(got))
	}
	got := decodeList(t, doJSON(t, router, "GET", "/templates?kind=combo", nil))
	if len(got) != 1 || got[0].(map[string]interface{})["name"] != "B combo" {
		t.Errorf("combo: got %v", got)
	}
	if rr := doJSON(t, router, "GET", "/templates?kind=drink", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("bad kind: got %d, want 400", rr.Code)
	}
}

func TestTemplateWrite_BeginFailure(t *testing.T) {
	pool := &mockPool{beginFn: func(context.Context) (pgx.Tx, error) { return nil, errors.New("pool closed") }}
	router := newTemplateRouter(newMockTemplateStore(), pool, &recordingImages{}, enum.UserRoleAdmin)

	rr := postJSON(t, router, "/templates", map[string]interface{}{"name": "x", "base_price": "1"})
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", rr.Code)
	}
}
