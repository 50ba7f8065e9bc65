package handler_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tabemono-pos/api/internal/database"
	"github.com/tabemono-pos/api/internal/enum"
	"github.com/tabemono-pos/api/internal/handler"
	"github.com/tabemono-pos/api/internal/service"
)

// --- Mock store ---

type mockCustomerStore struct {
	customers []database.Customer
	orders    []database.Order

	gotSearch database.SearchCustomersParams
	gotOrders database.ListCustomerOrdersParams
}

func (m *mockCustomerStore) SearchCustomers(_ context.Context, arg database.SearchCustomersParams) ([]database.Customer, error) {
	m.gotSearch = arg
	result := []database.Customer{}
	for _, c := range m.customers {
		if arg.Query == "" || strings.Contains(c.Email, arg.Query) || strings.Contains(c.Name, arg.Query) {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *mockCustomerStore) GetCustomerByID(_ context.Context, id uuid.UUID) (database.Customer, error) {
	for _, c := range m.customers {
		if c.ID == id {
			return c, nil
		}
	}
	return database.Customer{}, pgx.ErrNoRows
}

func (m *mockCustomerStore) GetCustomerStats(_ context.Context, customerID uuid.UUID) (database.GetCustomerStatsRow, error) {
	var row database.GetCustomerStatsRow
	total := decimal.Zero
	for _, o := range m.orders {
		if o.CustomerID.Valid && uuid.UUID(o.CustomerID.Bytes) == customerID && o.Status == database.OrderStatusCompleted {
			row.TotalOrders++
			total = total.Add(service.NumericToDecimal(o.TotalMoney))
		}
	}
	avg := decimal.Zero
	if row.TotalOrders > 0 {
		avg = total.Div(decimal.NewFromInt(row.TotalOrders))
	}
	row.TotalSpend = service.DecimalToNumeric(total)
	row.AvgTicket = service.DecimalToNumeric(avg)
	return row, nil
}

func (m *mockCustomerStore) ListCustomerOrders(_ context.Context, arg database.ListCustomerOrdersParams) ([]database.Order, error) {
	m.gotOrders = arg
	result := []database.Order{}
	for _, o := range m.orders {
		if o.CustomerID.Valid && uuid.UUID(o.CustomerID.Bytes) == arg.CustomerID {
			result = append(result, o)
		}
	}
	return result, nil
}

// --- Helpers ---

func newCustomerRouter(store handler.CustomerStore, role string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(withClaims(uuid.New(), uuid.Nil, role))
	r.Route("/customers", handler.NewCustomerHandler(store).RegisterRoutes)
	return r
}

func customerOrder(customerID uuid.UUID, status database.OrderStatus, total string) database.Order {
	return database.Order{
		ID:           uuid.New(),
		StoreID:      uuid.New(),
		OrderNumber:  1,
		BusinessDate: toDate("2026-03-01"),
		Status:       status,
		TotalMoney:   numeric(total),
		CustomerID:   pgtype.UUID{Bytes: customerID, Valid: true},
		CreatedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// --- Tests ---

func TestCustomerSearch(t *testing.T) {
	store := &mockCustomerStore{customers: []database.Customer{
		{ID: uuid.New(), Name: "Aiko", Email: "aiko@example.com"},
		{ID: uuid.New(), Name: "Budi", Email: "budi@example.com"},
	}}
	r := newCustomerRouter(store, enum.UserRoleStaff)

	rr := doJSON(t, r, http.MethodGet, "/customers?q=%20budi%20&limit=999", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if store.gotSearch.Query != "budi" || store.gotSearch.Limit != 200 {
		t.Errorf("search params: %+v", store.gotSearch)
	}
	list := decodeList(t, rr)
	if len(list) != 1 || list[0].(map[string]interface{})["name"] != "Budi" {
		t.Errorf("results: %v", list)
	}
	if _, ok := list[0].(map[string]interface{})["hashed_password"]; ok {
		t.Error("response leaks hashed_password")
	}
}

func TestCustomerGet(t *testing.T) {
	id := uuid.New()
	store := &mockCustomerStore{customers: []database.Customer{{ID: id, Name: "Aiko", Email: "aiko@example.com"}}}

	tests := []struct {
		name       string
		role       string
		path       string
		wantStatus int
	}{
		{"staff", enum.UserRoleStaff, "/customers/" + id.String(), http.StatusOK},
		{"admin", enum.UserRoleAdmin, "/customers/" + id.String(), http.StatusOK},
		{"customer forbidden", enum.UserRoleCustomer, "/customers/" + id.String(), http.StatusForbidden},
		{"unknown", enum.UserRoleStaff, "/customers/" + uuid.NewString(), http.StatusNotFound},
		{"malformed", enum.UserRoleStaff, "/customers/nope", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, newCustomerRouter(store, tt.role), http.MethodGet, tt.path, nil)
			if rr.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d; body: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}
}

func TestCustomerStats_CountsCompletedOnly(t *testing.T) {
	id := uuid.New()
	store := &mockCustomerStore{
		customers: []database.Customer{{ID: id, Name: "Aiko"}},
		orders: []database.Order{
			customerOrder(id, database.OrderStatusCompleted, "100"),
			customerOrder(id, database.OrderStatusCompleted, "50"),
			customerOrder(id, database.OrderStatusCanceled, "999"),
		},
	}

	rr := doJSON(t, newCustomerRouter(store, enum.UserRoleStaff), http.MethodGet, "/customers/"+id.String()+"/stats", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	data := decodeData(t, rr)
	if data["total_orders"] != float64(2) || data["total_spend"] != "150.00" || data["avg_ticket"] != "75.00" {
		t.Errorf("stats: %v", data)
	}
}

func TestCustomerOrders(t *testing.T) {
	id := uuid.New()
	store := &mockCustomerStore{
		customers: []database.Customer{{ID: id, Name: "Aiko"}},
		orders: []database.Order{
			customerOrder(id, database.OrderStatusUnpaid, "40"),
			customerOrder(uuid.New(), database.OrderStatusUnpaid, "10"),
		},
	}

	rr := doJSON(t, newCustomerRouter(store, enum.UserRoleAdmin), http.MethodGet,
		"/customers/"+id.String()+"/orders?limit=5&offset=10", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if store.gotOrders.Limit != 5 || store.gotOrders.Offset != 10 {
		t.Errorf("paging: %+v", store.gotOrders)
	}
	list := decodeList(t, rr)
	if len(list) != 1 {
		t.Fatalf("orders: got %d, want 1", len(list))
	}
	if got := list[0].(map[string]interface{})["total_money"]; got != "40.00" {
		t.Errorf("total_money: got %v, want 40.00", got)
	}
}
