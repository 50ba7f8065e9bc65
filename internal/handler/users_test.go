package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tabemono-pos/api/internal/database"
	"github.com/tabemono-pos/api/internal/enum"
	"github.com/tabemono-pos/api/internal/handler"
	"golang.org/x/crypto/bcrypt"
)

// --- Mock store ---

type mockUserStore struct {
	users   map[uuid.UUID]database.User
	history map[uuid.UUID]bool // users referenced by stock change records
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: map[uuid.UUID]database.User{}, history: map[uuid.UUID]bool{}}
}

func (m *mockUserStore) ListUsersByStore(_ context.Context, storeID uuid.UUID) ([]database.User, error) {
	result := []database.User{}
	for _, u := range m.users {
		if u.StoreID == storeID {
			result = append(result, u)
		}
	}
	return result, nil
}

func (m *mockUserStore) CreateUser(_ context.Context, arg database.CreateUserParams) (database.User, error) {
	for _, existing := range m.users {
		if existing.Email == arg.Email {
			return database.User{}, &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
		}
	}
	u := database.User{
		ID:             uuid.New(),
		StoreID:        arg.StoreID,
		Email:          arg.Email,
		FullName:       arg.FullName,
		HashedPassword: arg.HashedPassword,
		Role:           arg.Role,
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserStore) UpdateUser(_ context.Context, arg database.UpdateUserParams) (database.User, error) {
	u, ok := m.users[arg.ID]
	if !ok || u.StoreID != arg.StoreID {
		return database.User{}, pgx.ErrNoRows
	}
	u.FullName = arg.FullName
	u.Role = arg.Role
	if arg.HashedPassword != nil {
		u.HashedPassword = *arg.HashedPassword
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserStore) DeleteUser(_ context.Context, arg database.DeleteUserParams) (int64, error) {
	u, ok := m.users[arg.ID]
	if !ok || u.StoreID != arg.StoreID {
		return 0, nil
	}
	if m.history[arg.ID] {
		return 0, &pgconn.PgError{Code: "23503"}
	}
	delete(m.users, arg.ID)
	return 1, nil
}

// --- Helpers ---

func newUserRouter(store handler.UserStore, adminID uuid.UUID, role string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(withClaims(adminID, uuid.Nil, role))
	r.Route("/stores/{sid}/users", handler.NewUserHandler(store).RegisterRoutes)
	return r
}

// --- Tests ---

func TestCreateUser_HashesPasswordAndHidesIt(t *testing.T) {
	store := newMockUserStore()
	storeID := uuid.New()
	r := newUserRouter(store, uuid.New(), enum.UserRoleAdmin)

	rr := postJSON(t, r, "/stores/"+storeID.String()+"/users", map[string]string{
		"email":     "cook@example.com",
		"password":  "secret123",
		"full_name": "Line Cook",
		"role":      enum.UserRoleStaff,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	data := decodeData(t, rr)
	if _, ok := data["hashed_password"]; ok {
		t.Error("response leaks hashed_password")
	}
	if data["store_id"] != storeID.String() {
		t.Errorf("store_id: got %v, want %s", data["store_id"], storeID)
	}

	var created database.User
	for _, u := range store.users {
		created = u
	}
	if err := bcrypt.CompareHashAndPassword([]byte(created.HashedPassword), []byte("secret123")); err != nil {
		t.Errorf("stored password is not a bcrypt hash of the input: %v", err)
	}
}

func TestCreateUser_Rejections(t *testing.T) {
	store := newMockUserStore()
	storeID := uuid.New()
	takenID := uuid.New()
	store.users[takenID] = database.User{ID: takenID, StoreID: storeID, Email: "taken@example.com"}

	valid := func(mut func(map[string]string)) map[string]string {
		body := map[string]string{
			"email": "new@example.com", "password": "secret123", "full_name": "New", "role": enum.UserRoleStaff,
		}
		mut(body)
		return body
	}

	tests := []struct {
		name       string
		role       string
		body       map[string]string
		wantStatus int
	}{
		{"staff forbidden", enum.UserRoleStaff, valid(func(map[string]string) {}), http.StatusForbidden},
		{"customer role rejected", enum.UserRoleAdmin, valid(func(b map[string]string) { b["role"] = enum.UserRoleCustomer }), http.StatusBadRequest},
		{"short password", enum.UserRoleAdmin, valid(func(b map[string]string) { b["password"] = "short" }), http.StatusBadRequest},
		{"bad email", enum.UserRoleAdmin, valid(func(b map[string]string) { b["email"] = "nope" }), http.StatusBadRequest},
		{"missing name", enum.UserRoleAdmin, valid(func(b map[string]string) { delete(b, "full_name") }), http.StatusBadRequest},
		{"duplicate email", enum.UserRoleAdmin, valid(func(b map[string]string) { b["email"] = "taken@example.com" }), http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postJSON(t, newUserRouter(store, uuid.New(), tt.role), "/stores/"+storeID.String()+"/users", tt.body)
			if rr.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d; body: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}
}

func TestListUsers_OnlyThisStore(t *testing.T) {
	store := newMockUserStore()
	storeID := uuid.New()
	for _, email := range []string{"a@example.com", "b@example.com"} {
		id := uuid.New()
		store.users[id] = database.User{ID: id, StoreID: storeID, Email: email, Role: enum.UserRoleStaff}
	}
	other := uuid.New()
	store.users[other] = database.User{ID: other, StoreID: uuid.New(), Email: "c@example.com"}

	rr := doJSON(t, newUserRouter(store, uuid.New(), enum.UserRoleAdmin), http.MethodGet, "/stores/"+storeID.String()+"/users", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if got := len(decodeList(t, rr)); got != 2 {
		t.Errorf("users: got %d, want 2", got)
	}
}

func TestUpdateUser(t *testing.T) {
	store := newMockUserStore()
	storeID := uuid.New()
	adminID := uuid.New()
	staffID := uuid.New()
	store.users[staffID] = database.User{ID: staffID, StoreID: storeID, Email: "s@example.com", HashedPassword: "old", Role: enum.UserRoleStaff}
	store.users[adminID] = database.User{ID: adminID, StoreID: storeID, Email: "a@example.com", Role: enum.UserRoleAdmin}
	r := newUserRouter(store, adminID, enum.UserRoleAdmin)
	base := "/stores/" + storeID.String() + "/users/"

	t.Run("promote without password keeps hash", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodPut, base+staffID.String(), map[string]string{
			"full_name": "Shift Lead", "role": enum.UserRoleAdmin,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
		}
		if got := store.users[staffID]; got.Role != enum.UserRoleAdmin || got.HashedPassword != "old" {
			t.Errorf("user after update: %+v", got)
		}
	})

	t.Run("password is rehashed", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodPut, base+staffID.String(), map[string]string{
			"full_name": "Shift Lead", "role": enum.UserRoleStaff, "password": "newsecret",
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("status: got %d; body: %s", rr.Code, rr.Body.String())
		}
		if err := bcrypt.CompareHashAndPassword([]byte(store.users[staffID].HashedPassword), []byte("newsecret")); err != nil {
			t.Errorf("password not updated: %v", err)
		}
	})

	t.Run("self demotion rejected", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodPut, base+adminID.String(), map[string]string{
			"full_name": "Me", "role": enum.UserRoleStaff,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
		}
	})

	t.Run("other store is not found", func(t *testing.T) {
		rr := doJSON(t, r, http.MethodPut, "/stores/"+uuid.NewString()+"/users/"+staffID.String(), map[string]string{
			"full_name": "X", "role": enum.UserRoleStaff,
		})
		if rr.Code != http.StatusNotFound {
			t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
		}
	})
}

func TestDeleteUser(t *testing.T) {
	store := newMockUserStore()
	storeID := uuid.New()
	adminID := uuid.New()
	staffID := uuid.New()
	auditedID := uuid.New()
	store.users[staffID] = database.User{ID: staffID, StoreID: storeID}
	store.users[auditedID] = database.User{ID: auditedID, StoreID: storeID}
	store.history[auditedID] = true
	r := newUserRouter(store, adminID, enum.UserRoleAdmin)
	base := "/stores/" + storeID.String() + "/users/"

	tests := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{"removes staff", staffID.String(), http.StatusNoContent},
		{"already removed", staffID.String(), http.StatusNotFound},
		{"referenced by stock history", auditedID.String(), http.StatusConflict},
		{"self", adminID.String(), http.StatusBadRequest},
		{"malformed id", "nope", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, r, http.MethodDelete, base+tt.id, nil)
			if rr.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d; body: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}
	if _, ok := store.users[auditedID]; !ok {
		t.Error("audited user was removed")
	}
}
