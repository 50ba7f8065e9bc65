package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tabemono-pos/api/internal/auth"
	"github.com/tabemono-pos/api/internal/enum"
	"github.com/tabemono-pos/api/internal/middleware"
)

const testSecret = "test-secret"

func TestAuthMiddleware_ValidToken(t *testing.T) {
	userID := uuid.New()
	storeID := uuid.New()
	token, _ := auth.GenerateToken(testSecret, userID, storeID, enum.UserRoleStaff)

	handler := middleware.Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			t.Fatal("expected claims in context")
		}
		if claims.UserID != userID {
			t.Errorf("user ID: got %v, want %v", claims.UserID, userID)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	handler := middleware.Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	handler := middleware.Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer invalid-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

// storeRouter mounts RequireStore the way the API router does.
func storeRouter(t *testing.T, wantCalled bool) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testSecret))
	r.With(middleware.RequireStore).Get("/stores/{sid}/orders", func(w http.ResponseWriter, r *http.Request) {
		if !wantCalled {
			t.Fatal("handler should not be called")
		}
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func TestRequireStore(t *testing.T) {
	storeID := uuid.New()
	otherStoreID := uuid.New()

	tests := []struct {
		name     string
		role     string
		tokenSID uuid.UUID
		pathSID  string
		want     int
	}{
		{"matching store", enum.UserRoleStaff, storeID, storeID.String(), http.StatusOK},
		{"other store", enum.UserRoleStaff, storeID, otherStoreID.String(), http.StatusForbidden},
		{"admin bypasses check", enum.UserRoleAdmin, uuid.Nil, otherStoreID.String(), http.StatusOK},
		{"customer rejected", enum.UserRoleCustomer, uuid.Nil, storeID.String(), http.StatusForbidden},
		{"malformed store ID", enum.UserRoleStaff, storeID, "not-a-uuid", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, _ := auth.GenerateToken(testSecret, uuid.New(), tt.tokenSID, tt.role)
			req := httptest.NewRequest("GET", "/stores/"+tt.pathSID+"/orders", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rr := httptest.NewRecorder()
			storeRouter(t, tt.want == http.StatusOK).ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	token, _ := auth.GenerateToken(testSecret, uuid.New(), uuid.New(), enum.UserRoleStaff)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// staff trying to reach an admin-only endpoint
	handler := middleware.Authenticate(testSecret)(middleware.RequireRole(enum.UserRoleAdmin)(inner))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}
