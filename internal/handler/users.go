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
	"golang.org/x/crypto/bcrypt"
)

// UserStore defines the database methods needed by staff account handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type UserStore interface {
	ListUsersByStore(ctx context.Context, storeID uuid.UUID) ([]database.User, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	UpdateUser(ctx context.Context, arg database.UpdateUserParams) (database.User, error)
	DeleteUser(ctx context.Context, arg database.DeleteUserParams) (int64, error)
}

// UserHandler manages the admin and staff accounts of a store.
type UserHandler struct {
	store UserStore
}

func NewUserHandler(store UserStore) *UserHandler {
	return &UserHandler{store: store}
}

// RegisterRoutes registers staff account endpoints.
// Expected to be mounted inside a store-scoped subrouter: /stores/{sid}/users
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.RequireRole(enum.UserRoleAdmin))
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{uid}", h.Update)
	r.Delete("/{uid}", h.Delete)
}

// --- Request / Response types ---

type createUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"required,max=100"`
	Role     string `json:"role" validate:"required,oneof=ADMIN STAFF"`
}

type updateUserRequest struct {
	FullName string `json:"full_name" validate:"required,max=100"`
	Role     string `json:"role" validate:"required,oneof=ADMIN STAFF"`
	Password string `json:"password" validate:"omitempty,min=8"`
}

type userDetailResponse struct {
	ID        uuid.UUID `json:"id"`
	StoreID   uuid.UUID `json:"store_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserDetailResponse(u database.User) userDetailResponse {
	return userDetailResponse{
		ID:        u.ID,
		StoreID:   u.StoreID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// --- Handlers ---

// List returns all accounts of the store.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	storeID, ok := urlUUID(w, r, "sid", "store")
	if !ok {
		return
	}

	users, err := h.store.ListUsersByStore(r.Context(), storeID)
	if err != nil {
		log.Printf("ERROR: list users: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]userDetailResponse, len(users))
	for i, u := range users {
		resp[i] = toUserDetailResponse(u)
	}
	writeData(w, http.StatusOK, resp)
}

// Create adds an account to the store.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	storeID, ok := urlUUID(w, r, "sid", "store")
	if !ok {
		return
	}

	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("ERROR: hash password: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	u, err := h.store.CreateUser(r.Context(), database.CreateUserParams{
		StoreID:        storeID,
		Email:          req.Email,
		FullName:       req.FullName,
		HashedPassword: string(hashed),
		Role:           req.Role,
	})
	if err != nil {
		if pgErrCode(err) == "23505" {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		log.Printf("ERROR: create user: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeData(w, http.StatusCreated, toUserDetailResponse(u))
}

// Update changes name and role, and the password when one is given.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	storeID, ok := urlUUID(w, r, "sid", "store")
	if !ok {
		return
	}
	userID, ok := urlUUID(w, r, "uid", "user")
	if !ok {
		return
	}

	var req updateUserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	// An admin cannot demote itself and lock the store out.
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil && claims.UserID == userID && req.Role != enum.UserRoleAdmin {
		writeError(w, http.StatusBadRequest, "cannot change your own role")
		return
	}

	params := database.UpdateUserParams{
		ID:       userID,
		StoreID:  storeID,
		FullName: req.FullName,
		Role:     req.Role,
	}
	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("ERROR: hash password: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		s := string(hashed)
		params.HashedPassword = &s
	}

	u, err := h.store.UpdateUser(r.Context(), params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("ERROR: update user: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeData(w, http.StatusOK, toUserDetailResponse(u))
}

// Delete removes an account. Accounts referenced by stock history are kept.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	storeID, ok := urlUUID(w, r, "sid", "store")
	if !ok {
		return
	}
	userID, ok := urlUUID(w, r, "uid", "user")
	if !ok {
		return
	}

	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil && claims.UserID == userID {
		writeError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	n, err := h.store.DeleteUser(r.Context(), database.DeleteUserParams{ID: userID, StoreID: storeID})
	if err != nil {
		if pgErrCode(err) == "23503" {
			writeError(w, http.StatusConflict, "user has recorded stock changes")
			return
		}
		log.Printf("ERROR: delete user: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
