package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tabemono-pos/api/internal/auth"
	"github.com/tabemono-pos/api/internal/database"
	"github.com/tabemono-pos/api/internal/enum"
	"golang.org/x/crypto/bcrypt"
)

// AuthStore defines the database methods needed by auth handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type AuthStore interface {
	GetUserByEmail(ctx context.Context, email string) (database.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	GetCustomerByEmail(ctx context.Context, email string) (database.Customer, error)
	GetCustomerByID(ctx context.Context, id uuid.UUID) (database.Customer, error)
	CreateCustomer(ctx context.Context, arg database.CreateCustomerParams) (database.Customer, error)
}

// AuthHandler handles authentication endpoints for staff and customers.
type AuthHandler struct {
	store     AuthStore
	jwtSecret string
}

func NewAuthHandler(store AuthStore, jwtSecret string) *AuthHandler {
	return &AuthHandler{store: store, jwtSecret: jwtSecret}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
	r.Post("/auth/customer-login", h.CustomerLogin)
	r.Post("/auth/customer-register", h.CustomerRegister)
	r.Post("/auth/refresh", h.Refresh)
}

// --- Request / Response types ---

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type tokenResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	Account      accountResponse `json:"account"`
}

type accountResponse struct {
	ID      uuid.UUID  `json:"id"`
	StoreID *uuid.UUID `json:"store_id"`
	Name    string     `json:"name"`
	Email   string     `json:"email"`
	Role    string     `json:"role"`
}

// --- Handlers ---

// Login handles email + password authentication for admins and staff.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Printf("ERROR: login: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.respondWithTokens(w, http.StatusOK, userAccount(user))
}

// CustomerLogin handles email + password authentication for customers.
func (h *AuthHandler) CustomerLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	c, err := h.store.GetCustomerByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Printf("ERROR: customer login: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(c.HashedPassword), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.respondWithTokens(w, http.StatusOK, customerAccount(c))
}

// CustomerRegister creates a customer account and logs it in.
func (h *AuthHandler) CustomerRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("ERROR: hash password: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	c, err := h.store.CreateCustomer(r.Context(), database.CreateCustomerParams{
		Name:           req.Name,
		Email:          req.Email,
		HashedPassword: string(hashed),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		log.Printf("ERROR: create customer: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.respondWithTokens(w, http.StatusCreated, customerAccount(c))
}

// Refresh exchanges a valid refresh token for a new access + refresh token pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id, role, err := auth.ValidateRefreshToken(h.jwtSecret, req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	var acct accountResponse
	if role == enum.UserRoleCustomer {
		c, err := h.store.GetCustomerByID(r.Context(), id)
		if err != nil {
			h.refreshLookupFailed(w, err)
			return
		}
		acct = customerAccount(c)
	} else {
		u, err := h.store.GetUserByID(r.Context(), id)
		if err != nil {
			h.refreshLookupFailed(w, err)
			return
		}
		acct = userAccount(u)
	}

	h.respondWithTokens(w, http.StatusOK, acct)
}

// --- Helpers ---

func (h *AuthHandler) refreshLookupFailed(w http.ResponseWriter, err error) {
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusUnauthorized, "account not found")
		return
	}
	log.Printf("ERROR: refresh lookup: %v", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func userAccount(u database.User) accountResponse {
	storeID := u.StoreID
	return accountResponse{ID: u.ID, StoreID: &storeID, Name: u.FullName, Email: u.Email, Role: u.Role}
}

func customerAccount(c database.Customer) accountResponse {
	return accountResponse{ID: c.ID, Name: c.Name, Email: c.Email, Role: enum.UserRoleCustomer}
}

func (h *AuthHandler) respondWithTokens(w http.ResponseWriter, status int, acct accountResponse) {
	storeID := uuid.Nil
	if acct.StoreID != nil {
		storeID = *acct.StoreID
	}

	accessToken, err := auth.GenerateToken(h.jwtSecret, acct.ID, storeID, acct.Role)
	if err != nil {
		log.Printf("ERROR: generate token: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	refreshToken, err := auth.GenerateRefreshToken(h.jwtSecret, acct.ID, acct.Role)
	if err != nil {
		log.Printf("ERROR: generate refresh token: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeData(w, status, tokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Account:      acct,
	})
}
