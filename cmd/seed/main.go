package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tabemono-pos/api/internal/config"
	"github.com/tabemono-pos/api/internal/database"
	"github.com/tabemono-pos/api/internal/enum"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	storeName := flag.String("store", "", "Store name")
	email := flag.String("email", "", "Admin email address")
	password := flag.String("password", "", "Admin password")
	name := flag.String("name", "", "Admin full name")
	staffEmail := flag.String("staff-email", "", "Optional staff account email")
	flag.Parse()

	*storeName = fallback(*storeName, "SEED_STORE", "Tabemono Main")
	*email = fallback(*email, "SEED_EMAIL", "admin@tabemono.local")
	*name = fallback(*name, "SEED_NAME", "Store Admin")
	*staffEmail = fallback(*staffEmail, "SEED_STAFF_EMAIL", "")
	*password = fallback(*password, "SEED_PASSWORD", "")
	if *password == "" {
		*password = "password123"
		log.Println("WARNING: Using default password 'password123'. Change immediately in production!")
	}

	cfg := config.Load()
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	// Store and accounts are created together or not at all.
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	q := database.New(tx)

	admin, created, err := seedUser(ctx, q, uuid.Nil, *storeName, *email, *password, *name, enum.UserRoleAdmin)
	if err != nil {
		log.Fatalf("Failed to seed admin: %v", err)
	}
	if !created {
		log.Printf("User '%s' already exists (ID: %s, store %s), skipping", admin.Email, admin.ID, admin.StoreID)
		return
	}
	log.Printf("Created store '%s' (ID: %s)", *storeName, admin.StoreID)
	log.Printf("Created admin user '%s' (ID: %s)", admin.Email, admin.ID)

	if *staffEmail != "" {
		staff, created, err := seedUser(ctx, q, admin.StoreID, "", *staffEmail, *password, "Store Staff", enum.UserRoleStaff)
		if err != nil {
			log.Fatalf("Failed to seed staff: %v", err)
		}
		if created {
			log.Printf("Created staff user '%s' (ID: %s)", staff.Email, staff.ID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}
	log.Println("Seed completed successfully")
}

func fallback(flagValue, envKey, def string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return def
}

// seedUser creates the user unless the email is taken. uuid.Nil as storeID
// creates a fresh store named storeName.
func seedUser(ctx context.Context, q *database.Queries, storeID uuid.UUID, storeName, email, password, fullName, role string) (database.User, bool, error) {
	existing, err := q.GetUserByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.User{}, false, fmt.Errorf("check user: %w", err)
	}

	if storeID == uuid.Nil {
		store, err := q.CreateStore(ctx, database.CreateStoreParams{Name: storeName})
		if err != nil {
			return database.User{}, false, fmt.Errorf("insert store: %w", err)
		}
		storeID = store.ID
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return database.User{}, false, fmt.Errorf("hash password: %w", err)
	}

	u, err := q.CreateUser(ctx, database.CreateUserParams{
		StoreID:        storeID,
		Email:          email,
		FullName:       fullName,
		HashedPassword: string(hashed),
		Role:           role,
	})
	if err != nil {
		return database.User{}, false, fmt.Errorf("insert user: %w", err)
	}
	return u, true, nil
}
