package database

import (
	"context"

	"github.com/google/uuid"
)

const userColumns = `id, store_id, email, full_name, hashed_password, role, created_at`

func scanUser(row rowScanner) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.Email,
		&i.FullName,
		&i.HashedPassword,
		&i.Role,
		&i.CreatedAt,
	)
	return i, err
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT ` + userColumns + ` FROM users WHERE email = $1`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + ` FROM users WHERE id = $1`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (store_id, email, full_name, hashed_password, role)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns

type CreateUserParams struct {
	StoreID        uuid.UUID `json:"store_id"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	HashedPassword string    `json:"hashed_password"`
	Role           string    `json:"role"`
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser,
		arg.StoreID,
		arg.Email,
		arg.FullName,
		arg.HashedPassword,
		arg.Role,
	)
	return scanUser(row)
}

const customerColumns = `id, name, email, hashed_password, created_at`

func scanCustomer(row rowScanner) (Customer, error) {
	var i Customer
	err := row.Scan(&i.ID, &i.Name, &i.Email, &i.HashedPassword, &i.CreatedAt)
	return i, err
}

const getCustomerByEmail = `-- name: GetCustomerByEmail :one
SELECT ` + customerColumns + ` FROM customers WHERE email = $1`

func (q *Queries) GetCustomerByEmail(ctx context.Context, email string) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, getCustomerByEmail, email))
}

const getCustomerByID = `-- name: GetCustomerByID :one
SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

func (q *Queries) GetCustomerByID(ctx context.Context, id uuid.UUID) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, getCustomerByID, id))
}

const createCustomer = `-- name: CreateCustomer :one
INSERT INTO customers (name, email, hashed_password) VALUES ($1, $2, $3)
RETURNING ` + customerColumns

type CreateCustomerParams struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	HashedPassword string `json:"hashed_password"`
}

func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, createCustomer, arg.Name, arg.Email, arg.HashedPassword))
}

const listUsersByStore = `-- name: ListUsersByStore :many
SELECT ` + userColumns + ` FROM users WHERE store_id = $1 ORDER BY created_at`

func (q *Queries) ListUsersByStore(ctx context.Context, storeID uuid.UUID) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsersByStore, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []User{}
	for rows.Next() {
		i, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateUser = `-- name: UpdateUser :one
UPDATE users
SET full_name = $3, role = $4, hashed_password = COALESCE($5, hashed_password)
WHERE id = $1 AND store_id = $2
RETURNING ` + userColumns

type UpdateUserParams struct {
	ID             uuid.UUID `json:"id"`
	StoreID        uuid.UUID `json:"store_id"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	HashedPassword *string   `json:"hashed_password"`
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, updateUser,
		arg.ID,
		arg.StoreID,
		arg.FullName,
		arg.Role,
		arg.HashedPassword,
	)
	return scanUser(row)
}

const deleteUser = `-- name: DeleteUser :execrows
DELETE FROM users WHERE id = $1 AND store_id = $2`

type DeleteUserParams struct {
	ID      uuid.UUID `json:"id"`
	StoreID uuid.UUID `json:"store_id"`
}

func (q *Queries) DeleteUser(ctx context.Context, arg DeleteUserParams) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteUser, arg.ID, arg.StoreID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const searchCustomers = `-- name: SearchCustomers :many
SELECT ` + customerColumns + ` FROM customers
WHERE $1::text = '' OR email ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%'
ORDER BY created_at DESC
LIMIT $2`

type SearchCustomersParams struct {
	Query string `json:"query"`
	Limit int32  `json:"limit"`
}

func (q *Queries) SearchCustomers(ctx context.Context, arg SearchCustomersParams) ([]Customer, error) {
	rows, err := q.db.Query(ctx, searchCustomers, arg.Query, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Customer{}
	for rows.Next() {
		i, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
