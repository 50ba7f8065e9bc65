package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const storeColumns = `id, name, menu_id, image_url, image_public_id, announcements, created_at`

func scanStore(row rowScanner) (Store, error) {
	var i Store
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.MenuID,
		&i.ImageUrl,
		&i.ImagePublicID,
		&i.Announcements,
		&i.CreatedAt,
	)
	return i, err
}

const getStore = `-- name: GetStore :one
SELECT ` + storeColumns + ` FROM stores WHERE id = $1`

func (q *Queries) GetStore(ctx context.Context, id uuid.UUID) (Store, error) {
	return scanStore(q.db.QueryRow(ctx, getStore, id))
}

const listStores = `-- name: ListStores :many
SELECT ` + storeColumns + ` FROM stores ORDER BY name`

func (q *Queries) ListStores(ctx context.Context) ([]Store, error) {
	rows, err := q.db.Query(ctx, listStores)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Store{}
	for rows.Next() {
		i, err := scanStore(rows)
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

const createStore = `-- name: CreateStore :one
INSERT INTO stores (name, menu_id, image_url, image_public_id, announcements)
VALUES ($1, $2, $3, $4, COALESCE($5::jsonb, '[]'::jsonb))
RETURNING ` + storeColumns

type CreateStoreParams struct {
	Name          string      `json:"name"`
	MenuID        pgtype.UUID `json:"menu_id"`
	ImageUrl      pgtype.Text `json:"image_url"`
	ImagePublicID pgtype.Text `json:"image_public_id"`
	Announcements []byte      `json:"announcements"`
}

func (q *Queries) CreateStore(ctx context.Context, arg CreateStoreParams) (Store, error) {
	row := q.db.QueryRow(ctx, createStore,
		arg.Name,
		arg.MenuID,
		arg.ImageUrl,
		arg.ImagePublicID,
		arg.Announcements,
	)
	return scanStore(row)
}

const updateStore = `-- name: UpdateStore :one
UPDATE stores
SET name = $2, menu_id = $3, image_url = $4, image_public_id = $5, announcements = COALESCE($6::jsonb, '[]'::jsonb)
WHERE id = $1
RETURNING ` + storeColumns

type UpdateStoreParams struct {
	ID            uuid.UUID   `json:"id"`
	Name          string      `json:"name"`
	MenuID        pgtype.UUID `json:"menu_id"`
	ImageUrl      pgtype.Text `json:"image_url"`
	ImagePublicID pgtype.Text `json:"image_public_id"`
	Announcements []byte      `json:"announcements"`
}

func (q *Queries) UpdateStore(ctx context.Context, arg UpdateStoreParams) (Store, error) {
	row := q.db.QueryRow(ctx, updateStore,
		arg.ID,
		arg.Name,
		arg.MenuID,
		arg.ImageUrl,
		arg.ImagePublicID,
		arg.Announcements,
	)
	return scanStore(row)
}

const deleteStore = `-- name: DeleteStore :execrows
DELETE FROM stores WHERE id = $1`

func (q *Queries) DeleteStore(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deleteStore, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
