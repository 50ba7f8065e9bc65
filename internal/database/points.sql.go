package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const pointSystemColumns = `id, name, min_amount, amount_per_point, description, active, created_at`

func scanPointSystem(row rowScanner) (PointSystem, error) {
	var i PointSystem
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.MinAmount,
		&i.AmountPerPoint,
		&i.Description,
		&i.Active,
		&i.CreatedAt,
	)
	return i, err
}

const listPointSystems = `-- name: ListPointSystems :many
SELECT ` + pointSystemColumns + ` FROM point_systems ORDER BY active DESC, created_at`

func (q *Queries) ListPointSystems(ctx context.Context) ([]PointSystem, error) {
	rows, err := q.db.Query(ctx, listPointSystems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []PointSystem{}
	for rows.Next() {
		i, err := scanPointSystem(rows)
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

const getPointSystem = `-- name: GetPointSystem :one
SELECT ` + pointSystemColumns + ` FROM point_systems WHERE id = $1`

func (q *Queries) GetPointSystem(ctx context.Context, id uuid.UUID) (PointSystem, error) {
	return scanPointSystem(q.db.QueryRow(ctx, getPointSystem, id))
}

const getActivePointSystem = `-- name: GetActivePointSystem :one
SELECT ` + pointSystemColumns + ` FROM point_systems WHERE active`

func (q *Queries) GetActivePointSystem(ctx context.Context) (PointSystem, error) {
	return scanPointSystem(q.db.QueryRow(ctx, getActivePointSystem))
}

const createPointSystem = `-- name: CreatePointSystem :one
INSERT INTO point_systems (name, min_amount, amount_per_point, description)
VALUES ($1, $2, $3, $4)
RETURNING ` + pointSystemColumns

type CreatePointSystemParams struct {
	Name           string         `json:"name"`
	MinAmount      pgtype.Numeric `json:"min_amount"`
	AmountPerPoint pgtype.Numeric `json:"amount_per_point"`
	Description    pgtype.Text    `json:"description"`
}

func (q *Queries) CreatePointSystem(ctx context.Context, arg CreatePointSystemParams) (PointSystem, error) {
	row := q.db.QueryRow(ctx, createPointSystem, arg.Name, arg.MinAmount, arg.AmountPerPoint, arg.Description)
	return scanPointSystem(row)
}

const updatePointSystem = `-- name: UpdatePointSystem :one
UPDATE point_systems SET name = $2, min_amount = $3, amount_per_point = $4, description = $5
WHERE id = $1
RETURNING ` + pointSystemColumns

type UpdatePointSystemParams struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	MinAmount      pgtype.Numeric `json:"min_amount"`
	AmountPerPoint pgtype.Numeric `json:"amount_per_point"`
	Description    pgtype.Text    `json:"description"`
}

func (q *Queries) UpdatePointSystem(ctx context.Context, arg UpdatePointSystemParams) (PointSystem, error) {
	row := q.db.QueryRow(ctx, updatePointSystem, arg.ID, arg.Name, arg.MinAmount, arg.AmountPerPoint, arg.Description)
	return scanPointSystem(row)
}

const deactivatePointSystems = `-- name: DeactivatePointSystems :exec
UPDATE point_systems SET active = false WHERE active`

func (q *Queries) DeactivatePointSystems(ctx context.Context) error {
	_, err := q.db.Exec(ctx, deactivatePointSystems)
	return err
}

const activatePointSystem = `-- name: ActivatePointSystem :one
UPDATE point_systems SET active = true WHERE id = $1
RETURNING ` + pointSystemColumns

func (q *Queries) ActivatePointSystem(ctx context.Context, id uuid.UUID) (PointSystem, error) {
	return scanPointSystem(q.db.QueryRow(ctx, activatePointSystem, id))
}

// DeleteInactivePointSystem leaves the active rule in place.
const deleteInactivePointSystem = `-- name: DeleteInactivePointSystem :execrows
DELETE FROM point_systems WHERE id = $1 AND NOT active`

func (q *Queries) DeleteInactivePointSystem(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deleteInactivePointSystem, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
