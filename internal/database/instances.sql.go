package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const instanceColumns = `id, kind, template_id, order_id, parent_id, name, base_price, options, items, special_instructions, final_price, display_taken, created_at`

func scanInstance(row rowScanner) (SellableInstance, error) {
	var i SellableInstance
	err := row.Scan(
		&i.ID,
		&i.Kind,
		&i.TemplateID,
		&i.OrderID,
		&i.ParentID,
		&i.Name,
		&i.BasePrice,
		&i.Options,
		&i.Items,
		&i.SpecialInstructions,
		&i.FinalPrice,
		&i.DisplayTaken,
		&i.CreatedAt,
	)
	return i, err
}

func collectInstances(q *Queries, ctx context.Context, sql string, args ...interface{}) ([]SellableInstance, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SellableInstance{}
	for rows.Next() {
		i, err := scanInstance(rows)
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

const createInstance = `-- name: CreateInstance :one
INSERT INTO sellable_instances (kind, template_id, order_id, parent_id, name, base_price, options, items, special_instructions, final_price, display_taken)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + instanceColumns

type CreateInstanceParams struct {
	Kind                SellableKind   `json:"kind"`
	TemplateID          uuid.UUID      `json:"template_id"`
	OrderID             pgtype.UUID    `json:"order_id"`
	ParentID            pgtype.UUID    `json:"parent_id"`
	Name                string         `json:"name"`
	BasePrice           pgtype.Numeric `json:"base_price"`
	Options             []byte         `json:"options"`
	Items               []byte         `json:"items"`
	SpecialInstructions pgtype.Text    `json:"special_instructions"`
	FinalPrice          pgtype.Numeric `json:"final_price"`
	DisplayTaken        int32          `json:"display_taken"`
}

func (q *Queries) CreateInstance(ctx context.Context, arg CreateInstanceParams) (SellableInstance, error) {
	row := q.db.QueryRow(ctx, createInstance,
		arg.Kind,
		arg.TemplateID,
		arg.OrderID,
		arg.ParentID,
		arg.Name,
		arg.BasePrice,
		arg.Options,
		arg.Items,
		arg.SpecialInstructions,
		arg.FinalPrice,
		arg.DisplayTaken,
	)
	return scanInstance(row)
}

const getInstance = `-- name: GetInstance :one
SELECT ` + instanceColumns + ` FROM sellable_instances WHERE id = $1`

func (q *Queries) GetInstance(ctx context.Context, id uuid.UUID) (SellableInstance, error) {
	return scanInstance(q.db.QueryRow(ctx, getInstance, id))
}

const listInstancesByOrder = `-- name: ListInstancesByOrder :many
SELECT ` + instanceColumns + ` FROM sellable_instances
WHERE order_id = $1 AND parent_id IS NULL
ORDER BY created_at, id`

// ListInstancesByOrder returns the top-level line instances of an order.
func (q *Queries) ListInstancesByOrder(ctx context.Context, orderID uuid.UUID) ([]SellableInstance, error) {
	return collectInstances(q, ctx, listInstancesByOrder, orderID)
}

const listChildInstances = `-- name: ListChildInstances :many
SELECT ` + instanceColumns + ` FROM sellable_instances
WHERE parent_id = $1
ORDER BY created_at, id`

func (q *Queries) ListChildInstances(ctx context.Context, parentID uuid.UUID) ([]SellableInstance, error) {
	return collectInstances(q, ctx, listChildInstances, parentID)
}

const deleteChildInstances = `-- name: DeleteChildInstances :exec
DELETE FROM sellable_instances WHERE parent_id = $1`

func (q *Queries) DeleteChildInstances(ctx context.Context, parentID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteChildInstances, parentID)
	return err
}

const deleteInstance = `-- name: DeleteInstance :exec
DELETE FROM sellable_instances WHERE id = $1`

func (q *Queries) DeleteInstance(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteInstance, id)
	return err
}
