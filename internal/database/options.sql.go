package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type OptionCategory struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type Option struct {
	ID         uuid.UUID      `json:"id"`
	CategoryID uuid.UUID      `json:"category_id"`
	Name       string         `json:"name"`
	Price      pgtype.Numeric `json:"price"`
}

const listOptionCategories = `-- name: ListOptionCategories :many
SELECT id, name FROM option_categories ORDER BY name`

func (q *Queries) ListOptionCategories(ctx context.Context) ([]OptionCategory, error) {
	rows, err := q.db.Query(ctx, listOptionCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OptionCategory{}
	for rows.Next() {
		var i OptionCategory
		if err := rows.Scan(&i.ID, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getOptionCategory = `-- name: GetOptionCategory :one
SELECT id, name FROM option_categories WHERE id = $1`

func (q *Queries) GetOptionCategory(ctx context.Context, id uuid.UUID) (OptionCategory, error) {
	var i OptionCategory
	err := q.db.QueryRow(ctx, getOptionCategory, id).Scan(&i.ID, &i.Name)
	return i, err
}

const createOptionCategory = `-- name: CreateOptionCategory :one
INSERT INTO option_categories (name) VALUES ($1) RETURNING id, name`

func (q *Queries) CreateOptionCategory(ctx context.Context, name string) (OptionCategory, error) {
	var i OptionCategory
	err := q.db.QueryRow(ctx, createOptionCategory, name).Scan(&i.ID, &i.Name)
	return i, err
}

const updateOptionCategory = `-- name: UpdateOptionCategory :one
UPDATE option_categories SET name = $2 WHERE id = $1 RETURNING id, name`

type UpdateOptionCategoryParams struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func (q *Queries) UpdateOptionCategory(ctx context.Context, arg UpdateOptionCategoryParams) (OptionCategory, error) {
	var i OptionCategory
	err := q.db.QueryRow(ctx, updateOptionCategory, arg.ID, arg.Name).Scan(&i.ID, &i.Name)
	return i, err
}

const deleteOptionCategory = `-- name: DeleteOptionCategory :execrows
DELETE FROM option_categories WHERE id = $1`

func (q *Queries) DeleteOptionCategory(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deleteOptionCategory, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listOptionsByCategory = `-- name: ListOptionsByCategory :many
SELECT id, category_id, name, price FROM options WHERE category_id = $1 ORDER BY name`

func (q *Queries) ListOptionsByCategory(ctx context.Context, categoryID uuid.UUID) ([]Option, error) {
	rows, err := q.db.Query(ctx, listOptionsByCategory, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Option{}
	for rows.Next() {
		var i Option
		if err := rows.Scan(&i.ID, &i.CategoryID, &i.Name, &i.Price); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createOption = `-- name: CreateOption :one
INSERT INTO options (category_id, name, price) VALUES ($1, $2, $3)
RETURNING id, category_id, name, price`

type CreateOptionParams struct {
	CategoryID uuid.UUID      `json:"category_id"`
	Name       string         `json:"name"`
	Price      pgtype.Numeric `json:"price"`
}

func (q *Queries) CreateOption(ctx context.Context, arg CreateOptionParams) (Option, error) {
	var i Option
	err := q.db.QueryRow(ctx, createOption, arg.CategoryID, arg.Name, arg.Price).Scan(
		&i.ID, &i.CategoryID, &i.Name, &i.Price,
	)
	return i, err
}

const deleteOption = `-- name: DeleteOption :execrows
DELETE FROM options WHERE id = $1 AND category_id = $2`

type DeleteOptionParams struct {
	ID         uuid.UUID `json:"id"`
	CategoryID uuid.UUID `json:"category_id"`
}

func (q *Queries) DeleteOption(ctx context.Context, arg DeleteOptionParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteOption, arg.ID, arg.CategoryID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getOptionForTemplate = `-- name: GetOptionForTemplate :one
SELECT o.id, o.category_id, c.name AS category_name, o.name, o.price,
       EXISTS (
           SELECT 1 FROM template_option_categories l
           WHERE l.template_id = $2 AND l.category_id = o.category_id
       ) AS linked
FROM options o
JOIN option_categories c ON c.id = o.category_id
WHERE o.id = $1`

type GetOptionForTemplateParams struct {
	ID         uuid.UUID `json:"id"`
	TemplateID uuid.UUID `json:"template_id"`
}

type GetOptionForTemplateRow struct {
	ID           uuid.UUID      `json:"id"`
	CategoryID   uuid.UUID      `json:"category_id"`
	CategoryName string         `json:"category_name"`
	Name         string         `json:"name"`
	Price        pgtype.Numeric `json:"price"`
	Linked       bool           `json:"linked"`
}

func (q *Queries) GetOptionForTemplate(ctx context.Context, arg GetOptionForTemplateParams) (GetOptionForTemplateRow, error) {
	var i GetOptionForTemplateRow
	err := q.db.QueryRow(ctx, getOptionForTemplate, arg.ID, arg.TemplateID).Scan(
		&i.ID,
		&i.CategoryID,
		&i.CategoryName,
		&i.Name,
		&i.Price,
		&i.Linked,
	)
	return i, err
}
