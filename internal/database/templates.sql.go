package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

const templateColumns = `id, kind, name, base_price, description, image_url, image_public_id, is_available, actual_stock, display_stock, created_at, updated_at`

func scanTemplate(row rowScanner) (SellableTemplate, error) {
	var i SellableTemplate
	err := row.Scan(
		&i.ID,
		&i.Kind,
		&i.Name,
		&i.BasePrice,
		&i.Description,
		&i.ImageUrl,
		&i.ImagePublicID,
		&i.IsAvailable,
		&i.ActualStock,
		&i.DisplayStock,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getTemplate = `-- name: GetTemplate :one
SELECT ` + templateColumns + ` FROM sellable_templates WHERE id = $1`

func (q *Queries) GetTemplate(ctx context.Context, id uuid.UUID) (SellableTemplate, error) {
	return scanTemplate(q.db.QueryRow(ctx, getTemplate, id))
}

const getTemplateForUpdate = `-- name: GetTemplateForUpdate :one
SELECT ` + templateColumns + ` FROM sellable_templates WHERE id = $1 FOR UPDATE`

func (q *Queries) GetTemplateForUpdate(ctx context.Context, id uuid.UUID) (SellableTemplate, error) {
	return scanTemplate(q.db.QueryRow(ctx, getTemplateForUpdate, id))
}

const listTemplates = `-- name: ListTemplates :many
SELECT ` + templateColumns + ` FROM sellable_templates
WHERE ($1::sellable_kind IS NULL OR kind = $1)
ORDER BY kind, name`

func (q *Queries) ListTemplates(ctx context.Context, kind NullSellableKind) ([]SellableTemplate, error) {
	var arg interface{}
	if kind.Valid {
		arg = string(kind.SellableKind)
	}
	rows, err := q.db.Query(ctx, listTemplates, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SellableTemplate{}
	for rows.Next() {
		i, err := scanTemplate(rows)
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

const createTemplate = `-- name: CreateTemplate :one
INSERT INTO sellable_templates (kind, name, base_price, description, image_url, image_public_id, is_available)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + templateColumns

type CreateTemplateParams struct {
	Kind          SellableKind   `json:"kind"`
	Name          string         `json:"name"`
	BasePrice     pgtype.Numeric `json:"base_price"`
	Description   pgtype.Text    `json:"description"`
	ImageUrl      pgtype.Text    `json:"image_url"`
	ImagePublicID pgtype.Text    `json:"image_public_id"`
	IsAvailable   bool           `json:"is_available"`
}

func (q *Queries) CreateTemplate(ctx context.Context, arg CreateTemplateParams) (SellableTemplate, error) {
	row := q.db.QueryRow(ctx, createTemplate,
		arg.Kind,
		arg.Name,
		arg.BasePrice,
		arg.Description,
		arg.ImageUrl,
		arg.ImagePublicID,
		arg.IsAvailable,
	)
	return scanTemplate(row)
}

const updateTemplate = `-- name: UpdateTemplate :one
UPDATE sellable_templates
SET name = $2, base_price = $3, description = $4, image_url = $5, image_public_id = $6, is_available = $7, updated_at = now()
WHERE id = $1
RETURNING ` + templateColumns

type UpdateTemplateParams struct {
	ID            uuid.UUID      `json:"id"`
	Name          string         `json:"name"`
	BasePrice     pgtype.Numeric `json:"base_price"`
	Description   pgtype.Text    `json:"description"`
	ImageUrl      pgtype.Text    `json:"image_url"`
	ImagePublicID pgtype.Text    `json:"image_public_id"`
	IsAvailable   bool           `json:"is_available"`
}

func (q *Queries) UpdateTemplate(ctx context.Context, arg UpdateTemplateParams) (SellableTemplate, error) {
	row := q.db.QueryRow(ctx, updateTemplate,
		arg.ID,
		arg.Name,
		arg.BasePrice,
		arg.Description,
		arg.ImageUrl,
		arg.ImagePublicID,
		arg.IsAvailable,
	)
	return scanTemplate(row)
}

const updateTemplateStock = `-- name: UpdateTemplateStock :one
UPDATE sellable_templates
SET actual_stock = $2, display_stock = $3, updated_at = now()
WHERE id = $1
RETURNING ` + templateColumns

type UpdateTemplateStockParams struct {
	ID           uuid.UUID `json:"id"`
	ActualStock  int32     `json:"actual_stock"`
	DisplayStock int32     `json:"display_stock"`
}

func (q *Queries) UpdateTemplateStock(ctx context.Context, arg UpdateTemplateStockParams) (SellableTemplate, error) {
	return scanTemplate(q.db.QueryRow(ctx, updateTemplateStock, arg.ID, arg.ActualStock, arg.DisplayStock))
}

const deleteTemplate = `-- name: DeleteTemplate :exec
DELETE FROM sellable_templates WHERE id = $1`

func (q *Queries) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteTemplate, id)
	return err
}

const countInstancesByTemplate = `-- name: CountInstancesByTemplate :one
SELECT COUNT(*) FROM sellable_instances WHERE template_id = $1`

func (q *Queries) CountInstancesByTemplate(ctx context.Context, templateID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countInstancesByTemplate, templateID).Scan(&count)
	return count, err
}

const listComboDishes = `-- name: ListComboDishes :many
SELECT d.combo_id, d.dish_id, d.position, t.name AS dish_name
FROM combo_template_dishes d
JOIN sellable_templates t ON t.id = d.dish_id
WHERE d.combo_id = $1
ORDER BY d.position`

type ListComboDishesRow struct {
	ComboID  uuid.UUID `json:"combo_id"`
	DishID   uuid.UUID `json:"dish_id"`
	Position int32     `json:"position"`
	DishName string    `json:"dish_name"`
}

func (q *Queries) ListComboDishes(ctx context.Context, comboID uuid.UUID) ([]ListComboDishesRow, error) {
	rows, err := q.db.Query(ctx, listComboDishes, comboID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListComboDishesRow{}
	for rows.Next() {
		var i ListComboDishesRow
		if err := rows.Scan(&i.ComboID, &i.DishID, &i.Position, &i.DishName); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const addComboDish = `-- name: AddComboDish :exec
INSERT INTO combo_template_dishes (combo_id, dish_id, position) VALUES ($1, $2, $3)`

type AddComboDishParams struct {
	ComboID  uuid.UUID `json:"combo_id"`
	DishID   uuid.UUID `json:"dish_id"`
	Position int32     `json:"position"`
}

func (q *Queries) AddComboDish(ctx context.Context, arg AddComboDishParams) error {
	_, err := q.db.Exec(ctx, addComboDish, arg.ComboID, arg.DishID, arg.Position)
	return err
}

const clearComboDishes = `-- name: ClearComboDishes :exec
DELETE FROM combo_template_dishes WHERE combo_id = $1`

func (q *Queries) ClearComboDishes(ctx context.Context, comboID uuid.UUID) error {
	_, err := q.db.Exec(ctx, clearComboDishes, comboID)
	return err
}

const linkOptionCategory = `-- name: LinkOptionCategory :exec
INSERT INTO template_option_categories (template_id, category_id, sort_order) VALUES ($1, $2, $3)`

type LinkOptionCategoryParams struct {
	TemplateID uuid.UUID `json:"template_id"`
	CategoryID uuid.UUID `json:"category_id"`
	SortOrder  int32     `json:"sort_order"`
}

func (q *Queries) LinkOptionCategory(ctx context.Context, arg LinkOptionCategoryParams) error {
	_, err := q.db.Exec(ctx, linkOptionCategory, arg.TemplateID, arg.CategoryID, arg.SortOrder)
	return err
}

const clearTemplateOptionCategories = `-- name: ClearTemplateOptionCategories :exec
DELETE FROM template_option_categories WHERE template_id = $1`

func (q *Queries) ClearTemplateOptionCategories(ctx context.Context, templateID uuid.UUID) error {
	_, err := q.db.Exec(ctx, clearTemplateOptionCategories, templateID)
	return err
}

const listTemplateOptionCategories = `-- name: ListTemplateOptionCategories :many
SELECT c.id, c.name, l.sort_order
FROM template_option_categories l
JOIN option_categories c ON c.id = l.category_id
WHERE l.template_id = $1
ORDER BY l.sort_order, c.name`

type ListTemplateOptionCategoriesRow struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	SortOrder int32     `json:"sort_order"`
}

func (q *Queries) ListTemplateOptionCategories(ctx context.Context, templateID uuid.UUID) ([]ListTemplateOptionCategoriesRow, error) {
	rows, err := q.db.Query(ctx, listTemplateOptionCategories, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListTemplateOptionCategoriesRow{}
	for rows.Next() {
		var i ListTemplateOptionCategoriesRow
		if err := rows.Scan(&i.ID, &i.Name, &i.SortOrder); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
