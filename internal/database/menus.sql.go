package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listMenus = `-- name: ListMenus :many
SELECT id, name, created_at, updated_at FROM menus ORDER BY name`

func (q *Queries) ListMenus(ctx context.Context) ([]Menu, error) {
	rows, err := q.db.Query(ctx, listMenus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Menu{}
	for rows.Next() {
		var i Menu
		if err := rows.Scan(&i.ID, &i.Name, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getMenu = `-- name: GetMenu :one
SELECT id, name, created_at, updated_at FROM menus WHERE id = $1`

func (q *Queries) GetMenu(ctx context.Context, id uuid.UUID) (Menu, error) {
	var i Menu
	err := q.db.QueryRow(ctx, getMenu, id).Scan(&i.ID, &i.Name, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const createMenu = `-- name: CreateMenu :one
INSERT INTO menus (name) VALUES ($1) RETURNING id, name, created_at, updated_at`

func (q *Queries) CreateMenu(ctx context.Context, name string) (Menu, error) {
	var i Menu
	err := q.db.QueryRow(ctx, createMenu, name).Scan(&i.ID, &i.Name, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const updateMenu = `-- name: UpdateMenu :one
UPDATE menus SET name = $2, updated_at = now() WHERE id = $1
RETURNING id, name, created_at, updated_at`

type UpdateMenuParams struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func (q *Queries) UpdateMenu(ctx context.Context, arg UpdateMenuParams) (Menu, error) {
	var i Menu
	err := q.db.QueryRow(ctx, updateMenu, arg.ID, arg.Name).Scan(&i.ID, &i.Name, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const deleteMenu = `-- name: DeleteMenu :execrows
DELETE FROM menus WHERE id = $1`

func (q *Queries) DeleteMenu(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deleteMenu, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listMenuCategories = `-- name: ListMenuCategories :many
SELECT id, menu_id, name, sort_order, created_at FROM menu_categories
WHERE menu_id = $1
ORDER BY sort_order, name`

func (q *Queries) ListMenuCategories(ctx context.Context, menuID uuid.UUID) ([]MenuCategory, error) {
	rows, err := q.db.Query(ctx, listMenuCategories, menuID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MenuCategory{}
	for rows.Next() {
		var i MenuCategory
		if err := rows.Scan(&i.ID, &i.MenuID, &i.Name, &i.SortOrder, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createMenuCategory = `-- name: CreateMenuCategory :one
INSERT INTO menu_categories (menu_id, name, sort_order) VALUES ($1, $2, $3)
RETURNING id, menu_id, name, sort_order, created_at`

type CreateMenuCategoryParams struct {
	MenuID    uuid.UUID `json:"menu_id"`
	Name      string    `json:"name"`
	SortOrder int32     `json:"sort_order"`
}

func (q *Queries) CreateMenuCategory(ctx context.Context, arg CreateMenuCategoryParams) (MenuCategory, error) {
	var i MenuCategory
	err := q.db.QueryRow(ctx, createMenuCategory, arg.MenuID, arg.Name, arg.SortOrder).Scan(
		&i.ID, &i.MenuID, &i.Name, &i.SortOrder, &i.CreatedAt,
	)
	return i, err
}

const updateMenuCategory = `-- name: UpdateMenuCategory :one
UPDATE menu_categories SET name = $3, sort_order = $4
WHERE id = $1 AND menu_id = $2
RETURNING id, menu_id, name, sort_order, created_at`

type UpdateMenuCategoryParams struct {
	ID        uuid.UUID `json:"id"`
	MenuID    uuid.UUID `json:"menu_id"`
	Name      string    `json:"name"`
	SortOrder int32     `json:"sort_order"`
}

func (q *Queries) UpdateMenuCategory(ctx context.Context, arg UpdateMenuCategoryParams) (MenuCategory, error) {
	var i MenuCategory
	err := q.db.QueryRow(ctx, updateMenuCategory, arg.ID, arg.MenuID, arg.Name, arg.SortOrder).Scan(
		&i.ID, &i.MenuID, &i.Name, &i.SortOrder, &i.CreatedAt,
	)
	return i, err
}

const deleteMenuCategory = `-- name: DeleteMenuCategory :execrows
DELETE FROM menu_categories WHERE id = $1 AND menu_id = $2`

type DeleteMenuCategoryParams struct {
	ID     uuid.UUID `json:"id"`
	MenuID uuid.UUID `json:"menu_id"`
}

func (q *Queries) DeleteMenuCategory(ctx context.Context, arg DeleteMenuCategoryParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteMenuCategory, arg.ID, arg.MenuID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// MenuItemRow is a menu entry joined with the template it sells.
type MenuItemRow struct {
	CategoryID   uuid.UUID      `json:"category_id"`
	TemplateID   uuid.UUID      `json:"template_id"`
	SortOrder    int32          `json:"sort_order"`
	Kind         SellableKind   `json:"kind"`
	Name         string         `json:"name"`
	BasePrice    pgtype.Numeric `json:"base_price"`
	ImageUrl     pgtype.Text    `json:"image_url"`
	IsAvailable  bool           `json:"is_available"`
	DisplayStock int32          `json:"display_stock"`
}

const listMenuItems = `-- name: ListMenuItems :many
SELECT mi.category_id, mi.template_id, mi.sort_order,
       t.kind, t.name, t.base_price, t.image_url, t.is_available, t.display_stock
FROM menu_items mi
JOIN menu_categories c ON c.id = mi.category_id
JOIN sellable_templates t ON t.id = mi.template_id
WHERE c.menu_id = $1
ORDER BY c.sort_order, mi.sort_order, t.name`

func (q *Queries) ListMenuItems(ctx context.Context, menuID uuid.UUID) ([]MenuItemRow, error) {
	rows, err := q.db.Query(ctx, listMenuItems, menuID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MenuItemRow{}
	for rows.Next() {
		var i MenuItemRow
		if err := rows.Scan(
			&i.CategoryID,
			&i.TemplateID,
			&i.SortOrder,
			&i.Kind,
			&i.Name,
			&i.BasePrice,
			&i.ImageUrl,
			&i.IsAvailable,
			&i.DisplayStock,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// SetMenuItem matches no row when the category is not part of the menu.
const setMenuItem = `-- name: SetMenuItem :execrows
INSERT INTO menu_items (category_id, template_id, sort_order)
SELECT c.id, $3, $4 FROM menu_categories c WHERE c.id = $2 AND c.menu_id = $1
ON CONFLICT (category_id, template_id) DO UPDATE SET sort_order = EXCLUDED.sort_order`

type SetMenuItemParams struct {
	MenuID     uuid.UUID `json:"menu_id"`
	CategoryID uuid.UUID `json:"category_id"`
	TemplateID uuid.UUID `json:"template_id"`
	SortOrder  int32     `json:"sort_order"`
}

func (q *Queries) SetMenuItem(ctx context.Context, arg SetMenuItemParams) (int64, error) {
	result, err := q.db.Exec(ctx, setMenuItem, arg.MenuID, arg.CategoryID, arg.TemplateID, arg.SortOrder)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const removeMenuItem = `-- name: RemoveMenuItem :execrows
DELETE FROM menu_items mi
USING menu_categories c
WHERE mi.category_id = c.id AND c.menu_id = $1 AND mi.category_id = $2 AND mi.template_id = $3`

type RemoveMenuItemParams struct {
	MenuID     uuid.UUID `json:"menu_id"`
	CategoryID uuid.UUID `json:"category_id"`
	TemplateID uuid.UUID `json:"template_id"`
}

func (q *Queries) RemoveMenuItem(ctx context.Context, arg RemoveMenuItemParams) (int64, error) {
	result, err := q.db.Exec(ctx, removeMenuItem, arg.MenuID, arg.CategoryID, arg.TemplateID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
