package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const couponTemplateColumns = `id, name, type, discount, exchange_template_id, description, price, active, start_at, end_at, stock, limit_per_customer, created_at, updated_at`

func scanCouponTemplate(row rowScanner) (CouponTemplate, error) {
	var i CouponTemplate
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Type,
		&i.Discount,
		&i.ExchangeTemplateID,
		&i.Description,
		&i.Price,
		&i.Active,
		&i.StartAt,
		&i.EndAt,
		&i.Stock,
		&i.LimitPerCustomer,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getCouponTemplate = `-- name: GetCouponTemplate :one
SELECT ` + couponTemplateColumns + ` FROM coupon_templates WHERE id = $1`

func (q *Queries) GetCouponTemplate(ctx context.Context, id uuid.UUID) (CouponTemplate, error) {
	return scanCouponTemplate(q.db.QueryRow(ctx, getCouponTemplate, id))
}

const getCouponTemplateForUpdate = `-- name: GetCouponTemplateForUpdate :one
SELECT ` + couponTemplateColumns + ` FROM coupon_templates WHERE id = $1 FOR UPDATE`

func (q *Queries) GetCouponTemplateForUpdate(ctx context.Context, id uuid.UUID) (CouponTemplate, error) {
	return scanCouponTemplate(q.db.QueryRow(ctx, getCouponTemplateForUpdate, id))
}

const listCouponTemplates = `-- name: ListCouponTemplates :many
SELECT ` + couponTemplateColumns + ` FROM coupon_templates ORDER BY created_at DESC`

func (q *Queries) ListCouponTemplates(ctx context.Context) ([]CouponTemplate, error) {
	rows, err := q.db.Query(ctx, listCouponTemplates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []CouponTemplate{}
	for rows.Next() {
		i, err := scanCouponTemplate(rows)
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

const createCouponTemplate = `-- name: CreateCouponTemplate :one
INSERT INTO coupon_templates (name, type, discount, exchange_template_id, description, price, active, start_at, end_at, stock, limit_per_customer)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + couponTemplateColumns

type CreateCouponTemplateParams struct {
	Name               string             `json:"name"`
	Type               CouponType         `json:"type"`
	Discount           pgtype.Numeric     `json:"discount"`
	ExchangeTemplateID pgtype.UUID        `json:"exchange_template_id"`
	Description        pgtype.Text        `json:"description"`
	Price              pgtype.Numeric     `json:"price"`
	Active             bool               `json:"active"`
	StartAt            pgtype.Timestamptz `json:"start_at"`
	EndAt              pgtype.Timestamptz `json:"end_at"`
	Stock              int32              `json:"stock"`
	LimitPerCustomer   int32              `json:"limit_per_customer"`
}

func (q *Queries) CreateCouponTemplate(ctx context.Context, arg CreateCouponTemplateParams) (CouponTemplate, error) {
	row := q.db.QueryRow(ctx, createCouponTemplate,
		arg.Name,
		arg.Type,
		arg.Discount,
		arg.ExchangeTemplateID,
		arg.Description,
		arg.Price,
		arg.Active,
		arg.StartAt,
		arg.EndAt,
		arg.Stock,
		arg.LimitPerCustomer,
	)
	return scanCouponTemplate(row)
}

const updateCouponTemplate = `-- name: UpdateCouponTemplate :one
UPDATE coupon_templates
SET name = $2, description = $3, price = $4, active = $5, start_at = $6, end_at = $7,
    stock = $8, limit_per_customer = $9, updated_at = now()
WHERE id = $1
RETURNING ` + couponTemplateColumns

type UpdateCouponTemplateParams struct {
	ID               uuid.UUID          `json:"id"`
	Name             string             `json:"name"`
	Description      pgtype.Text        `json:"description"`
	Price            pgtype.Numeric     `json:"price"`
	Active           bool               `json:"active"`
	StartAt          pgtype.Timestamptz `json:"start_at"`
	EndAt            pgtype.Timestamptz `json:"end_at"`
	Stock            int32              `json:"stock"`
	LimitPerCustomer int32              `json:"limit_per_customer"`
}

func (q *Queries) UpdateCouponTemplate(ctx context.Context, arg UpdateCouponTemplateParams) (CouponTemplate, error) {
	row := q.db.QueryRow(ctx, updateCouponTemplate,
		arg.ID,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.Active,
		arg.StartAt,
		arg.EndAt,
		arg.Stock,
		arg.LimitPerCustomer,
	)
	return scanCouponTemplate(row)
}

const deleteCouponTemplate = `-- name: DeleteCouponTemplate :exec
DELETE FROM coupon_templates WHERE id = $1`

func (q *Queries) DeleteCouponTemplate(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteCouponTemplate, id)
	return err
}

const decrementCouponTemplateStock = `-- name: DecrementCouponTemplateStock :one
UPDATE coupon_templates SET stock = stock - 1, updated_at = now()
WHERE id = $1 AND stock > 0
RETURNING stock`

func (q *Queries) DecrementCouponTemplateStock(ctx context.Context, id uuid.UUID) (int32, error) {
	var stock int32
	err := q.db.QueryRow(ctx, decrementCouponTemplateStock, id).Scan(&stock)
	return stock, err
}

const countCouponInstancesByTemplate = `-- name: CountCouponInstancesByTemplate :one
SELECT COUNT(*) FROM coupon_instances WHERE template_id = $1`

func (q *Queries) CountCouponInstancesByTemplate(ctx context.Context, templateID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countCouponInstancesByTemplate, templateID).Scan(&count)
	return count, err
}

const countUnusedCouponsByOwner = `-- name: CountUnusedCouponsByOwner :one
SELECT COUNT(*) FROM coupon_instances
WHERE template_id = $1 AND owner = $2 AND is_used = false`

type CountUnusedCouponsByOwnerParams struct {
	TemplateID uuid.UUID `json:"template_id"`
	Owner      uuid.UUID `json:"owner"`
}

func (q *Queries) CountUnusedCouponsByOwner(ctx context.Context, arg CountUnusedCouponsByOwnerParams) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countUnusedCouponsByOwner, arg.TemplateID, arg.Owner).Scan(&count)
	return count, err
}

const couponInstanceColumns = `id, template_id, name, type, discount, exchange_template_id, start_at, expire_at, is_used, used_at, used_order, owner, acquisition_method, created_at, updated_at`

func scanCouponInstance(row rowScanner) (CouponInstance, error) {
	var i CouponInstance
	err := row.Scan(
		&i.ID,
		&i.TemplateID,
		&i.Name,
		&i.Type,
		&i.Discount,
		&i.ExchangeTemplateID,
		&i.StartAt,
		&i.ExpireAt,
		&i.IsUsed,
		&i.UsedAt,
		&i.UsedOrder,
		&i.Owner,
		&i.AcquisitionMethod,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectCouponInstances(q *Queries, ctx context.Context, sql string, args ...interface{}) ([]CouponInstance, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []CouponInstance{}
	for rows.Next() {
		i, err := scanCouponInstance(rows)
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

const createCouponInstance = `-- name: CreateCouponInstance :one
INSERT INTO coupon_instances (template_id, name, type, discount, exchange_template_id, start_at, expire_at, owner, acquisition_method)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + couponInstanceColumns

type CreateCouponInstanceParams struct {
	TemplateID         uuid.UUID      `json:"template_id"`
	Name               string         `json:"name"`
	Type               CouponType     `json:"type"`
	Discount           pgtype.Numeric `json:"discount"`
	ExchangeTemplateID pgtype.UUID    `json:"exchange_template_id"`
	StartAt            time.Time      `json:"start_at"`
	ExpireAt           time.Time      `json:"expire_at"`
	Owner              uuid.UUID      `json:"owner"`
	AcquisitionMethod  string         `json:"acquisition_method"`
}

func (q *Queries) CreateCouponInstance(ctx context.Context, arg CreateCouponInstanceParams) (CouponInstance, error) {
	row := q.db.QueryRow(ctx, createCouponInstance,
		arg.TemplateID,
		arg.Name,
		arg.Type,
		arg.Discount,
		arg.ExchangeTemplateID,
		arg.StartAt,
		arg.ExpireAt,
		arg.Owner,
		arg.AcquisitionMethod,
	)
	return scanCouponInstance(row)
}

const getCouponInstance = `-- name: GetCouponInstance :one
SELECT ` + couponInstanceColumns + ` FROM coupon_instances WHERE id = $1`

func (q *Queries) GetCouponInstance(ctx context.Context, id uuid.UUID) (CouponInstance, error) {
	return scanCouponInstance(q.db.QueryRow(ctx, getCouponInstance, id))
}

const getCouponInstanceForUpdate = `-- name: GetCouponInstanceForUpdate :one
SELECT ` + couponInstanceColumns + ` FROM coupon_instances WHERE id = $1 FOR UPDATE`

func (q *Queries) GetCouponInstanceForUpdate(ctx context.Context, id uuid.UUID) (CouponInstance, error) {
	return scanCouponInstance(q.db.QueryRow(ctx, getCouponInstanceForUpdate, id))
}

const listCouponInstancesByOwner = `-- name: ListCouponInstancesByOwner :many
SELECT ` + couponInstanceColumns + ` FROM coupon_instances
WHERE owner = $1
ORDER BY created_at DESC`

func (q *Queries) ListCouponInstancesByOwner(ctx context.Context, owner uuid.UUID) ([]CouponInstance, error) {
	return collectCouponInstances(q, ctx, listCouponInstancesByOwner, owner)
}

const listUsableCouponInstances = `-- name: ListUsableCouponInstances :many
SELECT ` + couponInstanceColumns + ` FROM coupon_instances
WHERE owner = $1 AND is_used = false AND start_at <= $2 AND expire_at >= $2
ORDER BY expire_at`

type ListUsableCouponInstancesParams struct {
	Owner uuid.UUID `json:"owner"`
	Now   time.Time `json:"now"`
}

func (q *Queries) ListUsableCouponInstances(ctx context.Context, arg ListUsableCouponInstancesParams) ([]CouponInstance, error) {
	return collectCouponInstances(q, ctx, listUsableCouponInstances, arg.Owner, arg.Now)
}

const markCouponUsed = `-- name: MarkCouponUsed :one
UPDATE coupon_instances
SET is_used = true, used_at = $2, used_order = $3, updated_at = now()
WHERE id = $1 AND is_used = false
RETURNING ` + couponInstanceColumns

type MarkCouponUsedParams struct {
	ID        uuid.UUID `json:"id"`
	UsedAt    time.Time `json:"used_at"`
	UsedOrder uuid.UUID `json:"used_order"`
}

// MarkCouponUsed only matches an unused coupon; pgx.ErrNoRows means it was
// already used.
func (q *Queries) MarkCouponUsed(ctx context.Context, arg MarkCouponUsedParams) (CouponInstance, error) {
	return scanCouponInstance(q.db.QueryRow(ctx, markCouponUsed, arg.ID, arg.UsedAt, arg.UsedOrder))
}

const resetCoupon = `-- name: ResetCoupon :one
UPDATE coupon_instances
SET is_used = false, used_at = NULL, used_order = NULL, updated_at = now()
WHERE id = $1
RETURNING ` + couponInstanceColumns

func (q *Queries) ResetCoupon(ctx context.Context, id uuid.UUID) (CouponInstance, error) {
	return scanCouponInstance(q.db.QueryRow(ctx, resetCoupon, id))
}
