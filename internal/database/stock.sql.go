package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const stockRecordColumns = `id, seq, template_id, template_name, previous_stock, new_stock, change_amount, change_type, reason, admin_id, order_id, created_at`

func scanStockRecord(row rowScanner) (StockChangeRecord, error) {
	var i StockChangeRecord
	err := row.Scan(
		&i.ID,
		&i.Seq,
		&i.TemplateID,
		&i.TemplateName,
		&i.PreviousStock,
		&i.NewStock,
		&i.ChangeAmount,
		&i.ChangeType,
		&i.Reason,
		&i.AdminID,
		&i.OrderID,
		&i.CreatedAt,
	)
	return i, err
}

const createStockChangeRecord = `-- name: CreateStockChangeRecord :one
INSERT INTO stock_change_records (template_id, template_name, previous_stock, new_stock, change_amount, change_type, reason, admin_id, order_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + stockRecordColumns

type CreateStockChangeRecordParams struct {
	TemplateID    uuid.UUID       `json:"template_id"`
	TemplateName  string          `json:"template_name"`
	PreviousStock int32           `json:"previous_stock"`
	NewStock      int32           `json:"new_stock"`
	ChangeAmount  int32           `json:"change_amount"`
	ChangeType    StockChangeType `json:"change_type"`
	Reason        pgtype.Text     `json:"reason"`
	AdminID       pgtype.UUID     `json:"admin_id"`
	OrderID       pgtype.UUID     `json:"order_id"`
}

func (q *Queries) CreateStockChangeRecord(ctx context.Context, arg CreateStockChangeRecordParams) (StockChangeRecord, error) {
	row := q.db.QueryRow(ctx, createStockChangeRecord,
		arg.TemplateID,
		arg.TemplateName,
		arg.PreviousStock,
		arg.NewStock,
		arg.ChangeAmount,
		arg.ChangeType,
		arg.Reason,
		arg.AdminID,
		arg.OrderID,
	)
	return scanStockRecord(row)
}

const listStockChangeRecordsByTemplate = `-- name: ListStockChangeRecordsByTemplate :many
SELECT ` + stockRecordColumns + ` FROM stock_change_records
WHERE template_id = $1
ORDER BY seq`

func (q *Queries) ListStockChangeRecordsByTemplate(ctx context.Context, templateID uuid.UUID) ([]StockChangeRecord, error) {
	rows, err := q.db.Query(ctx, listStockChangeRecordsByTemplate, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []StockChangeRecord{}
	for rows.Next() {
		i, err := scanStockRecord(rows)
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

const listStockChangeRecords = `-- name: ListStockChangeRecords :many
SELECT ` + stockRecordColumns + ` FROM stock_change_records
WHERE ($1::timestamptz IS NULL OR created_at >= $1)
  AND ($2::timestamptz IS NULL OR created_at < $2)
  AND ($3::text IS NULL OR template_name ILIKE '%' || $3 || '%')
  AND ($4::stock_change_type IS NULL OR change_type = $4)
ORDER BY seq DESC
LIMIT $5`

type ListStockChangeRecordsParams struct {
	From       pgtype.Timestamptz  `json:"from"`
	To         pgtype.Timestamptz  `json:"to"`
	Name       pgtype.Text         `json:"name"`
	ChangeType NullStockChangeType `json:"change_type"`
	Limit      int32               `json:"limit"`
}

func (q *Queries) ListStockChangeRecords(ctx context.Context, arg ListStockChangeRecordsParams) ([]StockChangeRecord, error) {
	var changeType interface{}
	if arg.ChangeType.Valid {
		changeType = string(arg.ChangeType.StockChangeType)
	}
	rows, err := q.db.Query(ctx, listStockChangeRecords,
		arg.From,
		arg.To,
		arg.Name,
		changeType,
		arg.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []StockChangeRecord{}
	for rows.Next() {
		i, err := scanStockRecord(rows)
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
