package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getDailySales = `-- name: GetDailySales :many
SELECT business_date,
       COUNT(*) AS order_count,
       COALESCE(SUM(order_amount), 0)::numeric(12,2) AS order_amount,
       COALESCE(SUM(discounts + manual_discount + points_discount), 0)::numeric(12,2) AS total_discount,
       COALESCE(SUM(total_money), 0)::numeric(12,2) AS total_money
FROM orders
WHERE store_id = $1 AND status = 'Completed' AND business_date BETWEEN $2 AND $3
GROUP BY business_date
ORDER BY business_date`

type GetDailySalesParams struct {
	StoreID  uuid.UUID   `json:"store_id"`
	FromDate pgtype.Date `json:"from_date"`
	ToDate   pgtype.Date `json:"to_date"`
}

type GetDailySalesRow struct {
	BusinessDate  pgtype.Date    `json:"business_date"`
	OrderCount    int64          `json:"order_count"`
	OrderAmount   pgtype.Numeric `json:"order_amount"`
	TotalDiscount pgtype.Numeric `json:"total_discount"`
	TotalMoney    pgtype.Numeric `json:"total_money"`
}

func (q *Queries) GetDailySales(ctx context.Context, arg GetDailySalesParams) ([]GetDailySalesRow, error) {
	rows, err := q.db.Query(ctx, getDailySales, arg.StoreID, arg.FromDate, arg.ToDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetDailySalesRow{}
	for rows.Next() {
		var i GetDailySalesRow
		if err := rows.Scan(
			&i.BusinessDate,
			&i.OrderCount,
			&i.OrderAmount,
			&i.TotalDiscount,
			&i.TotalMoney,
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

const getTemplateSales = `-- name: GetTemplateSales :many
SELECT si.template_id, st.name, st.kind,
       SUM(oi.quantity)::bigint AS quantity_sold,
       SUM(oi.line_total)::numeric(12,2) AS revenue
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
JOIN sellable_instances si ON si.id = oi.instance_id
JOIN sellable_templates st ON st.id = si.template_id
WHERE o.store_id = $1 AND o.status = 'Completed' AND o.business_date BETWEEN $2 AND $3
GROUP BY si.template_id, st.name, st.kind
ORDER BY quantity_sold DESC, revenue DESC
LIMIT $4`

type GetTemplateSalesParams struct {
	StoreID  uuid.UUID   `json:"store_id"`
	FromDate pgtype.Date `json:"from_date"`
	ToDate   pgtype.Date `json:"to_date"`
	Limit    int32       `json:"limit"`
}

type GetTemplateSalesRow struct {
	TemplateID   uuid.UUID      `json:"template_id"`
	Name         string         `json:"name"`
	Kind         SellableKind   `json:"kind"`
	QuantitySold int64          `json:"quantity_sold"`
	Revenue      pgtype.Numeric `json:"revenue"`
}

func (q *Queries) GetTemplateSales(ctx context.Context, arg GetTemplateSalesParams) ([]GetTemplateSalesRow, error) {
	rows, err := q.db.Query(ctx, getTemplateSales, arg.StoreID, arg.FromDate, arg.ToDate, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetTemplateSalesRow{}
	for rows.Next() {
		var i GetTemplateSalesRow
		if err := rows.Scan(
			&i.TemplateID,
			&i.Name,
			&i.Kind,
			&i.QuantitySold,
			&i.Revenue,
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

const getPaymentSummary = `-- name: GetPaymentSummary :many
SELECT payment_method,
       COUNT(*) AS order_count,
       COALESCE(SUM(total_money), 0)::numeric(12,2) AS total_money
FROM orders
WHERE store_id = $1 AND status = 'Completed' AND business_date BETWEEN $2 AND $3
GROUP BY payment_method
ORDER BY total_money DESC`

type GetPaymentSummaryParams struct {
	StoreID  uuid.UUID   `json:"store_id"`
	FromDate pgtype.Date `json:"from_date"`
	ToDate   pgtype.Date `json:"to_date"`
}

type GetPaymentSummaryRow struct {
	PaymentMethod string         `json:"payment_method"`
	OrderCount    int64          `json:"order_count"`
	TotalMoney    pgtype.Numeric `json:"total_money"`
}

func (q *Queries) GetPaymentSummary(ctx context.Context, arg GetPaymentSummaryParams) ([]GetPaymentSummaryRow, error) {
	rows, err := q.db.Query(ctx, getPaymentSummary, arg.StoreID, arg.FromDate, arg.ToDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetPaymentSummaryRow{}
	for rows.Next() {
		var i GetPaymentSummaryRow
		if err := rows.Scan(&i.PaymentMethod, &i.OrderCount, &i.TotalMoney); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getCustomerStats = `-- name: GetCustomerStats :one
SELECT COUNT(*) AS total_orders,
       COALESCE(SUM(total_money), 0)::numeric(12,2) AS total_spend,
       COALESCE(AVG(total_money), 0)::numeric(12,2) AS avg_ticket
FROM orders
WHERE customer_id = $1 AND status = 'Completed'`

type GetCustomerStatsRow struct {
	TotalOrders int64          `json:"total_orders"`
	TotalSpend  pgtype.Numeric `json:"total_spend"`
	AvgTicket   pgtype.Numeric `json:"avg_ticket"`
}

func (q *Queries) GetCustomerStats(ctx context.Context, customerID uuid.UUID) (GetCustomerStatsRow, error) {
	var i GetCustomerStatsRow
	err := q.db.QueryRow(ctx, getCustomerStats, customerID).Scan(&i.TotalOrders, &i.TotalSpend, &i.AvgTicket)
	return i, err
}

const listCustomerOrders = `-- name: ListCustomerOrders :many
SELECT ` + orderColumns + ` FROM orders
WHERE customer_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListCustomerOrdersParams struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Limit      int32     `json:"limit"`
	Offset     int32     `json:"offset"`
}

func (q *Queries) ListCustomerOrders(ctx context.Context, arg ListCustomerOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listCustomerOrders, arg.CustomerID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
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
