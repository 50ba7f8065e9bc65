package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, store_id, order_number, business_date, platform, pickup_method, payment_method, online_payment_code, order_amount, manual_discount, discounts, points_discount, delivery_fee, total_money, status, table_number, remarks, delivery_address, scheduled_pickup_time, customer_id, applied_coupons, weekday, created_by, created_at, updated_at`

func scanOrder(row rowScanner) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.StoreID,
		&i.OrderNumber,
		&i.BusinessDate,
		&i.Platform,
		&i.PickupMethod,
		&i.PaymentMethod,
		&i.OnlinePaymentCode,
		&i.OrderAmount,
		&i.ManualDiscount,
		&i.Discounts,
		&i.PointsDiscount,
		&i.DeliveryFee,
		&i.TotalMoney,
		&i.Status,
		&i.TableNumber,
		&i.Remarks,
		&i.DeliveryAddress,
		&i.ScheduledPickupTime,
		&i.CustomerID,
		&i.AppliedCoupons,
		&i.Weekday,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getNextOrderNumber = `-- name: GetNextOrderNumber :one
SELECT (COALESCE(MAX(order_number), 0) + 1)::int
FROM orders
WHERE store_id = $1 AND business_date = $2`

type GetNextOrderNumberParams struct {
	StoreID      uuid.UUID   `json:"store_id"`
	BusinessDate pgtype.Date `json:"business_date"`
}

func (q *Queries) GetNextOrderNumber(ctx context.Context, arg GetNextOrderNumberParams) (int32, error) {
	var next int32
	err := q.db.QueryRow(ctx, getNextOrderNumber, arg.StoreID, arg.BusinessDate).Scan(&next)
	return next, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
    store_id, order_number, business_date, platform, pickup_method, payment_method,
    online_payment_code, manual_discount, points_discount, delivery_fee,
    table_number, remarks, delivery_address, scheduled_pickup_time, customer_id,
    weekday, created_by, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	StoreID             uuid.UUID          `json:"store_id"`
	OrderNumber         int32              `json:"order_number"`
	BusinessDate        pgtype.Date        `json:"business_date"`
	Platform            string             `json:"platform"`
	PickupMethod        string             `json:"pickup_method"`
	PaymentMethod       string             `json:"payment_method"`
	OnlinePaymentCode   pgtype.Text        `json:"online_payment_code"`
	ManualDiscount      pgtype.Numeric     `json:"manual_discount"`
	PointsDiscount      pgtype.Numeric     `json:"points_discount"`
	DeliveryFee         pgtype.Numeric     `json:"delivery_fee"`
	TableNumber         pgtype.Text        `json:"table_number"`
	Remarks             pgtype.Text        `json:"remarks"`
	DeliveryAddress     pgtype.Text        `json:"delivery_address"`
	ScheduledPickupTime pgtype.Timestamptz `json:"scheduled_pickup_time"`
	CustomerID          pgtype.UUID        `json:"customer_id"`
	Weekday             string             `json:"weekday"`
	CreatedBy           pgtype.UUID        `json:"created_by"`
	CreatedAt           time.Time          `json:"created_at"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.StoreID,
		arg.OrderNumber,
		arg.BusinessDate,
		arg.Platform,
		arg.PickupMethod,
		arg.PaymentMethod,
		arg.OnlinePaymentCode,
		arg.ManualDiscount,
		arg.PointsDiscount,
		arg.DeliveryFee,
		arg.TableNumber,
		arg.Remarks,
		arg.DeliveryAddress,
		arg.ScheduledPickupTime,
		arg.CustomerID,
		arg.Weekday,
		arg.CreatedBy,
		arg.CreatedAt,
	)
	return scanOrder(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + ` FROM orders
WHERE store_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at DESC`

type ListOrdersParams struct {
	StoreID uuid.UUID `json:"store_id"`
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.StoreID, arg.From, arg.To)
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

const updateOrderTotals = `-- name: UpdateOrderTotals :one
UPDATE orders
SET order_amount = $2, discounts = $3, total_money = $4, applied_coupons = $5, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderTotalsParams struct {
	ID             uuid.UUID      `json:"id"`
	OrderAmount    pgtype.Numeric `json:"order_amount"`
	Discounts      pgtype.Numeric `json:"discounts"`
	TotalMoney     pgtype.Numeric `json:"total_money"`
	AppliedCoupons []uuid.UUID    `json:"applied_coupons"`
}

func (q *Queries) UpdateOrderTotals(ctx context.Context, arg UpdateOrderTotalsParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderTotals,
		arg.ID,
		arg.OrderAmount,
		arg.Discounts,
		arg.TotalMoney,
		arg.AppliedCoupons,
	)
	return scanOrder(row)
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID       uuid.UUID   `json:"id"`
	Status   OrderStatus `json:"status"`
	Status_2 OrderStatus `json:"status_2"`
}

// UpdateOrderStatus only moves an order that is still in Status_2; a
// concurrent transition makes it return pgx.ErrNoRows.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.Status_2))
}

const deleteOrder = `-- name: DeleteOrder :exec
DELETE FROM orders WHERE id = $1`

func (q *Queries) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteOrder, id)
	return err
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, instance_id, quantity, line_total)
VALUES ($1, $2, $3, $4)
RETURNING id, order_id, instance_id, quantity, line_total`

type CreateOrderItemParams struct {
	OrderID    uuid.UUID      `json:"order_id"`
	InstanceID uuid.UUID      `json:"instance_id"`
	Quantity   int32          `json:"quantity"`
	LineTotal  pgtype.Numeric `json:"line_total"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	var i OrderItem
	err := q.db.QueryRow(ctx, createOrderItem, arg.OrderID, arg.InstanceID, arg.Quantity, arg.LineTotal).Scan(
		&i.ID,
		&i.OrderID,
		&i.InstanceID,
		&i.Quantity,
		&i.LineTotal,
	)
	return i, err
}

const listOrderItems = `-- name: ListOrderItems :many
SELECT oi.id, oi.order_id, oi.instance_id, oi.quantity, oi.line_total
FROM order_items oi
JOIN sellable_instances si ON si.id = oi.instance_id
WHERE oi.order_id = $1
ORDER BY si.created_at, si.id`

func (q *Queries) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(&i.ID, &i.OrderID, &i.InstanceID, &i.Quantity, &i.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteOrderItems = `-- name: DeleteOrderItems :exec
DELETE FROM order_items WHERE order_id = $1`

func (q *Queries) DeleteOrderItems(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteOrderItems, orderID)
	return err
}

const deleteOrderItemByInstance = `-- name: DeleteOrderItemByInstance :execrows
DELETE FROM order_items WHERE order_id = $1 AND instance_id = $2`

type DeleteOrderItemByInstanceParams struct {
	OrderID    uuid.UUID `json:"order_id"`
	InstanceID uuid.UUID `json:"instance_id"`
}

func (q *Queries) DeleteOrderItemByInstance(ctx context.Context, arg DeleteOrderItemByInstanceParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteOrderItemByInstance, arg.OrderID, arg.InstanceID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
