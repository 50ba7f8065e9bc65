package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/tabemono-pos/api/internal/database"
)

// LedgerStore defines the DB methods needed by the inventory ledger.
// Satisfied by *database.Queries (and its WithTx variant).
type LedgerStore interface {
	GetTemplate(ctx context.Context, id uuid.UUID) (database.SellableTemplate, error)
	GetTemplateForUpdate(ctx context.Context, id uuid.UUID) (database.SellableTemplate, error)
	UpdateTemplateStock(ctx context.Context, arg database.UpdateTemplateStockParams) (database.SellableTemplate, error)
	CreateStockChangeRecord(ctx context.Context, arg database.CreateStockChangeRecordParams) (database.StockChangeRecord, error)
	ListStockChangeRecordsByTemplate(ctx context.Context, templateID uuid.UUID) ([]database.StockChangeRecord, error)
	ListStockChangeRecords(ctx context.Context, arg database.ListStockChangeRecordsParams) ([]database.StockChangeRecord, error)
}

// CouponStore defines the DB methods needed by coupon issuing and redemption.
// Satisfied by *database.Queries (and its WithTx variant).
type CouponStore interface {
	GetCouponTemplate(ctx context.Context, id uuid.UUID) (database.CouponTemplate, error)
	GetCouponTemplateForUpdate(ctx context.Context, id uuid.UUID) (database.CouponTemplate, error)
	ListCouponTemplates(ctx context.Context) ([]database.CouponTemplate, error)
	CreateCouponTemplate(ctx context.Context, arg database.CreateCouponTemplateParams) (database.CouponTemplate, error)
	UpdateCouponTemplate(ctx context.Context, arg database.UpdateCouponTemplateParams) (database.CouponTemplate, error)
	DeleteCouponTemplate(ctx context.Context, id uuid.UUID) error
	DecrementCouponTemplateStock(ctx context.Context, id uuid.UUID) (int32, error)
	CountCouponInstancesByTemplate(ctx context.Context, templateID uuid.UUID) (int64, error)
	CountUnusedCouponsByOwner(ctx context.Context, arg database.CountUnusedCouponsByOwnerParams) (int64, error)

	CreateCouponInstance(ctx context.Context, arg database.CreateCouponInstanceParams) (database.CouponInstance, error)
	GetCouponInstance(ctx context.Context, id uuid.UUID) (database.CouponInstance, error)
	GetCouponInstanceForUpdate(ctx context.Context, id uuid.UUID) (database.CouponInstance, error)
	ListCouponInstancesByOwner(ctx context.Context, owner uuid.UUID) ([]database.CouponInstance, error)
	ListUsableCouponInstances(ctx context.Context, arg database.ListUsableCouponInstancesParams) ([]database.CouponInstance, error)
	MarkCouponUsed(ctx context.Context, arg database.MarkCouponUsedParams) (database.CouponInstance, error)
	ResetCoupon(ctx context.Context, id uuid.UUID) (database.CouponInstance, error)
}

// OrderStore defines the order, instance and catalog lookups used while
// placing and reversing orders.
type OrderStore interface {
	GetStore(ctx context.Context, id uuid.UUID) (database.Store, error)
	GetOptionForTemplate(ctx context.Context, arg database.GetOptionForTemplateParams) (database.GetOptionForTemplateRow, error)
	ListComboDishes(ctx context.Context, comboID uuid.UUID) ([]database.ListComboDishesRow, error)

	GetNextOrderNumber(ctx context.Context, arg database.GetNextOrderNumberParams) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error

	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	DeleteOrderItems(ctx context.Context, orderID uuid.UUID) error
	DeleteOrderItemByInstance(ctx context.Context, arg database.DeleteOrderItemByInstanceParams) (int64, error)

	CreateInstance(ctx context.Context, arg database.CreateInstanceParams) (database.SellableInstance, error)
	GetInstance(ctx context.Context, id uuid.UUID) (database.SellableInstance, error)
	ListInstancesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.SellableInstance, error)
	ListChildInstances(ctx context.Context, parentID uuid.UUID) ([]database.SellableInstance, error)
	DeleteChildInstances(ctx context.Context, parentID uuid.UUID) error
	DeleteInstance(ctx context.Context, id uuid.UUID) error
}

// Store is everything the services touch. Satisfied by *database.Queries.
type Store interface {
	LedgerStore
	CouponStore
	OrderStore
}

var _ Store = (*database.Queries)(nil)
