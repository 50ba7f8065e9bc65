package enum

// ── Group A: State machines (enum typed in DB) ──

const (
	OrderStatusUnpaid    = "Unpaid"
	OrderStatusCompleted = "Completed"
	OrderStatusCanceled  = "Canceled"
)

const (
	SellableKindDish  = "dish"
	SellableKindCombo = "combo"
)

const (
	StockChangeOrder            = "order"
	StockChangeManualAdd        = "manual_add"
	StockChangeManualSubtract   = "manual_subtract"
	StockChangeSystemAdjustment = "system_adjustment"
	StockChangeInitialStock     = "initial_stock"
)

const (
	CouponTypeDiscount = "discount"
	CouponTypeExchange = "exchange"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin    = "ADMIN"
	UserRoleStaff    = "STAFF"
	UserRoleCustomer = "CUSTOMER"
)

const (
	AcquisitionPurchase = "purchase"
	AcquisitionActivity = "activity"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	PickupDineIn   = "dine_in"
	PickupTakeout  = "takeout"
	PickupDelivery = "delivery"
)

const (
	PaymentCash      = "cash"
	PaymentLinePay   = "linepay"
	PaymentFoodpanda = "foodpanda"
	PaymentUberEats  = "ubereats"
)

const (
	PlatformPOS       = "pos"
	PlatformOnline    = "online"
	PlatformFoodpanda = "foodpanda"
	PlatformUberEats  = "ubereats"
)

// Stock change reasons written by the order workflow.
const (
	ReasonOrderDeleted    = "order deleted"
	ReasonOrderCanceled   = "order canceled"
	ReasonLineRemoved     = "order line removed"
	ReasonManualAdjust    = "manual adjustment"
	ReasonInitializeStock = "initialize stock"
)
