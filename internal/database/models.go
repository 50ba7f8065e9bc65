package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type SellableKind string

const (
	SellableKindDish  SellableKind = "dish"
	SellableKindCombo SellableKind = "combo"
)

func (e *SellableKind) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = SellableKind(s)
	case string:
		*e = SellableKind(s)
	default:
		return fmt.Errorf("unsupported scan type for SellableKind: %T", src)
	}
	return nil
}

type NullSellableKind struct {
	SellableKind SellableKind
	Valid        bool
}

type StockChangeType string

const (
	StockChangeTypeOrder            StockChangeType = "order"
	StockChangeTypeManualAdd        StockChangeType = "manual_add"
	StockChangeTypeManualSubtract   StockChangeType = "manual_subtract"
	StockChangeTypeSystemAdjustment StockChangeType = "system_adjustment"
	StockChangeTypeInitialStock     StockChangeType = "initial_stock"
)

func (e *StockChangeType) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = StockChangeType(s)
	case string:
		*e = StockChangeType(s)
	default:
		return fmt.Errorf("unsupported scan type for StockChangeType: %T", src)
	}
	return nil
}

type NullStockChangeType struct {
	StockChangeType StockChangeType
	Valid           bool
}

type CouponType string

const (
	CouponTypeDiscount CouponType = "discount"
	CouponTypeExchange CouponType = "exchange"
)

func (e *CouponType) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = CouponType(s)
	case string:
		*e = CouponType(s)
	default:
		return fmt.Errorf("unsupported scan type for CouponType: %T", src)
	}
	return nil
}

type OrderStatus string

const (
	OrderStatusUnpaid    OrderStatus = "Unpaid"
	OrderStatusCompleted OrderStatus = "Completed"
	OrderStatusCanceled  OrderStatus = "Canceled"
)

func (e *OrderStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = OrderStatus(s)
	case string:
		*e = OrderStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for OrderStatus: %T", src)
	}
	return nil
}

type NullOrderStatus struct {
	OrderStatus OrderStatus
	Valid       bool
}

type Store struct {
	ID            uuid.UUID   `json:"id"`
	Name          string      `json:"name"`
	MenuID        pgtype.UUID `json:"menu_id"`
	ImageUrl      pgtype.Text `json:"image_url"`
	ImagePublicID pgtype.Text `json:"image_public_id"`
	Announcements []byte      `json:"announcements"`
	CreatedAt     time.Time   `json:"created_at"`
}

type Menu struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MenuCategory struct {
	ID        uuid.UUID `json:"id"`
	MenuID    uuid.UUID `json:"menu_id"`
	Name      string    `json:"name"`
	SortOrder int32     `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

type PointSystem struct {
	ID             uuid.UUID      `json:"id"`
	Name           string         `json:"name"`
	MinAmount      pgtype.Numeric `json:"min_amount"`
	AmountPerPoint pgtype.Numeric `json:"amount_per_point"`
	Description    pgtype.Text    `json:"description"`
	Active         bool           `json:"active"`
	CreatedAt      time.Time      `json:"created_at"`
}

type User struct {
	ID             uuid.UUID `json:"id"`
	StoreID        uuid.UUID `json:"store_id"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	HashedPassword string    `json:"hashed_password"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

type Customer struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"hashed_password"`
	CreatedAt      time.Time `json:"created_at"`
}

type SellableTemplate struct {
	ID            uuid.UUID      `json:"id"`
	Kind          SellableKind   `json:"kind"`
	Name          string         `json:"name"`
	BasePrice     pgtype.Numeric `json:"base_price"`
	Description   pgtype.Text    `json:"description"`
	ImageUrl      pgtype.Text    `json:"image_url"`
	ImagePublicID pgtype.Text    `json:"image_public_id"`
	IsAvailable   bool           `json:"is_available"`
	ActualStock   int32          `json:"actual_stock"`
	DisplayStock  int32          `json:"display_stock"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type SellableInstance struct {
	ID                  uuid.UUID      `json:"id"`
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
	CreatedAt           time.Time      `json:"created_at"`
}

type StockChangeRecord struct {
	ID            uuid.UUID       `json:"id"`
	Seq           int64           `json:"seq"`
	TemplateID    uuid.UUID       `json:"template_id"`
	TemplateName  string          `json:"template_name"`
	PreviousStock int32           `json:"previous_stock"`
	NewStock      int32           `json:"new_stock"`
	ChangeAmount  int32           `json:"change_amount"`
	ChangeType    StockChangeType `json:"change_type"`
	Reason        pgtype.Text     `json:"reason"`
	AdminID       pgtype.UUID     `json:"admin_id"`
	OrderID       pgtype.UUID     `json:"order_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

type CouponTemplate struct {
	ID                 uuid.UUID          `json:"id"`
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
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

type CouponInstance struct {
	ID                 uuid.UUID          `json:"id"`
	TemplateID         uuid.UUID          `json:"template_id"`
	Name               string             `json:"name"`
	Type               CouponType         `json:"type"`
	Discount           pgtype.Numeric     `json:"discount"`
	ExchangeTemplateID pgtype.UUID        `json:"exchange_template_id"`
	StartAt            time.Time          `json:"start_at"`
	ExpireAt           time.Time          `json:"expire_at"`
	IsUsed             bool               `json:"is_used"`
	UsedAt             pgtype.Timestamptz `json:"used_at"`
	UsedOrder          pgtype.UUID        `json:"used_order"`
	Owner              uuid.UUID          `json:"owner"`
	AcquisitionMethod  string             `json:"acquisition_method"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

type Order struct {
	ID                  uuid.UUID          `json:"id"`
	StoreID             uuid.UUID          `json:"store_id"`
	OrderNumber         int32              `json:"order_number"`
	BusinessDate        pgtype.Date        `json:"business_date"`
	Platform            string             `json:"platform"`
	PickupMethod        string             `json:"pickup_method"`
	PaymentMethod       string             `json:"payment_method"`
	OnlinePaymentCode   pgtype.Text        `json:"online_payment_code"`
	OrderAmount         pgtype.Numeric     `json:"order_amount"`
	ManualDiscount      pgtype.Numeric     `json:"manual_discount"`
	Discounts           pgtype.Numeric     `json:"discounts"`
	PointsDiscount      pgtype.Numeric     `json:"points_discount"`
	DeliveryFee         pgtype.Numeric     `json:"delivery_fee"`
	TotalMoney          pgtype.Numeric     `json:"total_money"`
	Status              OrderStatus        `json:"status"`
	TableNumber         pgtype.Text        `json:"table_number"`
	Remarks             pgtype.Text        `json:"remarks"`
	DeliveryAddress     pgtype.Text        `json:"delivery_address"`
	ScheduledPickupTime pgtype.Timestamptz `json:"scheduled_pickup_time"`
	CustomerID          pgtype.UUID        `json:"customer_id"`
	AppliedCoupons      []uuid.UUID        `json:"applied_coupons"`
	Weekday             string             `json:"weekday"`
	CreatedBy           pgtype.UUID        `json:"created_by"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

type OrderItem struct {
	ID         uuid.UUID      `json:"id"`
	OrderID    uuid.UUID      `json:"order_id"`
	InstanceID uuid.UUID      `json:"instance_id"`
	Quantity   int32          `json:"quantity"`
	LineTotal  pgtype.Numeric `json:"line_total"`
}
