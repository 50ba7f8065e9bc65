package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tabemono-pos/api/internal/database"
	"github.com/tabemono-pos/api/internal/enum"
	"github.com/tabemono-pos/api/internal/events"
)

// DefaultCouponValidity applies when a coupon template has no end date.
const DefaultCouponValidity = 30 * 24 * time.Hour

// Redeemer moves coupon instances between unused and used inside the
// caller's transaction. The row is locked before it is checked.
type Redeemer struct {
	store CouponStore
}

// NewRedeemer binds a redeemer to store, normally a transaction-scoped store.
func NewRedeemer(store CouponStore) *Redeemer {
	return &Redeemer{store: store}
}

// Apply marks a coupon used by orderID. Checks run in this order: used,
// expired, not yet valid, owner.
func (r *Redeemer) Apply(ctx context.Context, couponID, orderID, actor uuid.UUID, now time.Time) (database.CouponInstance, error) {
	c, err := r.store.GetCouponInstanceForUpdate(ctx, couponID)
	if err != nil {
		if isNoRows(err) {
			return database.CouponInstance{}, ErrCouponNotFound
		}
		return database.CouponInstance{}, fmt.Errorf("lock coupon: %w", err)
	}

	switch {
	case c.IsUsed:
		return database.CouponInstance{}, ErrCouponUsed
	case now.After(c.ExpireAt):
		return database.CouponInstance{}, ErrCouponExpired
	case now.Before(c.StartAt):
		return database.CouponInstance{}, ErrCouponNotStarted
	case c.Owner != actor:
		return database.CouponInstance{}, ErrCouponNotOwned
	}

	used, err := r.store.MarkCouponUsed(ctx, database.MarkCouponUsedParams{
		ID:        c.ID,
		UsedAt:    now,
		UsedOrder: orderID,
	})
	if err != nil {
		if isNoRows(err) {
			return database.CouponInstance{}, ErrCouponUsed
		}
		return database.CouponInstance{}, fmt.Errorf("mark coupon used: %w", err)
	}
	return used, nil
}

// Reverse resets a coupon to unused. Reversing an unused coupon is a no-op.
func (r *Redeemer) Reverse(ctx context.Context, couponID uuid.UUID) (database.CouponInstance, error) {
	c, err := r.store.ResetCoupon(ctx, couponID)
	if err != nil {
		if isNoRows(err) {
			return database.CouponInstance{}, ErrCouponNotFound
		}
		return database.CouponInstance{}, fmt.Errorf("reset coupon: %w", err)
	}
	return c, nil
}

// CouponLine is what a coupon discount is computed against.
type CouponLine struct {
	TemplateID uuid.UUID
	BasePrice  decimal.Decimal
}

// DiscountFor returns the amount a coupon takes off an order. A discount
// coupon is worth its fixed amount. An exchange coupon is worth one unit of
// the first line whose template is the exchange target.
func DiscountFor(c database.CouponInstance, lines []CouponLine) (decimal.Decimal, error) {
	d, _, err := discountFor(c, lines)
	return d, err
}

// discountFor also reports which line an exchange coupon consumed, or -1.
func discountFor(c database.CouponInstance, lines []CouponLine) (decimal.Decimal, int, error) {
	switch c.Type {
	case database.CouponTypeDiscount:
		return numericToDecimal(c.Discount), -1, nil
	case database.CouponTypeExchange:
		if !c.ExchangeTemplateID.Valid {
			return decimal.Zero, -1, ErrExchangeItemMissing
		}
		target := uuid.UUID(c.ExchangeTemplateID.Bytes)
		for i, l := range lines {
			if l.TemplateID == target {
				return l.BasePrice, i, nil
			}
		}
		return decimal.Zero, -1, ErrExchangeItemMissing
	}
	return decimal.Zero, -1, ErrInvalidCouponTemplate
}

// CouponsDiscount sums the discount of every coupon against units, one entry
// per sold unit. Each exchange coupon consumes the unit it is redeemed for.
func CouponsDiscount(coupons []database.CouponInstance, units []CouponLine) (decimal.Decimal, error) {
	free := append([]CouponLine(nil), units...)
	total := decimal.Zero
	for _, c := range coupons {
		d, idx, err := discountFor(c, free)
		if err != nil {
			return decimal.Zero, fmt.Errorf("coupon %s: %w", c.ID, err)
		}
		if idx >= 0 {
			free = append(free[:idx], free[idx+1:]...)
		}
		total = total.Add(d)
	}
	return total, nil
}

// CouponService issues coupons and administers coupon templates.
type CouponService struct {
	run    runner
	notify events.Notifier
	now    func() time.Time
}

// NewCouponService creates a new CouponService.
func NewCouponService(db DB, newStore NewStore, notify events.Notifier) *CouponService {
	if notify == nil {
		notify = events.Discard
	}
	return &CouponService{run: runner{db: db, newStore: newStore}, notify: notify, now: time.Now}
}

// Purchase sells one coupon of an active, on-sale template to a customer.
func (s *CouponService) Purchase(ctx context.Context, templateID, customerID uuid.UUID) (database.CouponInstance, error) {
	return s.issue(ctx, templateID, customerID, enum.AcquisitionPurchase)
}

// Issue grants a coupon to a customer outside the shop, e.g. for an activity.
// The active flag and the sale start date are not checked.
func (s *CouponService) Issue(ctx context.Context, templateID, customerID uuid.UUID, method string) (database.CouponInstance, error) {
	if method == "" {
		method = enum.AcquisitionActivity
	}
	if method != enum.AcquisitionActivity && method != enum.AcquisitionPurchase {
		return database.CouponInstance{}, ErrInvalidAcquisition
	}
	return s.issue(ctx, templateID, customerID, method)
}

func (s *CouponService) issue(ctx context.Context, templateID, customerID uuid.UUID, method string) (database.CouponInstance, error) {
	now := s.now()
	var out database.CouponInstance

	err := s.run.inTx(ctx, func(store Store) error {
		tmpl, err := store.GetCouponTemplateForUpdate(ctx, templateID)
		if err != nil {
			if isNoRows(err) {
				return ErrCouponTemplateNotFound
			}
			return fmt.Errorf("lock coupon template: %w", err)
		}

		if method == enum.AcquisitionPurchase {
			if !tmpl.Active {
				return ErrCouponInactive
			}
			if tmpl.StartAt.Valid && now.Before(tmpl.StartAt.Time) {
				return ErrCouponOutsideWindow
			}
		}
		if tmpl.EndAt.Valid && now.After(tmpl.EndAt.Time) {
			return ErrCouponOutsideWindow
		}
		if tmpl.Stock == 0 {
			return ErrCouponSoldOut
		}

		if tmpl.LimitPerCustomer != -1 {
			held, err := store.CountUnusedCouponsByOwner(ctx, database.CountUnusedCouponsByOwnerParams{
				TemplateID: tmpl.ID,
				Owner:      customerID,
			})
			if err != nil {
				return fmt.Errorf("count coupons: %w", err)
			}
			if held >= int64(tmpl.LimitPerCustomer) {
				return ErrCouponLimitReached
			}
		}

		if tmpl.Stock != -1 {
			if _, err := store.DecrementCouponTemplateStock(ctx, tmpl.ID); err != nil {
				if isNoRows(err) {
					return ErrCouponSoldOut
				}
				return fmt.Errorf("decrement coupon stock: %w", err)
			}
		}

		startAt := now
		if tmpl.StartAt.Valid && tmpl.StartAt.Time.After(now) {
			startAt = tmpl.StartAt.Time
		}
		expireAt := now.Add(DefaultCouponValidity)
		if tmpl.EndAt.Valid {
			expireAt = tmpl.EndAt.Time
		}

		c, err := store.CreateCouponInstance(ctx, database.CreateCouponInstanceParams{
			TemplateID:         tmpl.ID,
			Name:               tmpl.Name,
			Type:               tmpl.Type,
			Discount:           tmpl.Discount,
			ExchangeTemplateID: tmpl.ExchangeTemplateID,
			StartAt:            startAt,
			ExpireAt:           expireAt,
			Owner:              customerID,
			AcquisitionMethod:  method,
		})
		if err != nil {
			return fmt.Errorf("create coupon instance: %w", err)
		}
		out = c
		return nil
	})
	if err != nil {
		return database.CouponInstance{}, err
	}

	s.notify.Notify(ctx, events.New(events.CouponIssued, uuid.Nil, out))
	return out, nil
}

// GetCoupon returns one coupon instance.
func (s *CouponService) GetCoupon(ctx context.Context, id uuid.UUID) (database.CouponInstance, error) {
	c, err := s.run.reader().GetCouponInstance(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return database.CouponInstance{}, ErrCouponNotFound
		}
		return database.CouponInstance{}, fmt.Errorf("get coupon: %w", err)
	}
	return c, nil
}

// ListCustomerCoupons returns every coupon a customer owns, newest first.
func (s *CouponService) ListCustomerCoupons(ctx context.Context, customerID uuid.UUID) ([]database.CouponInstance, error) {
	cs, err := s.run.reader().ListCouponInstancesByOwner(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	return cs, nil
}

// ListUsableCoupons returns the unused coupons a customer can apply right now.
func (s *CouponService) ListUsableCoupons(ctx context.Context, customerID uuid.UUID) ([]database.CouponInstance, error) {
	cs, err := s.run.reader().ListUsableCouponInstances(ctx, database.ListUsableCouponInstancesParams{
		Owner: customerID,
		Now:   s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("list usable coupons: %w", err)
	}
	return cs, nil
}

// CouponTemplateInput is the admin-editable shape of a coupon template. Type,
// Discount and ExchangeTemplateID are fixed after creation.
type CouponTemplateInput struct {
	Name               string
	Type               string
	Discount           decimal.Decimal
	ExchangeTemplateID uuid.UUID
	Description        string
	Price              decimal.Decimal
	Active             bool
	StartAt            *time.Time
	EndAt              *time.Time
	Stock              int32
	LimitPerCustomer   int32
}

func (in CouponTemplateInput) validateCommon() error {
	if strings.TrimSpace(in.Name) == "" {
		return newError(ErrValidation, "name is required")
	}
	if in.Price.IsNegative() {
		return ErrInvalidAmount
	}
	if in.Stock < -1 || in.LimitPerCustomer < -1 {
		return ErrInvalidStock
	}
	if in.StartAt != nil && in.EndAt != nil && !in.EndAt.After(*in.StartAt) {
		return newError(ErrValidation, "end_at must be after start_at")
	}
	return nil
}

// CreateTemplate validates and stores a new coupon template.
func (s *CouponService) CreateTemplate(ctx context.Context, in CouponTemplateInput) (database.CouponTemplate, error) {
	if err := in.validateCommon(); err != nil {
		return database.CouponTemplate{}, err
	}

	params := database.CreateCouponTemplateParams{
		Name:             in.Name,
		Type:             database.CouponType(in.Type),
		Description:      pgText(in.Description),
		Price:            decimalToNumeric(in.Price),
		Active:           in.Active,
		StartAt:          pgTime(in.StartAt),
		EndAt:            pgTime(in.EndAt),
		Stock:            in.Stock,
		LimitPerCustomer: in.LimitPerCustomer,
	}

	store := s.run.reader()
	switch params.Type {
	case database.CouponTypeDiscount:
		if !in.Discount.IsPositive() {
			return database.CouponTemplate{}, newError(ErrValidation, "discount must be > 0")
		}
		params.Discount = decimalToNumeric(in.Discount)
	case database.CouponTypeExchange:
		if in.ExchangeTemplateID == uuid.Nil {
			return database.CouponTemplate{}, newError(ErrValidation, "exchange_template_id is required")
		}
		if _, err := store.GetTemplate(ctx, in.ExchangeTemplateID); err != nil {
			if isNoRows(err) {
				return database.CouponTemplate{}, ErrTemplateNotFound
			}
			return database.CouponTemplate{}, fmt.Errorf("get exchange template: %w", err)
		}
		params.ExchangeTemplateID = pgUUID(in.ExchangeTemplateID)
	default:
		return database.CouponTemplate{}, ErrInvalidCouponTemplate
	}

	t, err := store.CreateCouponTemplate(ctx, params)
	if err != nil {
		return database.CouponTemplate{}, fmt.Errorf("create coupon template: %w", err)
	}
	return t, nil
}

// UpdateTemplate rewrites the editable fields of a coupon template.
func (s *CouponService) UpdateTemplate(ctx context.Context, id uuid.UUID, in CouponTemplateInput) (database.CouponTemplate, error) {
	if err := in.validateCommon(); err != nil {
		return database.CouponTemplate{}, err
	}
	t, err := s.run.reader().UpdateCouponTemplate(ctx, database.UpdateCouponTemplateParams{
		ID:               id,
		Name:             in.Name,
		Description:      pgText(in.Description),
		Price:            decimalToNumeric(in.Price),
		Active:           in.Active,
		StartAt:          pgTime(in.StartAt),
		EndAt:            pgTime(in.EndAt),
		Stock:            in.Stock,
		LimitPerCustomer: in.LimitPerCustomer,
	})
	if err != nil {
		if isNoRows(err) {
			return database.CouponTemplate{}, ErrCouponTemplateNotFound
		}
		return database.CouponTemplate{}, fmt.Errorf("update coupon template: %w", err)
	}
	return t, nil
}

// DeleteTemplate removes a coupon template that never issued a coupon.
func (s *CouponService) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	return s.run.inTx(ctx, func(store Store) error {
		if _, err := store.GetCouponTemplateForUpdate(ctx, id); err != nil {
			if isNoRows(err) {
				return ErrCouponTemplateNotFound
			}
			return fmt.Errorf("lock coupon template: %w", err)
		}
		n, err := store.CountCouponInstancesByTemplate(ctx, id)
		if err != nil {
			return fmt.Errorf("count coupon instances: %w", err)
		}
		if n > 0 {
			return ErrCouponTemplateInUse
		}
		if err := store.DeleteCouponTemplate(ctx, id); err != nil {
			return fmt.Errorf("delete coupon template: %w", err)
		}
		return nil
	})
}

// GetTemplate returns one coupon template.
func (s *CouponService) GetTemplate(ctx context.Context, id uuid.UUID) (database.CouponTemplate, error) {
	t, err := s.run.reader().GetCouponTemplate(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return database.CouponTemplate{}, ErrCouponTemplateNotFound
		}
		return database.CouponTemplate{}, fmt.Errorf("get coupon template: %w", err)
	}
	return t, nil
}

// ListTemplates returns every coupon template, newest first.
func (s *CouponService) ListTemplates(ctx context.Context) ([]database.CouponTemplate, error) {
	ts, err := s.run.reader().ListCouponTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list coupon templates: %w", err)
	}
	return ts, nil
}

func pgTime(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}
