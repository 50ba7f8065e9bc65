package service

import "errors"

// Error categories. Every error returned by this package that the caller can
// act on matches exactly one of them with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrOutOfStock         = errors.New("out of stock")
	ErrValidation         = errors.New("validation failed")
	ErrAlreadyUsed        = errors.New("already used")
	ErrExpired            = errors.New("expired")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrTransactionAborted = errors.New("transaction aborted")
)

// kindError is a specific failure that also matches its category.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string        { return e.msg }
func (e *kindError) Is(target error) bool { return target == e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Errors returned by the ledger, coupon and order services.
var (
	ErrStoreNotFound          = newError(ErrNotFound, "store not found")
	ErrTemplateNotFound       = newError(ErrNotFound, "template not found")
	ErrOptionNotFound         = newError(ErrNotFound, "option not found")
	ErrOrderNotFound          = newError(ErrNotFound, "order not found")
	ErrInstanceNotFound       = newError(ErrNotFound, "order line not found")
	ErrCouponNotFound         = newError(ErrNotFound, "coupon not found")
	ErrCouponTemplateNotFound = newError(ErrNotFound, "coupon template not found")

	ErrEmptyItems           = newError(ErrValidation, "items are required")
	ErrInvalidQuantity      = newError(ErrValidation, "quantity must be > 0")
	ErrInvalidPickupMethod  = newError(ErrValidation, "invalid pickup_method")
	ErrInvalidPaymentMethod = newError(ErrValidation, "invalid payment_method")
	ErrInvalidPlatform      = newError(ErrValidation, "invalid platform")
	ErrInvalidAmount        = newError(ErrValidation, "money amounts must be >= 0")
	ErrNegativeTotal        = newError(ErrValidation, "order total would be negative")
	ErrTemplateUnavailable  = newError(ErrValidation, "template is not available")
	ErrOptionMismatch       = newError(ErrValidation, "option does not belong to template")
	ErrComboItemMismatch    = newError(ErrValidation, "combo items do not match the combo template")
	ErrInvalidStatus        = newError(ErrValidation, "invalid status")
	ErrDuplicateCoupon      = newError(ErrValidation, "coupon listed more than once")
	ErrExchangeItemMissing  = newError(ErrValidation, "order has no item matching the exchange coupon")
	ErrMissingCustomer      = newError(ErrValidation, "coupons require a customer")

	ErrInvalidStock       = newError(ErrValidation, "stock must be >= -1")
	ErrStockNegative      = newError(ErrValidation, "adjustment would make stock negative")
	ErrStockOverflow      = newError(ErrValidation, "stock is out of range")
	ErrDisplayAboveActual = newError(ErrValidation, "display stock cannot exceed actual stock")
	ErrZeroAdjustment     = newError(ErrValidation, "adjustment must be non-zero")
	ErrStockNotTracked    = newError(ErrValidation, "stock tracking is disabled for this template")

	ErrCouponInactive        = newError(ErrValidation, "coupon template is not active")
	ErrCouponOutsideWindow   = newError(ErrValidation, "coupon template is not on sale")
	ErrCouponLimitReached    = newError(ErrValidation, "coupon limit per customer reached")
	ErrInvalidCouponTemplate = newError(ErrValidation, "invalid coupon template")
	ErrInvalidAcquisition    = newError(ErrValidation, "invalid acquisition method")
	ErrCouponSoldOut         = newError(ErrOutOfStock, "coupon template sold out")
	ErrCouponUsed            = newError(ErrAlreadyUsed, "coupon already used")
	ErrCouponExpired         = newError(ErrExpired, "coupon expired")
	ErrCouponNotStarted      = newError(ErrExpired, "coupon not yet valid")
	ErrCouponNotOwned        = newError(ErrForbidden, "coupon belongs to another customer")
	ErrCouponTemplateInUse   = newError(ErrConflict, "coupon template has issued coupons")
	ErrTemplateInUse         = newError(ErrConflict, "template is referenced by orders")
	ErrOrderNotUnpaid        = newError(ErrConflict, "order is no longer unpaid")
	ErrOrderStatusTransition = newError(ErrConflict, "status transition not allowed")
	ErrOrderNotOwned         = newError(ErrForbidden, "order belongs to another customer")
)
