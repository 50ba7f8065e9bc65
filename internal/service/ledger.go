package service

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tabemono-pos/api/internal/database"
	"github.com/tabemono-pos/api/internal/enum"
)

// Untracked is the stock value meaning "tracking disabled".
const Untracked int32 = -1

// Ledger is the only writer of template stock counters. It works on a store
// bound to the caller's transaction: each counter change locks the template
// row and appends exactly one StockChangeRecord in that same transaction.
type Ledger struct {
	store   LedgerStore
	touched map[uuid.UUID]database.SellableTemplate
}

// NewLedger binds a ledger to store, normally a transaction-scoped store.
func NewLedger(store LedgerStore) *Ledger {
	return &Ledger{store: store}
}

// Reservation is the outcome of Reserve.
type Reservation struct {
	Template database.SellableTemplate
	// DisplayTaken is how far displayStock dropped when it was clamped to the
	// new actualStock. Release gives it back.
	DisplayTaken int32
	// Tracked is false when the template had stock tracking disabled.
	Tracked bool
}

// ReleaseParams describes the inverse of a reservation.
type ReleaseParams struct {
	TemplateID   uuid.UUID
	Quantity     int32
	DisplayTaken int32
	Reason       string
	OrderID      uuid.UUID
}

func (l *Ledger) lock(ctx context.Context, templateID uuid.UUID) (database.SellableTemplate, error) {
	t, err := l.store.GetTemplateForUpdate(ctx, templateID)
	if err != nil {
		if isNoRows(err) {
			return database.SellableTemplate{}, ErrTemplateNotFound
		}
		return database.SellableTemplate{}, fmt.Errorf("lock template: %w", err)
	}
	return t, nil
}

func (l *Ledger) write(ctx context.Context, t database.SellableTemplate, actual, display int32, rec database.CreateStockChangeRecordParams) (database.SellableTemplate, error) {
	updated, err := l.store.UpdateTemplateStock(ctx, database.UpdateTemplateStockParams{
		ID:           t.ID,
		ActualStock:  actual,
		DisplayStock: display,
	})
	if err != nil {
		return database.SellableTemplate{}, fmt.Errorf("update template stock: %w", err)
	}

	rec.TemplateID = t.ID
	rec.TemplateName = t.Name
	if _, err := l.store.CreateStockChangeRecord(ctx, rec); err != nil {
		return database.SellableTemplate{}, fmt.Errorf("create stock change record: %w", err)
	}

	if l.touched == nil {
		l.touched = make(map[uuid.UUID]database.SellableTemplate)
	}
	l.touched[updated.ID] = updated
	return updated, nil
}

// Touched returns the latest state of every template whose counters this
// ledger changed, ordered by template ID.
func (l *Ledger) Touched() []database.SellableTemplate {
	out := make([]database.SellableTemplate, 0, len(l.touched))
	for _, t := range l.touched {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b database.SellableTemplate) int {
		return bytes.Compare(a.ID[:], b.ID[:])
	})
	return out
}

// Reserve takes qty units of a template for an order. Untracked templates are
// left untouched and no record is written.
func (l *Ledger) Reserve(ctx context.Context, templateID uuid.UUID, qty int32, orderID uuid.UUID) (Reservation, error) {
	if qty <= 0 {
		return Reservation{}, ErrInvalidQuantity
	}

	t, err := l.lock(ctx, templateID)
	if err != nil {
		return Reservation{}, err
	}
	if t.ActualStock == Untracked {
		return Reservation{Template: t}, nil
	}
	if t.ActualStock < qty {
		return Reservation{}, fmt.Errorf("%s: %w (have %d, want %d)", t.Name, ErrOutOfStock, t.ActualStock, qty)
	}

	actual := t.ActualStock - qty
	display := t.DisplayStock
	var taken int32
	if display != Untracked && display > actual {
		taken = display - actual
		display = actual
	}

	updated, err := l.write(ctx, t, actual, display, database.CreateStockChangeRecordParams{
		PreviousStock: t.ActualStock,
		NewStock:      actual,
		ChangeAmount:  -qty,
		ChangeType:    database.StockChangeTypeOrder,
		OrderID:       pgUUID(orderID),
	})
	if err != nil {
		return Reservation{}, err
	}
	return Reservation{Template: updated, DisplayTaken: taken, Tracked: true}, nil
}

// Release returns units taken by Reserve. Untracked templates are left
// untouched and no record is written.
func (l *Ledger) Release(ctx context.Context, p ReleaseParams) (database.SellableTemplate, error) {
	if p.Quantity <= 0 {
		return database.SellableTemplate{}, ErrInvalidQuantity
	}

	t, err := l.lock(ctx, p.TemplateID)
	if err != nil {
		return database.SellableTemplate{}, err
	}
	if t.ActualStock == Untracked {
		return t, nil
	}

	actual, err := addStock(t.ActualStock, p.Quantity)
	if err != nil {
		return database.SellableTemplate{}, fmt.Errorf("%s: %w", t.Name, err)
	}
	display := t.DisplayStock
	if display != Untracked && p.DisplayTaken > 0 {
		display = min(display+p.DisplayTaken, actual)
	}

	return l.write(ctx, t, actual, display, database.CreateStockChangeRecordParams{
		PreviousStock: t.ActualStock,
		NewStock:      actual,
		ChangeAmount:  p.Quantity,
		ChangeType:    database.StockChangeTypeSystemAdjustment,
		Reason:        pgText(p.Reason),
		OrderID:       pgUUID(p.OrderID),
	})
}

// ManualAdjust adds delta (possibly negative) to actualStock on behalf of an
// admin. displayStock moves by the same delta, clamped to [0, actualStock].
func (l *Ledger) ManualAdjust(ctx context.Context, templateID uuid.UUID, delta int32, reason string, adminID uuid.UUID) (database.SellableTemplate, error) {
	if delta == 0 {
		return database.SellableTemplate{}, ErrZeroAdjustment
	}

	t, err := l.lock(ctx, templateID)
	if err != nil {
		return database.SellableTemplate{}, err
	}
	if t.ActualStock == Untracked {
		return database.SellableTemplate{}, ErrStockNotTracked
	}

	actual, err := addStock(t.ActualStock, delta)
	if err != nil {
		return database.SellableTemplate{}, fmt.Errorf("%s: %w", t.Name, err)
	}
	if actual < 0 {
		return database.SellableTemplate{}, fmt.Errorf("%s: %w", t.Name, ErrStockNegative)
	}
	display := t.DisplayStock
	if display != Untracked {
		display = int32(max(min(int64(display)+int64(delta), int64(actual)), 0))
	}

	changeType := database.StockChangeTypeManualAdd
	if delta < 0 {
		changeType = database.StockChangeTypeManualSubtract
	}
	if reason == "" {
		reason = enum.ReasonManualAdjust
	}

	return l.write(ctx, t, actual, display, database.CreateStockChangeRecordParams{
		PreviousStock: t.ActualStock,
		NewStock:      actual,
		ChangeAmount:  delta,
		ChangeType:    changeType,
		Reason:        pgText(reason),
		AdminID:       pgUUID(adminID),
	})
}

// Initialize sets both counters to initialStock, which may be -1 to turn
// tracking off. An untracked previous value is recorded as 0 so the record
// still balances.
func (l *Ledger) Initialize(ctx context.Context, templateID uuid.UUID, initialStock int32, adminID uuid.UUID) (database.SellableTemplate, error) {
	if initialStock < Untracked {
		return database.SellableTemplate{}, ErrInvalidStock
	}

	t, err := l.lock(ctx, templateID)
	if err != nil {
		return database.SellableTemplate{}, err
	}

	previous := max(t.ActualStock, 0)
	return l.write(ctx, t, initialStock, initialStock, database.CreateStockChangeRecordParams{
		PreviousStock: previous,
		NewStock:      initialStock,
		ChangeAmount:  initialStock - previous,
		ChangeType:    database.StockChangeTypeInitialStock,
		Reason:        pgText(enum.ReasonInitializeStock),
		AdminID:       pgUUID(adminID),
	})
}

// SetDisplayStock changes only the customer-facing counter. It is not
// audited.
func (l *Ledger) SetDisplayStock(ctx context.Context, templateID uuid.UUID, value int32) (database.SellableTemplate, error) {
	if value < Untracked {
		return database.SellableTemplate{}, ErrInvalidStock
	}

	t, err := l.lock(ctx, templateID)
	if err != nil {
		return database.SellableTemplate{}, err
	}
	if t.ActualStock != Untracked && value > t.ActualStock {
		return database.SellableTemplate{}, ErrDisplayAboveActual
	}

	updated, err := l.store.UpdateTemplateStock(ctx, database.UpdateTemplateStockParams{
		ID:           t.ID,
		ActualStock:  t.ActualStock,
		DisplayStock: value,
	})
	if err != nil {
		return database.SellableTemplate{}, fmt.Errorf("update display stock: %w", err)
	}
	return updated, nil
}

// Reconciliation compares actualStock with the value replayed from the
// template's stock change records.
type Reconciliation struct {
	TemplateID  uuid.UUID `json:"template_id"`
	ActualStock int32     `json:"actual_stock"`
	Replayed    int32     `json:"replayed"`
	Records     int       `json:"records"`
	// BrokenAt is the seq of the first record whose previous_stock does not
	// follow from the one before it, or 0.
	BrokenAt   int64 `json:"broken_at"`
	Consistent bool  `json:"consistent"`
}

// Reconcile replays the history of a template. An initial_stock record resets
// the running value; every other record adds its change amount.
func (l *Ledger) Reconcile(ctx context.Context, templateID uuid.UUID) (Reconciliation, error) {
	t, err := l.store.GetTemplate(ctx, templateID)
	if err != nil {
		if isNoRows(err) {
			return Reconciliation{}, ErrTemplateNotFound
		}
		return Reconciliation{}, fmt.Errorf("get template: %w", err)
	}

	records, err := l.store.ListStockChangeRecordsByTemplate(ctx, templateID)
	if err != nil {
		return Reconciliation{}, fmt.Errorf("list stock change records: %w", err)
	}

	res := Reconciliation{TemplateID: t.ID, ActualStock: t.ActualStock, Records: len(records)}
	running := Untracked
	for _, rec := range records {
		if rec.ChangeType == database.StockChangeTypeInitialStock {
			running = rec.NewStock
			continue
		}
		if res.BrokenAt == 0 && rec.PreviousStock != running {
			res.BrokenAt = rec.Seq
		}
		running += rec.ChangeAmount
	}
	res.Replayed = running
	res.Consistent = res.BrokenAt == 0 && running == t.ActualStock
	return res, nil
}

// addStock adds delta to a counter, refusing results that do not fit the
// int32 column.
func addStock(stock, delta int32) (int32, error) {
	sum := int64(stock) + int64(delta)
	if sum > math.MaxInt32 || sum < math.MinInt32 {
		return 0, ErrStockOverflow
	}
	return int32(sum), nil
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
