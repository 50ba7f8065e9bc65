package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tabemono-pos/api/internal/database"
	"github.com/tabemono-pos/api/internal/events"
)

const maxStockRecordLimit = 100

// StockService runs ledger operations that are their own unit of work: the
// admin stock endpoints and the stock history reads.
type StockService struct {
	run    runner
	notify events.Notifier
}

// NewStockService creates a new StockService.
func NewStockService(db DB, newStore NewStore, notify events.Notifier) *StockService {
	if notify == nil {
		notify = events.Discard
	}
	return &StockService{run: runner{db: db, newStore: newStore}, notify: notify}
}

func (s *StockService) mutate(ctx context.Context, fn func(l *Ledger) (database.SellableTemplate, error)) (database.SellableTemplate, error) {
	var out database.SellableTemplate
	err := s.run.inTx(ctx, func(store Store) error {
		t, err := fn(NewLedger(store))
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return database.SellableTemplate{}, err
	}
	s.notify.Notify(ctx, events.New(events.StockChanged, uuid.Nil, stockPayload(out)))
	return out, nil
}

// ManualAdjust applies an admin stock adjustment in its own transaction.
func (s *StockService) ManualAdjust(ctx context.Context, templateID uuid.UUID, delta int32, reason string, adminID uuid.UUID) (database.SellableTemplate, error) {
	return s.mutate(ctx, func(l *Ledger) (database.SellableTemplate, error) {
		return l.ManualAdjust(ctx, templateID, delta, reason, adminID)
	})
}

// Initialize bootstraps stock tracking for a template in its own transaction.
func (s *StockService) Initialize(ctx context.Context, templateID uuid.UUID, initialStock int32, adminID uuid.UUID) (database.SellableTemplate, error) {
	return s.mutate(ctx, func(l *Ledger) (database.SellableTemplate, error) {
		return l.Initialize(ctx, templateID, initialStock, adminID)
	})
}

// SetDisplayStock changes the customer-facing counter in its own transaction.
func (s *StockService) SetDisplayStock(ctx context.Context, templateID uuid.UUID, value int32) (database.SellableTemplate, error) {
	return s.mutate(ctx, func(l *Ledger) (database.SellableTemplate, error) {
		return l.SetDisplayStock(ctx, templateID, value)
	})
}

// History returns every stock change record of a template in record order.
func (s *StockService) History(ctx context.Context, templateID uuid.UUID) ([]database.StockChangeRecord, error) {
	store := s.run.reader()
	if _, err := store.GetTemplate(ctx, templateID); err != nil {
		if isNoRows(err) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	records, err := store.ListStockChangeRecordsByTemplate(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("list stock change records: %w", err)
	}
	return records, nil
}

// RecordFilter narrows ListRecords. Zero values mean "no filter".
type RecordFilter struct {
	From       time.Time
	To         time.Time
	Name       string
	ChangeType string
	Limit      int32
}

// ListRecords returns the newest stock change records matching f, at most
// 100.
func (s *StockService) ListRecords(ctx context.Context, f RecordFilter) ([]database.StockChangeRecord, error) {
	params := database.ListStockChangeRecordsParams{
		Name:  pgText(f.Name),
		Limit: f.Limit,
	}
	if !f.From.IsZero() {
		params.From = pgtype.Timestamptz{Time: f.From, Valid: true}
	}
	if !f.To.IsZero() {
		params.To = pgtype.Timestamptz{Time: f.To, Valid: true}
	}
	if f.ChangeType != "" {
		ct, err := parseStockChangeType(f.ChangeType)
		if err != nil {
			return nil, err
		}
		params.ChangeType = database.NullStockChangeType{StockChangeType: ct, Valid: true}
	}
	if params.Limit <= 0 || params.Limit > maxStockRecordLimit {
		params.Limit = maxStockRecordLimit
	}

	records, err := s.run.reader().ListStockChangeRecords(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list stock change records: %w", err)
	}
	return records, nil
}

// Reconcile checks a template's actualStock against its replayed history.
func (s *StockService) Reconcile(ctx context.Context, templateID uuid.UUID) (Reconciliation, error) {
	return NewLedger(s.run.reader()).Reconcile(ctx, templateID)
}

func parseStockChangeType(s string) (database.StockChangeType, error) {
	switch ct := database.StockChangeType(s); ct {
	case database.StockChangeTypeOrder,
		database.StockChangeTypeManualAdd,
		database.StockChangeTypeManualSubtract,
		database.StockChangeTypeSystemAdjustment,
		database.StockChangeTypeInitialStock:
		return ct, nil
	}
	return "", newError(ErrValidation, fmt.Sprintf("invalid change_type %q", s))
}

type stockEvent struct {
	TemplateID   uuid.UUID `json:"template_id"`
	Name         string    `json:"name"`
	ActualStock  int32     `json:"actual_stock"`
	DisplayStock int32     `json:"display_stock"`
}

func stockPayload(t database.SellableTemplate) stockEvent {
	return stockEvent{
		TemplateID:   t.ID,
		Name:         t.Name,
		ActualStock:  t.ActualStock,
		DisplayStock: t.DisplayStock,
	}
}
