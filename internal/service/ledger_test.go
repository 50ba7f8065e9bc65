package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/tabemono-pos/api/internal/database"
)

func TestReserve_DecrementsAndRecords(t *testing.T) {
	db := newMemDB()
	s := db.committed()
	tmpl := s.addTemplate(database.SellableKindDish, "Katsu", "120", 10, 10)
	orderID := uuid.New()

	res, err := NewLedger(s).Reserve(context.Background(), tmpl.ID, 3, orderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Tracked {
		t.Error("expected tracked reservation")
	}
	if res.Template.ActualStock != 7 || res.Template.DisplayStock != 7 {
		t.Errorf("expected 7/7, got %d/%d", res.Template.ActualStock, res.Template.DisplayStock)
	}
	if res.DisplayTaken != 3 {
		t.Errorf("expected display taken 3, got %d", res.DisplayTaken)
	}

	recs := s.recordsFor(tmpl.ID)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	r := recs[0]
	if r.ChangeType != database.StockChangeTypeOrder || r.ChangeAmount != -3 || r.PreviousStock != 10 || r.NewStock != 7 {
		t.Errorf("unexpected record: %+v", r)
	}
	if !r.OrderID.Valid || uuid.UUID(r.OrderID.Bytes) != orderID {
		t.Errorf("expected order id on record")
	}
}

func TestReserve_DisplayBelowActualUntouched(t *testing.T) {
	db := newMemDB()
	s := db.committed()
	tmpl := s.addTemplate(database.SellableKindDish, "Katsu", "120", 10, 4)

	res, err := NewLedger(s).Reserve(context.Background(), tmpl.ID, 2, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Template.ActualStock != 8 || res.Template.DisplayStock != 4 {
		t.Errorf("expected 8/4, got %d/%d", res.Template.ActualStock, res.Template.DisplayStock)
	}
	if res.DisplayTaken != 0 {
		t.Errorf("expected display taken 0, got %d", res.DisplayTaken)
	}
}

func TestReserve_OutOfStock(t *testing.T) {
	db := newMemDB()
	s := db.committed()
	tmpl := s.addTemplate(database.SellableKindDish, "Katsu", "120", 2, 2)

	_, err := NewLedger(s).Reserve(context.Background(), tmpl.ID, 3, uuid.New())
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	if got := s.template(tmpl.ID).ActualStock; got != 2 {
		t.Errorf("expected stock 2, got %d", got)
	}
	if len(s.recordsFor(tmpl.ID)) != 0 {
		t.Error("expected no record")
	}
}

func TestReserve_InvalidQuantity(t *testing.T) {
	db := newMemDB()
	s := db.committed()
	tmpl := s.addTemplate(database.SellableKindDish, "Katsu", "120", 2, 2)

	_, err := NewLedger(s).Reserve(context.Background(), tmpl.ID, 0, uuid.New())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestReserve_TemplateNotFound(t *testing.T) {
	db := newMemDB()
	_, err := NewLedger(db.committed()).Reserve(context.Background(), uuid.New(), 1, uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReserve_UntrackedWritesNothing(t *testing.T) {
	db := newMemDB()
	s := db.committed()
	tmpl := s.addTemplate(database.SellableKindDish, "Rice", "20", Untracked, Untracked)
	ledger := NewLedger(s)

	for i := 0; i < 50; i++ {
		res, err := ledger.Reserve(context.Background(), tmpl.ID, 5, uuid.New())
		if err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
		if res.Tracked {
			t.Fatal("expected untracked reservation")
		}
	}
	if got := s.template(tmpl.ID); got.ActualStock != Untracked || got.DisplayStock != Untracked {
		t.Errorf("expected counters untouched, got %d/%d", got.ActualStock, got.DisplayStock)
	}
	if n := len(s.recordsFor(tmpl.ID)); n != 0 {
		t.Errorf("expected no records, got %d", n)
	}
}

func TestReserve_ConcurrentNeverOversells(t *testing.T) {
	db := newMemDB()
	tmpl := db.committed().addTemplate(database.SellableKindDish, "Katsu", "120", 10, 10)
	stock := NewStockService(db, db.newStore, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int32
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := stock.run.inTx(context.Background(), func(store Store) error {
				_, err := NewLedger(store).Reserve(context.Background(), tmpl.ID, 1, uuid.New())
				return err
			})
			if err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			} else if !errors.Is(err, ErrOutOfStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if granted != 10 {
		t.Errorf("expected 10 successful reservations, got %d", granted)
	}
	if got := db.committed().template(tmpl.ID).ActualStock; got != 0 {
		t.Errorf("expected stock 0, got %d", got)
	}
}

func TestRelease_RestoresDisplayTaken(t *testing.T) {
	db := newMemDB()
	s := db.committed()
	tmpl := s.addTemplate(database.SellableKindDish, "Katsu", "120", 5, 5)
	ledger := NewLedger(s)
	ctx := context.Background()

	res, err := ledger.Reserve(ctx, tmpl.ID, 2, uuid.New())
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	got, err := ledger.Release(ctx, ReleaseParams{
		TemplateID:   tmpl.ID,
		Quantity:     2,
		DisplayTaken: res.DisplayTaken,
		Reason:       "test",
	})
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if got.ActualStock != 5 || got.DisplayStock != 5 {
		t.Errorf("expected 5/5, got %d/%d", got.ActualStock, got.DisplayStock)
	}

	recs := s.recordsFor(tmpl.ID)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[1].ChangeType != database.StockChangeTypeSystemAdjustment || recs[1].ChangeAmount != 2 {
		t.Errorf("unexpected release record: %+v", recs[1])
	}
}

func TestManualAdjust(t *testing.T) {
	tests := []struct {
		name        string
		actual      int32
		display     int32
		delta       int32
		wantActual  int32
		wantDisplay int32
		wantType    database.StockChangeType
	}{
		{"add", 5, 5, 3, 8, 8, database.StockChangeTypeManualAdd},
		{"add keeps display below actual", 5, 2, 3, 8, 5, database.StockChangeTypeManualAdd},
		{"subtract", 5, 5, -2, 3, 3, database.StockChangeTypeManualSubtract},
		{"subtract clamps display at zero", 5, 1, -4, 1, 0, database.StockChangeTypeManualSubtract},
		{"untracked display stays untracked", 5, Untracked, 2, 7, Untracked, database.StockChangeTypeManualAdd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newMemDB()
			s := db.committed()
			tmpl := s.addTemplate(database.SellableKindDish, "Katsu", "120", tt.actual, tt.display)
			admin := uuid.New()

			got, err := NewLedger(s).ManualAdjust(context.Background(), tmpl.ID, tt.delta, "", admin)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.ActualStock != tt.wantActual || got.DisplayStock != tt.wantDisplay {
				t.Errorf("expected %d/%d, got %d/%d", tt.wantActual, tt.wantDisplay, got.ActualStock, got.DisplayStock)
			}
			recs := s.recordsFor(tmpl.ID)
			if len(recs) != 1 || recs[0].ChangeType != tt.wantType || recs[0].ChangeAmount != tt.delta {
				t.Fatalf("unexpected records: %+v", recs)
			}
			if !recs[0].AdminID.Valid || uuid.UUID(recs[0].AdminID.Bytes) != admin {
				t.Error("expected admin id on record")
			}
		})
	}
}

func TestManualAdjust_BelowZeroFails(t *testing.T) {
	db := newMemDB()
	s := db.committed()
	tmpl := s.addTemplate(database.SellableKindDish, "Katsu", "120", 5, 5)
	stock := NewStockService(db, db.newStore, nil)

	_, err := stock.ManualAdjust(context.Background(), tmpl.ID, -10, "spoiled", uuid.New())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if got := db.committed().template(tmpl.ID).ActualStock; got != 5 {
		t.Errorf("expected stock 5, got %d", got)
	}
	if n := len(db.committed().recordsFor(tmpl.ID)); n != 0 {
		t.Errorf("expected no records, got %d", n)
	}
}

func TestLedger_RejectsCounterOverflow(t *testing.T) {
	db := newMemDB()
	s := db.committed()
	tmpl := s.addTemplate(database.SellableKindDish, "Katsu", "120", 2_000_000_000, 2_000_000_000)
	ledger := NewLedger(s)
	ctx := context.Background()

	if _, err := ledger.ManualAdjust(ctx, tmpl.ID, 2_000_000_000, "", uuid.New()); !errors.Is(err, ErrStockOverflow) {
		t.Errorf("expected ErrStockOverflow on adjust, got %v", err)
	}
	_, err := ledger.Release(ctx, ReleaseParams{TemplateID: tmpl.ID, Quantity: math.MaxInt32, Reason: "order canceled"})
	if !errors.Is(err, ErrStockOverflow) || !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrStockOverflow on release, got %v", err)
	}
	if got := s.template(tmpl.ID).ActualStock; got != 2_000_000_000 {
		t.Errorf("expected stock unchanged, got %d", got)
	}
	if n := len(s.recordsFor(tmpl.ID)); n != 0 {
		t.Errorf("expected no records, got %d", n)
	}
}

func TestManualAdjust_RejectsZeroAndUntracked(t *testing.T) {
	db := newMemDB()
	s := db.committed()
	tracked := s.addTemplate(database.SellableKindDish, "Katsu", "120", 5, 5)
	untracked := s.addTemplate(database.SellableKindDish, "Rice", "20", Untracked, Untracked)
	ledger := NewLedger(s)

	if _, err := ledger.ManualAdjust(context.Background(), tracked.ID, 0, "", uuid.New()); !errors.Is(err, ErrZeroAdjustment) {
		t.Errorf("expected ErrZeroAdjustment, got %v", err)
	}
	if _, err := ledger.ManualAdjust(context.Background(), untracked.ID, 1, "", uuid.New()); !errors.Is(err, ErrStockNotTracked) {
		t.Errorf("expected ErrStockNotTracked, got %v", err)
	}
}

func TestInitialize(t *testing.T) {
	db := newMemDB()
	s := db.committed()
	tmpl := s.addTemplate(database.SellableKindDish, "Katsu", "120", Untracked, Untracked)
	ledger := NewLedger(s)
	ctx := context.Background()

	got, err := ledger.Initialize(ctx, tmpl.ID, 20, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ActualStock != 20 || got.DisplayStock != 20 {
		t.Errorf("expected 20/20, got %d/%d", got.ActualStock, got.DisplayStock)
	}
	recs := s.recordsFor(tmpl.ID)
	if len(recs) != 1 || recs[0].PreviousStock != 0 || recs[0].ChangeAmount != 20 || recs[0].ChangeType != database.StockChangeTypeInitialStock {
		t.Fatalf("unexpected records: %+v", recs)
	}

	if _, err := ledger.Initialize(ctx, tmpl.ID, -2, uuid.New()); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestSetDisplayStock(t *testing.T) {
	db := newMemDB()
	s := db.committed()
	tmpl := s.addTemplate(database.SellableKindDish, "Katsu", "120", 5, 5)
	ledger := NewLedger(s)
	ctx := context.Background()

	got, err := ledger.SetDisplayStock(ctx, tmpl.ID, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ActualStock != 5 || got.DisplayStock != 3 {
		t.Errorf("expected 5/3, got %d/%d", got.ActualStock, got.DisplayStock)
	}
	if _, err := ledger.SetDisplayStock(ctx, tmpl.ID, 6); !errors.Is(err, ErrDisplayAboveActual) {
		t.Errorf("expected ErrDisplayAboveActual, got %v", err)
	}
	if n := len(s.recordsFor(tmpl.ID)); n != 0 {
		t.Errorf("expected display changes to be unaudited, got %d records", n)
	}
}

func TestReconcile_HistoryMatchesCounter(t *testing.T) {
	db := newMemDB()
	s := db.committed()
	tmpl := s.addTemplate(database.SellableKindDish, "Katsu", "120", Untracked, Untracked)
	ledger := NewLedger(s)
	ctx := context.Background()

	if _, err := ledger.Initialize(ctx, tmpl.ID, 10, uuid.New()); err != nil {
		t.Fatal(err)
	}
	res, err := ledger.Reserve(ctx, tmpl.ID, 4, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ledger.ManualAdjust(ctx, tmpl.ID, 3, "delivery", uuid.New()); err != nil {
		t.Fatal(err)
	}
	if _, err := ledger.Release(ctx, ReleaseParams{TemplateID: tmpl.ID, Quantity: 4, DisplayTaken: res.DisplayTaken}); err != nil {
		t.Fatal(err)
	}

	rec, err := ledger.Reconcile(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.Consistent || rec.Replayed != 13 || rec.ActualStock != 13 || rec.Records != 4 {
		t.Errorf("unexpected reconciliation: %+v", rec)
	}
}

func TestReconcile_DetectsDrift(t *testing.T) {
	db := newMemDB()
	s := db.committed()
	tmpl := s.addTemplate(database.SellableKindDish, "Katsu", "120", Untracked, Untracked)
	ledger := NewLedger(s)
	ctx := context.Background()

	if _, err := ledger.Initialize(ctx, tmpl.ID, 10, uuid.New()); err != nil {
		t.Fatal(err)
	}
	// counter changed behind the ledger's back
	drifted := s.template(tmpl.ID)
	drifted.ActualStock = 7
	s.st.templates[tmpl.ID] = drifted

	rec, err := ledger.Reconcile(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Consistent {
		t.Errorf("expected inconsistency, got %+v", rec)
	}
}
