package events

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestNew_FillsEnvelope(t *testing.T) {
	storeID := uuid.New()
	e := New(OrderCreated, storeID, map[string]int{"n": 1})

	if e.ID == uuid.Nil {
		t.Error("expected event ID to be set")
	}
	if e.Type != OrderCreated {
		t.Errorf("Type = %q, want %q", e.Type, OrderCreated)
	}
	if e.StoreID != storeID {
		t.Errorf("StoreID = %v, want %v", e.StoreID, storeID)
	}
	if e.OccurredAt.IsZero() {
		t.Error("expected OccurredAt to be set")
	}
}

func TestFanout_DeliversToAllAndSkipsNil(t *testing.T) {
	var got []string
	a := NotifierFunc(func(ctx context.Context, e Event) { got = append(got, "a:"+string(e.Type)) })
	b := NotifierFunc(func(ctx context.Context, e Event) { got = append(got, "b:"+string(e.Type)) })

	Fanout{a, nil, b}.Notify(context.Background(), New(StockChanged, uuid.Nil, nil))

	if len(got) != 2 || got[0] != "a:stock.changed" || got[1] != "b:stock.changed" {
		t.Errorf("got %v", got)
	}
}

func TestDiscard(t *testing.T) {
	Discard.Notify(context.Background(), New(OrderDeleted, uuid.New(), nil))
}
