package service

import (
	"testing"
	"time"
)

func TestBusinessDayAt(t *testing.T) {
	tests := []struct {
		name        string
		now         time.Time
		offset      int
		wantDate    string
		wantWeekday string
		wantStart   time.Time
	}{
		{
			name:        "late evening UTC is next local day",
			now:         time.Date(2026, 3, 1, 17, 30, 0, 0, time.UTC),
			offset:      8,
			wantDate:    "2026-03-02",
			wantWeekday: "Monday",
			wantStart:   time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC),
		},
		{
			name:        "just before local midnight",
			now:         time.Date(2026, 3, 1, 15, 59, 59, 0, time.UTC),
			offset:      8,
			wantDate:    "2026-03-01",
			wantWeekday: "Sunday",
			wantStart:   time.Date(2026, 2, 28, 16, 0, 0, 0, time.UTC),
		},
		{
			name:        "UTC store",
			now:         time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			offset:      0,
			wantDate:    "2026-03-01",
			wantWeekday: "Sunday",
			wantStart:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day := BusinessDayAt(tt.now, tt.offset)
			if got := day.Date.Format("2006-01-02"); got != tt.wantDate {
				t.Errorf("date: expected %s, got %s", tt.wantDate, got)
			}
			if got := day.Weekday(); got != tt.wantWeekday {
				t.Errorf("weekday: expected %s, got %s", tt.wantWeekday, got)
			}
			if !day.Start.Equal(tt.wantStart) {
				t.Errorf("start: expected %s, got %s", tt.wantStart, day.Start)
			}
			if !day.End.Equal(tt.wantStart.Add(24 * time.Hour)) {
				t.Errorf("end: expected %s, got %s", tt.wantStart.Add(24*time.Hour), day.End)
			}
			if got := day.pgDate().Time.Format("2006-01-02"); got != tt.wantDate {
				t.Errorf("pg date: expected %s, got %s", tt.wantDate, got)
			}
		})
	}
}
