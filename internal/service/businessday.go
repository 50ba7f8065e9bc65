package service

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// BusinessDay is one local calendar day at a fixed UTC offset.
type BusinessDay struct {
	// Date is local midnight, in the fixed zone.
	Date time.Time
	// Start and End bound the day in UTC, End exclusive.
	Start time.Time
	End   time.Time
}

// BusinessDayAt returns the business day containing now for a store whose
// day starts at local midnight, offsetHours east of UTC.
func BusinessDayAt(now time.Time, offsetHours int) BusinessDay {
	zone := time.FixedZone("business", offsetHours*3600)
	local := now.In(zone)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, zone)
	return BusinessDay{
		Date:  midnight,
		Start: midnight.UTC(),
		End:   midnight.AddDate(0, 0, 1).UTC(),
	}
}

// Weekday is the local weekday name of the day.
func (d BusinessDay) Weekday() string {
	return d.Date.Weekday().String()
}

func (d BusinessDay) pgDate() pgtype.Date {
	return pgtype.Date{
		Time:  time.Date(d.Date.Year(), d.Date.Month(), d.Date.Day(), 0, 0, 0, 0, time.UTC),
		Valid: true,
	}
}
