package domain

import "time"

// UsageKey identifies one customer's usage of one campaign on one calendar
// day. Day is always midnight UTC of that calendar date.
type UsageKey struct {
	CampaignID int64
	CustomerID int64
	Day        time.Time
}

// UsageRecord counts redemptions for a UsageKey. A missing record is
// equivalent to a zero count; the counter resets implicitly when the day
// rolls over.
type UsageRecord struct {
	Key              UsageKey
	TransactionCount int
}

// UsageDay returns the calendar date of t in loc as midnight UTC.
func UsageDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
