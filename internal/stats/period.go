package stats

import "time"

// Bucket sizes accepted by training summaries.
const (
	BucketWeek  = "1 week"
	BucketMonth = "1 month"
)

// ValidBucket reports whether b is a supported summary bucket.
func ValidBucket(b string) bool {
	return b == BucketWeek || b == BucketMonth
}

// PeriodStart truncates t (in UTC) to the start of its bucket. Weeks start on
// Monday to match Postgres date_trunc('week', ...).
func PeriodStart(t time.Time, bucket string) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if bucket == BucketWeek {
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
