package domain

import "time"

// Timestamp formats t the way every stored timestamp is written.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
