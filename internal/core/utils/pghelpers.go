package utils

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// FromString converts a pgtype.Text to a plain string.
// A NULL value is converted to an empty string ("").
func FromString(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

// FromTimestamptz converts a nullable timestamp to a UTC *time.Time.
// A NULL value is converted to nil.
func FromTimestamptz(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}
