package sequence

import (
	"fmt"
	"time"
)

// FormatNumber renders a document number such as INV-20250103-0007. The date
// is informational; uniqueness comes from seq alone.
func FormatNumber(prefix string, date time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, date.UTC().Format("20060102"), seq)
}

// Number formats seq using the prefix of t.
func Number(t DocumentType, date time.Time, seq int64) string {
	return FormatNumber(t.Prefix(), date, seq)
}
