package insights

import (
	"time"

	"github.com/dustin/go-humanize"
)

var timeNow = time.Now

// FormatBytes renders n in IEC units ("0 B", "1.5 KiB").
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(n))
}

// FormatLastAccessed renders t relative to now, or "Never" when unset.
func FormatLastAccessed(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "Never"
	}
	return humanize.RelTime(*t, timeNow(), "ago", "from now")
}
