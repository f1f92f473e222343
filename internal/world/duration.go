package world

import (
	"fmt"
	"time"
)

// FormatDuration renders an import duration for humans: "850ms", "12s 40ms",
// "3m 7s", "1h 2m 3s".
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	millis := int64(d%time.Second) / int64(time.Millisecond)

	switch {
	case secs == 0:
		return fmt.Sprintf("%dms", millis)
	case secs < 60:
		return fmt.Sprintf("%ds %dms", secs, millis)
	case secs < 3600:
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	default:
		return fmt.Sprintf("%dh %dm %ds", secs/3600, (secs%3600)/60, secs%60)
	}
}
