package progress

import (
	"fmt"
	"time"
)

// FormatSize renders a byte count with a binary unit, e.g. "1.50 MB".
func FormatSize(size int64, precision int) string {
	value := float64(size)
	unit := "B"

	for _, larger := range []string{"KB", "MB", "GB", "TB"} {
		if value <= 1024.0 {
			break
		}
		value /= 1024.0
		unit = larger
	}

	return fmt.Sprintf("%.*f %s", precision, value, unit)
}

// FormatDuration renders a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := int64(d.Seconds())
	minutes := seconds / 60
	seconds %= 60
	hours := minutes / 60
	minutes %= 60

	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
