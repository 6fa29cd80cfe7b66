package utils

import "fmt"

const (
	kib = 1024.0
	mib = 1024.0 * kib
)

// FormatSpeed renders a transfer rate for console display. A zero rate
// renders as an empty string so idle jobs show nothing.
func FormatSpeed(bytesPerSec int64) string {
	if bytesPerSec <= 0 {
		return ""
	}
	speed := float64(bytesPerSec)
	if speed >= mib {
		return fmt.Sprintf("%.1f MB/s", speed/mib)
	}
	return fmt.Sprintf("%.0f KB/s", speed/kib)
}

// HumanBytes converts bytes to human-readable format
func HumanBytes(n int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	i := 0
	val := float64(n)

	for val >= kib && i < len(units)-1 {
		val /= kib
		i++
	}

	return fmt.Sprintf("%.2f%s", val, units[i])
}
