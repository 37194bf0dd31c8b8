package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// Default separator widths
	DefaultWidth = 80
	WideWidth    = 100
)

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintSeparatorNewline prints a separator with a newline before it
func PrintSeparatorNewline(char string, width int) {
	fmt.Println("\n" + strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// PrintBoxSeparator prints a box-drawing separator line (for sub-sections)
func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// BoxDetailPrefix returns the prefix for detail lines under list items
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

// ParseOptionDuration accepts a month count ("3m", "12m") or raw seconds.
// Months are thirty days.
func ParseOptionDuration(value string) (uint32, error) {
	const secondsPerMonth = 30 * 24 * 60 * 60
	value = strings.TrimSpace(value)
	if months, ok := strings.CutSuffix(value, "m"); ok {
		n, err := strconv.ParseUint(months, 10, 32)
		if err != nil || n == 0 {
			return 0, fmt.Errorf("invalid month count %q", value)
		}
		if n > math.MaxUint32/secondsPerMonth {
			return 0, fmt.Errorf("duration %q too long", value)
		}
		return uint32(n) * secondsPerMonth, nil
	}
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return uint32(n), nil
}

// FormatUnix renders a unix timestamp for reports.
func FormatUnix(ts int64) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04:05")
}

// ShortId abbreviates long identifiers for tables.
func ShortId(id string) string {
	if id == "" {
		return "none"
	}
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}
