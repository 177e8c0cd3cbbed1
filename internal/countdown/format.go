package countdown

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Remaining time is shown in coarser units for distant events and finer
// units as the event approaches, which keeps successive renders from
// churning the message over rounding noise.
func formatRemaining(d time.Duration) string {
	hours := d.Hours()
	days := hours / 24
	weeks := days / 7
	months := days / 30

	switch {
	case months > 2:
		return fmt.Sprintf("%d month(s)", int(math.Round(months)))
	case weeks > 2:
		return fmt.Sprintf("%d week(s)", int(math.Round(weeks)))
	case days > 3:
		return strconv.FormatFloat(math.Round(days*10)/10, 'f', 1, 64) + " day(s)"
	default:
		return strconv.FormatFloat(math.Round(hours*1000)/1000, 'f', -1, 64) + " hour(s)"
	}
}
