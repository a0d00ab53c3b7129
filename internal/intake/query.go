package intake

import (
	"fmt"
	"strings"
	"time"
)

// BaseQuery restricts discovery to messages with a PDF attachment
const BaseQuery = "has:attachment filename:pdf"

// DefaultLookback is the discovery window when the caller gives no lower bound
const DefaultLookback = 24 * time.Hour

// BuildQuery returns the provider search query. Bounds are rendered as Unix
// seconds so the window does not depend on the provider's timezone.
func BuildQuery(from, to *time.Time, now time.Time, lookback time.Duration) string {
	if lookback <= 0 {
		lookback = DefaultLookback
	}

	lower := now.Add(-lookback)
	if from != nil && !from.IsZero() {
		lower = *from
	}

	parts := []string{BaseQuery, fmt.Sprintf("after:%d", lower.Unix())}
	if to != nil && !to.IsZero() {
		parts = append(parts, fmt.Sprintf("before:%d", to.Unix()))
	}
	return strings.Join(parts, " ")
}
