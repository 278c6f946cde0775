package internal

import (
	"fmt"
	"time"
)

// Discord caps embed field values at 1024 characters.
const embedFieldLimit = 1024

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// UpstreamError is a failed call to an external Discord endpoint.
// Detail carries the upstream error description when one was returned,
// otherwise the transport error.
type UpstreamError struct {
	Op     string
	Detail string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}
