package shopify

import (
	"fmt"
	"time"
)

// VersionForTime returns the stable Admin API version released in the
// calendar quarter containing t, e.g. 2025-04 for May 2025.
func VersionForTime(t time.Time) string {
	quarter := ((int(t.Month())-1)/3)*3 + 1
	return fmt.Sprintf("%04d-%02d", t.Year(), quarter)
}

// ResolveAPIVersion returns the configured version, or the version for now
// when none is configured. Call it once at startup and pin the result.
func ResolveAPIVersion(configured string, now time.Time) string {
	if configured != "" {
		return configured
	}
	return VersionForTime(now)
}
