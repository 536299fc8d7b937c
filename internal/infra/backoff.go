package infra

import (
	"time"
)

// BackoffType names a retry delay policy.
type BackoffType string

const (
	BackoffExponential BackoffType = "exponential"
	BackoffFixed       BackoffType = "fixed"
)

// maxBackoffShift keeps base * 2^n from overflowing time.Duration.
const maxBackoffShift = 30

// CalculateBackoff returns the delay before retry number retry (1 = first retry).
// Exponential: base * 2^(retry-1). Fixed: base. Non-positive retry returns base.
func CalculateBackoff(kind BackoffType, base time.Duration, retry int) time.Duration {
	if base <= 0 {
		return 0
	}
	if kind == BackoffFixed || retry <= 1 {
		return base
	}

	shift := retry - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return base * time.Duration(1<<shift)
}
