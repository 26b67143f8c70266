package budget

import "errors"

// Gating errors. These are returned as values and mapped to dispatch
// outcomes; they never indicate a vendor failure.
var (
	ErrRateLimited      = errors.New("vendor rate limit exceeded")
	ErrCoolingDown      = errors.New("vendor cooling down after failures")
	ErrVendorSpendLimit = errors.New("vendor spend limit exceeded")
	ErrGlobalSpendLimit = errors.New("global spend limit exceeded")
	ErrNegativeCost     = errors.New("cost must not be negative")
)

// Throttled reports whether err is a rate or cooldown limit (retry later).
func Throttled(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrCoolingDown)
}

// SpendLimited reports whether err is an economic limit (vendor or global).
func SpendLimited(err error) bool {
	return errors.Is(err, ErrVendorSpendLimit) || errors.Is(err, ErrGlobalSpendLimit)
}
