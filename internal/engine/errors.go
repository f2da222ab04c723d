package engine

import "errors"

// Sentinel errors for accounting-rule violations. Callers wrap them with the
// violated field and limit, so errors.Is still matches while the message
// stays actionable for inline display.
var (
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrNoPosition          = errors.New("no_position")
	ErrOversizedSell       = errors.New("oversized_sell")
	ErrInvalidAmount       = errors.New("invalid_amount")
)
