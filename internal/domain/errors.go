package domain

import "errors"

// Sentinel errors of the risk engine. Callers match them with errors.Is;
// engines wrap them with context via fmt.Errorf("...: %w", err).
var (
	// ErrInvalidConfidence marks a confidence level outside (0, 1).
	ErrInvalidConfidence = errors.New("confidence level must be in (0, 1)")

	// ErrEmptySeries marks a zero-length return input where a statistic
	// is required.
	ErrEmptySeries = errors.New("empty return series")

	// ErrUnknownMethod marks an unsupported VaR method name.
	ErrUnknownMethod = errors.New("unknown VaR method")

	// ErrDegenerateVariance marks a division by zero variance or
	// volatility where no fallback is defined.
	ErrDegenerateVariance = errors.New("degenerate variance")

	// ErrMissingCounterparty marks a reference to a counterparty absent
	// from the directory.
	ErrMissingCounterparty = errors.New("counterparty not found")
)
