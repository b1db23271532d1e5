package warehouse

import (
	"context"
	"errors"
	"strings"
	"time"

	"cota-capital/internal/dataset"
)

var (
	// ErrStatementPending is returned when a read statement never leaves the pending state.
	ErrStatementPending = errors.New("warehouse: statement still pending")
	// ErrStatementFailed is returned when the warehouse reports a terminal failure.
	ErrStatementFailed = errors.New("warehouse: statement failed")
	// ErrMalformedResponse is returned when the response cannot be decoded into a table.
	ErrMalformedResponse = errors.New("warehouse: malformed response")
)

// Querier executes a statement and returns its tabular result.
type Querier interface {
	Execute(ctx context.Context, statement string, maxAttempts int) (*dataset.Table, error)
}

// IsReadQuery reports whether a statement returns rows, judged by its first keyword.
func IsReadQuery(statement string) bool {
	fields := strings.Fields(statement)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH":
		return true
	}
	return false
}

// Backoff returns the wait before retry number attempt (1-based).
func Backoff(attempt, maxAttempts int, unit time.Duration) time.Duration {
	if attempt <= 0 || maxAttempts <= 0 {
		return 0
	}
	return time.Duration(attempt*maxAttempts) * unit
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
