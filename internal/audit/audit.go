package audit

import (
	"context"
	"time"
)

// Run status values stored in the ledger.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one row of the statement run ledger.
type Run struct {
	ID         string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	Records    int
	Statements int
	Archives   int
	Recipients int
	EmailSent  bool
	Warnings   int
	Error      string
}

// Ledger records statement runs.
type Ledger interface {
	Start(ctx context.Context, runID string, startedAt time.Time) error
	Finish(ctx context.Context, run Run) error
}
