package statement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Movement is a single capital-share transaction within the statement month.
type Movement struct {
	Date      string
	Type      string
	Amount    decimal.Decimal
	RawAmount string
}

// AccountRecord is one consolidated account-period row, read-only once built.
type AccountRecord struct {
	AccountID       string
	Branch          int
	Administrator   string
	HolderName      string
	Address         string
	Municipality    string
	CapitalBalance  decimal.Decimal
	MonthlyMovement decimal.Decimal
	StatementDate   time.Time
	EmissionLabel   string
	Movements       []Movement
	Email           string
}

// OpeningBalance is the balance before the month's movements.
func (r AccountRecord) OpeningBalance() decimal.Decimal {
	return r.CapitalBalance.Sub(r.MonthlyMovement)
}

// RunningBalances applies each movement in order starting from the opening balance.
func (r AccountRecord) RunningBalances() []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(r.Movements))
	running := r.OpeningBalance()
	for _, mov := range r.Movements {
		running = running.Add(mov.Amount)
		out = append(out, running)
	}
	return out
}

// MovementTotal sums the itemized movements.
func (r AccountRecord) MovementTotal() decimal.Decimal {
	total := decimal.Zero
	for _, mov := range r.Movements {
		total = total.Add(mov.Amount)
	}
	return total
}

// Reconciles reports whether the itemized movements add up to the stated monthly movement.
// Statements print the stated capital balance either way.
func (r AccountRecord) Reconciles() bool {
	return r.MovementTotal().Equal(r.MonthlyMovement)
}

// Period returns the first and last day of the calendar month preceding StatementDate.
func (r AccountRecord) Period() (time.Time, time.Time) {
	return PreviousMonth(r.StatementDate)
}

// PreviousMonth returns the first and last day of the month before date.
func PreviousMonth(date time.Time) (time.Time, time.Time) {
	firstOfMonth := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, date.Location())
	return firstOfMonth.AddDate(0, -1, 0), firstOfMonth.AddDate(0, 0, -1)
}
