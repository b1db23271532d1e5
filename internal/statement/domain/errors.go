package statement

import "errors"

var (
	// ErrEmptyAccountID is returned when a record has no account key.
	ErrEmptyAccountID = errors.New("statement: empty account id")
	// ErrEmptyAdministrator is returned when a record cannot be filed under an administrator.
	ErrEmptyAdministrator = errors.New("statement: empty administrator")
)
