package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"cota-capital/internal/dataset"
)

// SQLClient runs statements against a Postgres-compatible warehouse through database/sql.
// The driver blocks until the statement completes, so maxAttempts is not used.
type SQLClient struct {
	db     *sql.DB
	logger zerolog.Logger
}

// OpenSQLClient opens a pgx-backed client for dsn.
func OpenSQLClient(ctx context.Context, dsn string, logger zerolog.Logger) (*SQLClient, error) {
	if dsn == "" {
		return nil, errors.New("warehouse: empty dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLClient(db, logger)
}

// NewSQLClient wraps an open database handle.
func NewSQLClient(db *sql.DB, logger zerolog.Logger) (*SQLClient, error) {
	if db == nil {
		return nil, errors.New("warehouse: nil db")
	}
	return &SQLClient{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (c *SQLClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Execute runs statement and stringifies every returned cell.
func (c *SQLClient) Execute(ctx context.Context, statement string, _ int) (*dataset.Table, error) {
	if strings.TrimSpace(statement) == "" {
		return nil, errors.New("warehouse: empty statement")
	}
	if !IsReadQuery(statement) {
		if _, err := c.db.ExecContext(ctx, statement); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStatementFailed, err)
		}
		return dataset.New(nil, nil), nil
	}

	rows, err := c.db.QueryContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStatementFailed, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	table := dataset.New(columns, nil)
	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		row := make([]string, len(columns))
		for i, v := range values {
			row[i] = stringify(v)
		}
		table.Append(row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	c.logger.Info().Int("rows", table.Len()).Strs("columns", columns).Msg("statement executed")
	return table, nil
}

func stringify(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(value)
	case string:
		return value
	case time.Time:
		if value.Hour() == 0 && value.Minute() == 0 && value.Second() == 0 {
			return value.Format("02/01/2006")
		}
		return value.Format(time.RFC3339)
	default:
		return fmt.Sprint(value)
	}
}
