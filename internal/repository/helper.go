package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// querier abstracts over *sql.DB and *sql.Tx so repositories can run inside
// or outside a transaction.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ParseTime parses a date string in "2006-01-02" or RFC3339 format.
func ParseTime(str string) (time.Time, error) {
	returnTime, err := time.Parse("2006-01-02", str)
	if err != nil {
		returnTime, err = time.Parse(time.RFC3339, str)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to parse date: %w", err)
		}
	}
	return returnTime.UTC(), nil
}

// parseSQLiteTimestamp parses SQLite's CURRENT_TIMESTAMP ("2006-01-02 15:04:05") form.
func parseSQLiteTimestamp(str string) (time.Time, error) {
	ts, err := time.Parse("2006-01-02 15:04:05", str)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp: %w", err)
	}
	return ts.UTC(), nil
}

// ParseDecimal converts a stored TEXT amount back to a decimal.
func ParseDecimal(str string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(str)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to parse decimal %q: %w", str, err)
	}
	return d, nil
}

// ParseNullDecimal converts a nullable stored amount; an SQL NULL yields nil.
func ParseNullDecimal(str sql.NullString) (*decimal.Decimal, error) {
	if !str.Valid {
		return nil, nil
	}
	d, err := ParseDecimal(str.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
