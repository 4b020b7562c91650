package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Pland4r/project-ai/internal/table"
)

const (
	// DefaultRowLimit is used when a caller asks for no limit
	DefaultRowLimit = 10_000
	// MaxRowLimit caps how many rows are read from a table
	MaxRowLimit = 100_000
)

// ErrUnknownTable is returned when a table is not in the public schema
var ErrUnknownTable = errors.New("unknown table")

// TableSource loads raw tables from a database
type TableSource interface {
	ListTables(ctx context.Context) ([]string, error)
	LoadTable(ctx context.Context, name string, limit int) (*table.RawTable, error)
	Close() error
}

// PostgresSource implements TableSource for PostgreSQL
type PostgresSource struct {
	db *sql.DB
}

// OpenPostgres connects and pings the database
func OpenPostgres(ctx context.Context, dsn string) (*PostgresSource, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresSource{db: db}, nil
}

// NewPostgresSource wraps an existing connection pool
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (p *PostgresSource) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func (p *PostgresSource) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		ORDER BY table_name;
	`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		tables = append(tables, tableName)
	}
	return tables, rows.Err()
}

// LoadTable reads up to limit rows of a public table. The name must be one
// of the tables returned by ListTables.
func (p *PostgresSource) LoadTable(ctx context.Context, name string, limit int) (*table.RawTable, error) {
	tables, err := p.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	if !contains(tables, name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}

	if limit <= 0 {
		limit = DefaultRowLimit
	}
	if limit > MaxRowLimit {
		limit = MaxRowLimit
	}

	query := "SELECT * FROM " + pq.QuoteIdentifier(name) + " LIMIT $1"
	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}

	out := table.New(columns...)
	out.Source = "postgres:" + name

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", name, err)
		}

		// text columns arrive as byte slices
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out.Append(values...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return out, nil
}

func contains(list []string, name string) bool {
	for _, s := range list {
		if s == name {
			return true
		}
	}
	return false
}
