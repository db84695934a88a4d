package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Dialect selects SQL placeholder style and insert semantics.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// Store is the datastore handle. It is the only type that talks to the
// database; every read goes through the safe query helpers.
type Store struct {
	db      *sql.DB
	dialect Dialect
	builder sq.StatementBuilderType
	logger  zerolog.Logger
}

// NewStore creates and returns a Store.
func NewStore(db *sql.DB, dialect Dialect, logger zerolog.Logger) *Store {
	logger = logger.With().Str("component", "store").Logger()
	builder := sq.StatementBuilder
	if dialect == DialectPostgres {
		builder = builder.PlaceholderFormat(sq.Dollar)
	}
	return &Store{db: db, dialect: dialect, builder: builder, logger: logger}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Open opens a database and waits for it to answer a ping, backing off
// between attempts. It does not run migrations.
func Open(ctx context.Context, driver, dsn string, logger zerolog.Logger) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if Dialect(driver) == DialectSQLite && strings.Contains(dsn, ":memory:") {
		// Every new connection to :memory: is a fresh, empty database.
		db.SetMaxOpenConns(1)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	ping := func() error { return db.PingContext(ctx) }
	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Dur("wait", wait).Str("driver", driver).Msg("Database not ready; retrying ping")
	}
	if err := backoff.RetryNotify(ping, policy, notify); err != nil {
		_ = db.Close() //nolint:errcheck // Cleanup on error
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}
	return db, nil
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func nullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := unixTime(v.Int64)
	return &t
}

func unixOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func unixOrNow(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().Unix()
	}
	return t.Unix()
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func intOrNil(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// decodeList reads a JSON-array column. Values written by older clients as
// plain text are returned as a single-element list.
func decodeList(v sql.NullString) []string {
	if !v.Valid {
		return nil
	}
	raw := strings.TrimSpace(v.String)
	if raw == "" || raw == "null" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out
	}
	return []string{raw}
}

func encodeList(items []string) interface{} {
	if len(items) == 0 {
		return nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil
	}
	return string(data)
}

// Helper function to safely truncate strings (for log safety).
func truncateString(s string, n int) string {
	rs := []rune(s)
	if len(rs) > n {
		return string(rs[:n]) + "..."
	}
	return s
}
