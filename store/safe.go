package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// undefinedTable is the PostgreSQL SQLSTATE for a missing relation.
const undefinedTable = "42P01"

// QueryError is returned by reads that failed for any reason other than a
// missing table.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Query, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsMissingRelation reports whether err means the table being read does not
// exist yet. The schema may be mid-migration or partially deployed.
func IsMissingRelation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == undefinedTable
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "no such table") {
		return true
	}
	return strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")
}

// safeList runs a list-returning read. A missing table yields an empty list
// and no error; any other failure yields an empty list and a *QueryError.
func safeList[T any](logger zerolog.Logger, name string, fn func() ([]T, error)) ([]T, error) {
	items, err := fn()
	if err == nil {
		if items == nil {
			items = []T{}
		}
		return items, nil
	}
	if IsMissingRelation(err) {
		logger.Debug().Str("query", name).Err(err).Msg("table missing; returning empty result")
		return []T{}, nil
	}
	logger.Warn().Str("query", name).Err(err).Msg("query failed")
	return []T{}, &QueryError{Query: name, Err: err}
}

// safeOne runs a single-row read. A missing table or missing row yields nil
// and no error; any other failure yields nil and a *QueryError.
func safeOne[T any](logger zerolog.Logger, name string, fn func() (*T, error)) (*T, error) {
	item, err := fn()
	if err == nil {
		return item, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if IsMissingRelation(err) {
		logger.Debug().Str("query", name).Err(err).Msg("table missing; returning empty result")
		return nil, nil
	}
	logger.Warn().Str("query", name).Err(err).Msg("query failed")
	return nil, &QueryError{Query: name, Err: err}
}
