package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports a unique constraint failure from any supported
// driver. A non-empty constraint must match the Postgres constraint name or
// appear in the driver message (sqlite reports "table.column").
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	matches := func(names ...string) bool {
		if constraint == "" {
			return true
		}
		for _, n := range names {
			if n == constraint || strings.Contains(n, constraint) {
				return true
			}
		}
		return false
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) && pgxErr.Code == pgUniqueViolation {
		return matches(pgxErr.ConstraintName, pgxErr.Message)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
		return matches(pqErr.Constraint, pqErr.Message)
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		unique := liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
		return unique && matches(liteErr.Error())
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return matches(err.Error())
	}
	return false
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
