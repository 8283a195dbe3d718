package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mind-engage/mindengage-academy/internal/db"
	"github.com/mind-engage/mindengage-academy/internal/errs"
)

// SQLStore is the unguarded row store. It performs no authorization and
// is only reachable through Guarded outside this package's tests.
type SQLStore struct {
	db     *sql.DB
	driver db.Driver
}

func NewSQLStore(h *sql.DB, driver db.Driver) *SQLStore {
	return &SQLStore{db: h, driver: driver}
}

func (s *SQLStore) DB() *sql.DB { return s.db }

type rowScanner interface {
	Scan(dest ...any) error
}

// wrap maps driver errors onto the errs taxonomy.
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, errs.ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, errs.ErrDuplicate)
	default:
		return fmt.Errorf("%s: %w: %w", op, errs.ErrPersistence, err)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
	}
	return false
}

// mustAffect turns a zero-row update/delete into ErrNotFound.
func mustAffect(op string, res sql.Result, err error) error {
	if err != nil {
		return wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, errs.ErrNotFound)
	}
	return nil
}

func unix(t time.Time) int64 { return t.Unix() }

func fromUnix(n int64) time.Time { return time.Unix(n, 0).UTC() }

func now() time.Time { return time.Now().UTC().Truncate(time.Second) }
