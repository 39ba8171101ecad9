// Package sqlerr maps driver errors onto a small enumerated set of kinds so
// store adapters can translate them into sentinels at the call boundary. The
// sync core never inspects a driver's exception taxonomy directly.
package sqlerr

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"regionsync/pkg/platform/sentinel"
)

// Kind is the failure category of a store error.
type Kind int

const (
	KindNone Kind = iota
	KindForeignKey
	KindUnique
	KindNotFound
	KindSerialization
	KindUnavailable
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindForeignKey:
		return "foreign_key"
	case KindUnique:
		return "unique"
	case KindNotFound:
		return "not_found"
	case KindSerialization:
		return "serialization"
	case KindUnavailable:
		return "unavailable"
	default:
		return "other"
	}
}

// SQLSTATE codes. Both pgx and lib/pq surface the server's code verbatim.
const (
	stateForeignKeyViolation  = "23503"
	stateUniqueViolation      = "23505"
	stateSerializationFailure = "40001"
	stateDeadlockDetected     = "40P01"
	stateClassConnection      = "08"
	stateAdminShutdown        = "57P01"
)

// duplicateMarkers are failure texts emitted by drivers that do not expose a
// SQLSTATE (or wrap it away).
var duplicateMarkers = []string{
	"duplicate key",
	"unique constraint",
	"cannot insert duplicate key",
}

// Classify returns the kind of err. Sentinels already produced by a store are
// recognised as well, so classification is idempotent.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	switch {
	case errors.Is(err, sentinel.ErrDependency):
		return KindForeignKey
	case errors.Is(err, sentinel.ErrDuplicate):
		return KindUnique
	case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return KindNotFound
	case errors.Is(err, sentinel.ErrConflict):
		return KindSerialization
	case errors.Is(err, sentinel.ErrUnavailable), errors.Is(err, driver.ErrBadConn):
		return KindUnavailable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindUnavailable
	}

	if code, ok := sqlState(err); ok {
		switch {
		case code == stateForeignKeyViolation:
			return KindForeignKey
		case code == stateUniqueViolation:
			return KindUnique
		case code == stateSerializationFailure, code == stateDeadlockDetected:
			return KindSerialization
		case strings.HasPrefix(code, stateClassConnection), code == stateAdminShutdown:
			return KindUnavailable
		}
		return KindOther
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range duplicateMarkers {
		if strings.Contains(msg, marker) {
			return KindUnique
		}
	}
	if strings.Contains(msg, "foreign key constraint") {
		return KindForeignKey
	}
	return KindOther
}

// IsUniqueViolation reports whether err is a duplicate-key failure.
func IsUniqueViolation(err error) bool {
	return Classify(err) == KindUnique
}

// Translate wraps err with the sentinel matching its kind. Errors with no
// matching sentinel are returned wrapped with op only.
func Translate(op string, err error) error {
	if err == nil {
		return nil
	}
	switch Classify(err) {
	case KindForeignKey:
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrDependency, err)
	case KindUnique:
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrDuplicate, err)
	case KindNotFound:
		return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
	case KindSerialization:
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrConflict, err)
	case KindUnavailable:
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func sqlState(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), true
	}
	return "", false
}
