package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Domain sentinels. Handlers translate these into the coded API errors in
// pkg/errors; services never return unstructured failure strings for
// business conditions.
var (
	// ErrClassNotFound indicates the referenced class record does not exist.
	ErrClassNotFound = errors.New("class: not found")
	// ErrInvalidClass signals that a check-in session referenced a nonexistent class.
	ErrInvalidClass = errors.New("checkin: class does not resolve")
	// ErrInvalidToken indicates no token matches the scanned text.
	ErrInvalidToken = errors.New("checkin: token not found")
	// ErrTokenExpired indicates the token's validity window has passed.
	ErrTokenExpired = errors.New("checkin: token expired")
	// ErrTokenInactive indicates the trainer closed the session.
	ErrTokenInactive = errors.New("checkin: token inactive")
	// ErrTokenExhausted indicates the usage limit has been reached.
	ErrTokenExhausted = errors.New("checkin: token exhausted")
	// ErrScanTypeNotAllowed indicates the session does not accept the scan direction.
	ErrScanTypeNotAllowed = errors.New("checkin: scan type not allowed for session")
	// ErrNotEnrolled indicates the member holds no seat in the token's class.
	ErrNotEnrolled = errors.New("checkin: member not enrolled")
	// ErrDuplicateCheckIn indicates the member already checked in on this token.
	ErrDuplicateCheckIn = errors.New("checkin: duplicate check-in")
	// ErrAlreadyEnrolled indicates the member already holds an enrolled seat.
	ErrAlreadyEnrolled = errors.New("enrollment: already enrolled")
	// ErrMemberNotFound indicates the referenced member record does not exist.
	ErrMemberNotFound = errors.New("member: not found")
	// ErrMemberEmailTaken indicates the email is already registered.
	ErrMemberEmailTaken = errors.New("member: email already registered")
	// ErrStorageUnavailable surfaces persistence failures after the retry budget.
	ErrStorageUnavailable = errors.New("storage: unavailable")
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "constraint")
}

// isRetryableWriteError classifies transient write conflicts that a bounded
// retry may resolve: sqlite busy locks, postgres serialization failures and
// deadlocks, mysql deadlocks.
func isRetryableWriteError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil {
		return myErr.Number == 1213 || myErr.Number == 1205
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "database is locked") ||
		strings.Contains(lower, "database table is locked") ||
		strings.Contains(lower, "busy")
}
