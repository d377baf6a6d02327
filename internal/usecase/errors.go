package usecase

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"clinic-queue/pkg/apperror"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound          = apperror.NotFound("user not found")
	ErrUsernameAlreadyExists = apperror.Conflict("username already exists")
	ErrInvalidRole           = apperror.Validation("invalid role")
	ErrInvalidCredentials    = apperror.Unauthorized("invalid username or password")
	ErrInvalidToken          = apperror.Unauthorized("invalid or expired token")
	ErrTokenRevoked          = apperror.Unauthorized("token has been revoked")
	ErrPrimaryAdminProtected = apperror.Forbidden("the primary administrator cannot be deleted or demoted")

	ErrDoctorNotFound      = apperror.NotFound("doctor not found")
	ErrNoLinkedDoctor      = apperror.NotFound("no doctor is linked to this account")
	ErrDoctorUserTaken     = apperror.Conflict("user is already linked to another doctor")
	ErrDoctorRequired      = apperror.Validation("doctor_id is required")
	ErrInvalidDoctorType   = apperror.Validation("invalid doctor type")
	ErrInvalidDoctorStatus = apperror.Validation("invalid doctor status")
	ErrPrefixAlreadyExists = apperror.Conflict("code prefix already in use")
	ErrDoctorHasTickets    = apperror.Conflict("doctor still has tickets in the queue")

	ErrTicketNotFound = apperror.NotFound("ticket not found")
	ErrInvalidName    = apperror.Validation("patient name must be between 2 and 120 characters")
	ErrInvalidMotive  = apperror.Validation("invalid motive")
	ErrDuplicateOpen  = apperror.Conflict("patient already has an open ticket for this doctor")
	ErrCodeExhausted  = apperror.Conflict("could not allocate a free turn code, please retry")

	ErrScreenNotFound       = apperror.NotFound("screen not found")
	ErrNoScreensAvailable   = apperror.Conflict("no screens available")
	ErrScreenNotPending     = apperror.Conflict("screen is not waiting for pairing")
	ErrScreenNotLinked      = apperror.Conflict("screen is not linked")
	ErrInvalidPairingCode   = apperror.Validation("pairing code must be 6 digits")
	ErrPairingCodeMismatch  = apperror.Validation("pairing code does not match")
	ErrInvalidFingerprint   = apperror.Validation("device_fingerprint is required")
	ErrDeviceNotLinked      = apperror.Forbidden("device is not linked to a screen")
	ErrReceptionistNotFound = apperror.NotFound("receptionist not found")
	ErrNotReceptionist      = apperror.Validation("user is not a receptionist")

	ErrAuditLogNotFound = apperror.NotFound("audit log not found")
	ErrInvalidDate      = apperror.Validation("invalid date format, use YYYY-MM-DD")
)

// begin opens a transaction bound to ctx
func begin(ctx context.Context, db *gorm.DB) (*gorm.DB, error) {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, storeError(tx.Error)
	}
	return tx, nil
}

// storeError classifies a database failure. Connectivity problems become transient;
// errors that already carry a kind pass through.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	if isTransientStoreError(err) {
		return apperror.Transient("store unavailable", err)
	}
	return err
}

func isTransientStoreError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08xxx connection exceptions, serialization failure, deadlock, admin shutdown, too many connections
		switch {
		case strings.HasPrefix(pgErr.Code, "08"),
			pgErr.Code == "40001", pgErr.Code == "40P01",
			pgErr.Code == "57P01", pgErr.Code == "53300":
			return true
		}
		return false
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// isDuplicateKeyError checks if the error is a PostgreSQL unique constraint violation
// containing the specified constraint name
func isDuplicateKeyError(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// PostgreSQL error code 23505 = unique_violation
		if pgErr.Code == "23505" && strings.Contains(strings.ToLower(pgErr.ConstraintName), strings.ToLower(constraintName)) {
			return true
		}
	}
	return false
}

// isForeignKeyError checks if the error is a PostgreSQL foreign key violation
// containing the specified constraint name
func isForeignKeyError(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// PostgreSQL error code 23503 = foreign_key_violation
		if pgErr.Code == "23503" && strings.Contains(strings.ToLower(pgErr.ConstraintName), strings.ToLower(constraintName)) {
			return true
		}
	}
	return false
}

// isCodeCollision reports a turn code that was already issued, on either the ticket or the turn index
func isCodeCollision(err error) bool {
	return isDuplicateKeyError(err, "open_code") || isDuplicateKeyError(err, "codigo_turno")
}
