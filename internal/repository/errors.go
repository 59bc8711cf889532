// Package repository holds the MySQL access code.  Repositories return the
// sentinel values below so higher layers can tell failure scenarios apart
// without looking at driver errors.  For example, ErrPhoneTaken indicates
// that a phone number already belongs to another user or customer, while
// ErrInsufficientPoints signals that a redemption would push a balance below
// zero.
package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/coffee-backoffice/internal/model"
)

// ErrNotFound is returned when the requested row does not exist or is
// soft-deleted.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a delete or update cannot be performed
// because of conflicting state, such as hard-deleting a product that
// existing orders still reference.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned by UserRepo.Create for a duplicate email.
var ErrEmailExists = errors.New("email already exists")

// ErrPhoneTaken is returned when a phone number is held by another identity.
// The concrete error is a *PhoneTakenError naming the holder.
var ErrPhoneTaken = errors.New("phone number already in use")

// ErrInsufficientPoints is returned when a redemption exceeds the balance.
var ErrInsufficientPoints = errors.New("not enough reward points")

// ErrAlreadySettled is returned when reward points for an order have already
// been credited.
var ErrAlreadySettled = errors.New("order points already settled")

// ErrOwnerMismatch is returned when the order changed owner (a merge moved it)
// between reading it and locking it.
var ErrOwnerMismatch = errors.New("order owner changed")

// PhoneTakenError carries the identity that holds a phone number.
type PhoneTakenError struct {
	Phone string
	Owner model.OwnerRef
}

func (e *PhoneTakenError) Error() string {
	return fmt.Sprintf("phone %s already used by %s", e.Phone, e.Owner)
}

func (e *PhoneTakenError) Is(target error) bool { return target == ErrPhoneTaken }

// notFound maps sql.ErrNoRows to ErrNotFound and leaves other errors alone.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// isDuplicateKey reports a MySQL unique-index violation (1062).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// isDuplicateOn reports a unique-index violation on the named key.
func isDuplicateOn(err error, key string) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062 && strings.Contains(me.Message, key)
}

// isForeignKeyViolation reports a MySQL foreign key failure (1451/1452).
func isForeignKeyViolation(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && (me.Number == 1451 || me.Number == 1452)
}
