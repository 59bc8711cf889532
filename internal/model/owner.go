package model

import (
	"database/sql"
	"fmt"
)

// OwnerKind tags which identity table an owner id points into.
type OwnerKind string

const (
	OwnerUser     OwnerKind = "USER"
	OwnerCustomer OwnerKind = "CUSTOMER"
)

// OwnerRef identifies the identity (registered user or guest customer) that
// owns an order, a ledger row or a review.  The zero value means "no owner";
// it is stored as owner_kind = NULL, owner_id = NULL.  Because a single pair
// of columns holds the reference, an entity can never belong to a user and a
// customer at the same time.
type OwnerRef struct {
	Kind OwnerKind
	ID   uint64
}

func UserOwner(id uint64) OwnerRef     { return OwnerRef{Kind: OwnerUser, ID: id} }
func CustomerOwner(id uint64) OwnerRef { return OwnerRef{Kind: OwnerCustomer, ID: id} }

// IsZero reports whether the reference is empty.
func (o OwnerRef) IsZero() bool { return o.Kind == "" || o.ID == 0 }

func (o OwnerRef) String() string {
	if o.IsZero() {
		return "none"
	}
	return fmt.Sprintf("%s:%d", o.Kind, o.ID)
}

// UserID returns the user id when the owner is a user.
func (o OwnerRef) UserID() *uint64 {
	if o.Kind != OwnerUser || o.ID == 0 {
		return nil
	}
	id := o.ID
	return &id
}

// CustomerID returns the customer id when the owner is a customer.
func (o OwnerRef) CustomerID() *uint64 {
	if o.Kind != OwnerCustomer || o.ID == 0 {
		return nil
	}
	id := o.ID
	return &id
}

// OwnerFromIDs builds a reference out of the optional user_id / customer_id
// pair accepted by the API.  ok is false when both are set.
func OwnerFromIDs(userID, customerID *uint64) (ref OwnerRef, ok bool) {
	switch {
	case userID != nil && customerID != nil:
		return OwnerRef{}, false
	case userID != nil:
		return UserOwner(*userID), true
	case customerID != nil:
		return CustomerOwner(*customerID), true
	}
	return OwnerRef{}, true
}

// Args returns the (owner_kind, owner_id) column values.
func (o OwnerRef) Args() (any, any) {
	if o.IsZero() {
		return nil, nil
	}
	return string(o.Kind), o.ID
}

// OwnerFromNull converts scanned nullable columns into an OwnerRef.
func OwnerFromNull(kind sql.NullString, id sql.NullInt64) OwnerRef {
	if !kind.Valid || !id.Valid {
		return OwnerRef{}
	}
	return OwnerRef{Kind: OwnerKind(kind.String), ID: uint64(id.Int64)}
}
