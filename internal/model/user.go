package model

import "time"

// Role names stored in users.role.
const (
	RoleRoot     = "ROOT"
	RoleAdmin    = "ADMIN"
	RoleStaff    = "STAFF"
	RoleCustomer = "CUSTOMER"
)

// User represents a registered account as stored in the `users` table.
// PasswordHash and the refresh token columns never leave the service layer;
// handlers render users through the json tags below, which omit them.
//
// Fields:
//  ID            – primary key identifier of the user.
//  Email         – unique, lower-cased email address.
//  PasswordHash  – bcrypt hashed password.
//  FullName      – display name.
//  Phone         – optional phone number, unique across users and customers.
//  Role          – ROOT, ADMIN, STAFF or CUSTOMER.
//  RewardPoints  – current loyalty balance.
//  DeletedAt     – soft delete marker.
type User struct {
	ID                    uint64     `json:"id"`
	Email                 string     `json:"email"`
	PasswordHash          string     `json:"-"`
	FullName              string     `json:"full_name"`
	Phone                 *string    `json:"phone"`
	Role                  string     `json:"role"`
	RewardPoints          int64      `json:"reward_points"`
	RefreshTokenHash      *string    `json:"-"`
	RefreshTokenExpiresAt *time.Time `json:"-"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
	DeletedAt             *time.Time `json:"-"`
}

// UserPatch holds optional profile changes.  PasswordHash is already hashed
// by the caller.
type UserPatch struct {
	FullName     *string
	Phone        *string
	PasswordHash *string
}
