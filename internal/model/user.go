package model

import "time"

// Role values stored in users.role and carried in the JWT role claim.
const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

// User is an authenticated account holder. Only the identity fields
// needed by the payment engine live here; profile editing is handled by
// a separate application.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email (unique)
	PasswordHash string    // users.password_hash (bcrypt)
	FullName     string    // users.full_name
	Role         string    // users.role (CUSTOMER | ADMIN)
	CreatedAt    time.Time // users.created_at
}
