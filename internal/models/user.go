package models

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// User is the authenticated principal. Accounts are owned by the auth
// service; this service only reads them.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
