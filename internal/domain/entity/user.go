package entity

import "time"

// Roles válidos para User.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// ValidRole indica si role es uno de los roles soportados.
func ValidRole(role string) bool {
	return role == RoleCustomer || role == RoleAdmin
}

// User representa una cuenta de la tienda.
type User struct {
	ID           string
	Username     string
	PasswordHash string // bcrypt hash, nunca plano en dominio después de persistir
	Role         string // customer, admin
	CreatedAt    time.Time
}

// Principal es la identidad verificada de un request (resultado de autenticar el token).
type Principal struct {
	UserID string
	Role   string
}
