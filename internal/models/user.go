package models

import (
	"time"

	"github.com/google/uuid"
)

// Роли пользователей платформы.
const (
	RoleCustomer = "customer"
	RoleProvider = "provider"
	RoleAdmin    = "admin"
)

// User описывает сущность пользователя платформы.
type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         string     `db:"role" json:"role"`
	IsActive     bool       `db:"is_active" json:"is_active"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Review описывает отзыв клиента об исполнителе после завершения заявки.
type Review struct {
	ID         uuid.UUID `db:"id" json:"id"`
	RequestID  uuid.UUID `db:"request_id" json:"request_id"`
	ReviewerID uuid.UUID `db:"reviewer_id" json:"reviewer_id"`
	ProviderID uuid.UUID `db:"provider_id" json:"provider_id"`
	Rating     int       `db:"rating" json:"rating"`
	Comment    *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
