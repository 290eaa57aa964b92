// Package models contains data structures used by the repository layer.
package models

import "time"

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleDispatcher Role = "dispatcher"
	RoleWorker     Role = "worker"
)

type User struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	FullName  string     `json:"full_name"`
	Email     *string    `json:"email"`
	Phone     *string    `json:"phone"`
	Role      Role       `json:"role"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// DisplayName is the full name, or the username when no name is set.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// ProfileUpdate is a partial update. Nil fields keep their stored value.
type ProfileUpdate struct {
	FullName *string
	Email    *string
	Phone    *string
}

func (p ProfileUpdate) Empty() bool {
	return p.FullName == nil && p.Email == nil && p.Phone == nil
}
