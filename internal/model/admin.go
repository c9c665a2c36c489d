package model

import "time"

// AdminCredential is the single administrator account. At most one is ever
// persisted; after creation only the hash and login timestamps change.
type AdminCredential struct {
	Username           string     `json:"username"`
	PasswordHash       string     `json:"passwordHash"` // bcrypt
	CreatedAt          time.Time  `json:"createdAt"`
	LastLogin          *time.Time `json:"lastLogin"`
	LastPasswordChange *time.Time `json:"lastPasswordChange,omitempty"`
}

// AdminInfo is the credential without its hash, safe to render.
type AdminInfo struct {
	Username           string     `json:"username"`
	CreatedAt          time.Time  `json:"created_at"`
	LastLogin          *time.Time `json:"last_login,omitempty"`
	LastPasswordChange *time.Time `json:"last_password_change,omitempty"`
}

// Info strips the password hash.
func (c AdminCredential) Info() AdminInfo {
	return AdminInfo{
		Username:           c.Username,
		CreatedAt:          c.CreatedAt,
		LastLogin:          c.LastLogin,
		LastPasswordChange: c.LastPasswordChange,
	}
}
