package iam

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Role is the account role carried in tokens.
type Role string

const (
	// RoleUser is the default role for every new account
	RoleUser Role = "user"
	// RoleAdmin can manage other accounts
	RoleAdmin Role = "admin"
)

// IsValid reports whether r is one of the known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// Status is the account lifecycle status.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusBanned   Status = "banned"
)

// Account is the persisted account record.
type Account struct {
	bun.BaseModel    `bun:"table:users,alias:usr"`
	ID               int64     `bun:"id,pk,autoincrement" json:"id"`
	Name             string    `bun:"name,notnull" json:"name"`
	Username         string    `bun:"username,notnull" json:"username"`
	Email            string    `bun:"email,notnull,unique" json:"email"`
	PasswordHash     string    `bun:"password,notnull" json:"-"`
	ExternalID       string    `bun:"external_id,nullzero" json:"external_id,omitempty"`
	ExternalUsername string    `bun:"external_username,nullzero" json:"external_username,omitempty"`
	LastLoginIP      string    `bun:"last_login_ip,nullzero" json:"last_login_ip,omitempty"`
	Role             Role      `bun:"role,notnull,default:'user'" json:"role"`
	Status           Status    `bun:"status,notnull,default:'active'" json:"status"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// AccountView is an Account without its password digest. It is what gets
// attached to a request and returned to clients.
type AccountView struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	ExternalID       string    `json:"external_id,omitempty"`
	ExternalUsername string    `json:"external_username,omitempty"`
	LastLoginIP      string    `json:"last_login_ip,omitempty"`
	Role             Role      `json:"role"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// View returns the sanitized projection of the account
func (a *Account) View() *AccountView {
	if a == nil {
		return nil
	}
	return &AccountView{
		ID:               a.ID,
		Name:             a.Name,
		Username:         a.Username,
		Email:            a.Email,
		ExternalID:       a.ExternalID,
		ExternalUsername: a.ExternalUsername,
		LastLoginIP:      a.LastLoginIP,
		Role:             a.Role,
		Status:           a.Status,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

// AccountDraft is the input to AccountStore.Create
type AccountDraft struct {
	Name             string
	Username         string
	Email            string
	PasswordHash     string
	Role             Role
	Status           Status
	ExternalID       string
	ExternalUsername string
}

// Account builds the record to insert, filling role and status defaults.
func (d AccountDraft) Account() *Account {
	record := &Account{
		Name:             d.Name,
		Username:         d.Username,
		Email:            strings.TrimSpace(d.Email),
		PasswordHash:     d.PasswordHash,
		Role:             d.Role,
		Status:           d.Status,
		ExternalID:       d.ExternalID,
		ExternalUsername: d.ExternalUsername,
	}
	if record.Role == "" {
		record.Role = RoleUser
	}
	if record.Status == "" {
		record.Status = StatusActive
	}
	return record
}

// TokenPair is the result of a successful login, refresh or social login.
type TokenPair struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         TokenHolder `json:"user"`
}

// TokenHolder is the account summary returned alongside a token pair.
type TokenHolder struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
