package iam

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// AccountPatch lists the fields an admin update changes. Nil fields are left
// untouched.
type AccountPatch struct {
	Name     *string `json:"name,omitempty"`
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Role     *Role   `json:"role,omitempty"`
	Status   *Status `json:"status,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p AccountPatch) IsEmpty() bool {
	return p.Name == nil && p.Username == nil && p.Email == nil && p.Role == nil && p.Status == nil
}

// Validate checks the fields that are set
func (p AccountPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.Length(1, 30)),
		validation.Field(&p.Username, validation.NilOrNotEmpty, validation.Length(1, 40)),
		validation.Field(&p.Email, validation.NilOrNotEmpty, is.EmailFormat),
		validation.Field(&p.Role, validation.NilOrNotEmpty, validation.In(RoleUser, RoleAdmin)),
		validation.Field(&p.Status, validation.NilOrNotEmpty, validation.In(StatusActive, StatusInactive, StatusBanned)),
	)
}
