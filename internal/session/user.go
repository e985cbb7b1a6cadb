package session

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Role is a storefront role
type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

func (r Role) String() string {
	return string(r)
}

// IsValid reports whether r is one of the known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// CanManageInventory reports whether the role may create or edit catalog items
func (r Role) CanManageInventory() bool {
	return r == RoleManager || r == RoleAdmin
}

// UserSummary is the user snapshot returned by the backend at login.
type UserSummary struct {
	ID        uint   `json:"id" validate:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email" validate:"omitempty,email"`
	Role      Role   `json:"role" validate:"required,oneof=user manager admin"`
	ImageURL  string `json:"image,omitempty"`
	Blocked   bool   `json:"blocked"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// FullName joins first and last name
func (u UserSummary) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the record has the shape the storefront expects
func (u UserSummary) Validate() error {
	if err := validate.Struct(u); err != nil {
		return fmt.Errorf("invalid user record: %w", err)
	}
	return nil
}

// ParseUser decodes and validates a serialized user record.
func ParseUser(raw string) (*UserSummary, error) {
	var user UserSummary
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("failed to parse user record: %w", err)
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	return &user, nil
}
