package models

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

// User is the profile object returned by /auth/profile/ and embedded in token responses.
type User struct {
	ID               string              `json:"id"`
	Email            openapi_types.Email `json:"email"`
	FirstName        string              `json:"first_name"`
	LastName         string              `json:"last_name"`
	Phone            string              `json:"phone,omitempty"`
	IsEmailVerified  bool                `json:"is_email_verified"`
	TwoFactorEnabled bool                `json:"two_factor_enabled"`
	AddressTitle     string              `json:"address_title,omitempty"`
	Address          string              `json:"address,omitempty"`
	City             string              `json:"city,omitempty"`
	District         string              `json:"district,omitempty"`
	PostalCode       string              `json:"postal_code,omitempty"`
	DateJoined       time.Time           `json:"date_joined"`
}

// ProfileUpdate is a partial PATCH body; nil fields are left untouched by the backend.
type ProfileUpdate struct {
	FirstName    *string `json:"first_name,omitempty"`
	LastName     *string `json:"last_name,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	AddressTitle *string `json:"address_title,omitempty"`
	Address      *string `json:"address,omitempty"`
	City         *string `json:"city,omitempty"`
	District     *string `json:"district,omitempty"`
	PostalCode   *string `json:"postal_code,omitempty"`
}
