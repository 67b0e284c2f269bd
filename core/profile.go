package core

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Profile holds the fields a user supplies at signup
type Profile struct {
	UserName  string `json:"userName"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Validate checks the profile and wraps any failure in ErrInvalidProfile.
func (p Profile) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.UserName, validation.Required, validation.Length(2, 64)),
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.FirstName, validation.Length(0, 128)),
		validation.Field(&p.LastName, validation.Length(0, 128)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	return nil
}
