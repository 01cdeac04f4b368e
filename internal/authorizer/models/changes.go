package models

import (
	"slices"
	"time"
)

// Changes is a partial update of an Authorizer. Nil fields are left alone.
type Changes struct {
	Authorized   *bool
	RefreshToken *string
	FuncScopes   *[]int
	Profile      *Profile
}

func (c Changes) IsEmpty() bool {
	return c.Authorized == nil && c.RefreshToken == nil && c.FuncScopes == nil && c.Profile == nil
}

// Apply writes the non-nil fields into a and bumps UpdatedAt.
func (c Changes) Apply(a *Authorizer, now time.Time) {
	if c.IsEmpty() {
		return
	}
	if c.Authorized != nil {
		a.Authorized = *c.Authorized
	}
	if c.RefreshToken != nil {
		a.RefreshToken = *c.RefreshToken
	}
	if c.FuncScopes != nil {
		a.FuncScopes = slices.Clone(*c.FuncScopes)
	}
	if c.Profile != nil {
		a.Profile = c.Profile.Clone()
	}
	a.UpdatedAt = now
}

// Fields lists the column names touched, for logging.
func (c Changes) Fields() []string {
	var fields []string
	if c.Authorized != nil {
		fields = append(fields, "authorized")
	}
	if c.RefreshToken != nil {
		fields = append(fields, "refresh_token")
	}
	if c.FuncScopes != nil {
		fields = append(fields, "func_scopes")
	}
	if c.Profile != nil {
		fields = append(fields, "profile")
	}
	return fields
}
