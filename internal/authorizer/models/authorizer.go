package models

import (
	"slices"
	"time"

	id "credgate/pkg/domain"
	dErrors "credgate/pkg/domain-errors"
)

// Authorizer is an official account or mini program that granted this
// component access. It is the only persistent state the broker owns.
type Authorizer struct {
	ID           id.AuthorizerID `json:"id"`
	AppID        id.AppID        `json:"appid"`
	Authorized   bool            `json:"authorized"`
	RefreshToken string          `json:"-"`
	FuncScopes   []int           `json:"func_scopes"`
	Profile      Profile         `json:"profile"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewAuthorizer creates an authorized record from a fresh authorization grant.
func NewAuthorizer(appID id.AppID, refreshToken string, funcScopes []int, now time.Time) (*Authorizer, error) {
	if appID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "authorizer appid cannot be empty")
	}
	if refreshToken == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "authorized record requires a refresh token")
	}
	return &Authorizer{
		ID:           id.NewAuthorizerID(),
		AppID:        appID,
		Authorized:   true,
		RefreshToken: refreshToken,
		FuncScopes:   slices.Clone(funcScopes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CanIssueTokens reports whether access tokens may be minted for this record.
func (a *Authorizer) CanIssueTokens() bool {
	return a.Authorized && a.RefreshToken != ""
}

// Validate checks the record invariants.
func (a *Authorizer) Validate() error {
	if a.AppID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "authorizer appid cannot be empty")
	}
	if a.Authorized && a.RefreshToken == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "authorized record requires a refresh token")
	}
	return nil
}

// The methods below describe a transition as Changes without touching the
// receiver. false means there is nothing to write.

// RotateRefreshToken records a refresh token returned by the platform.
// Empty or identical tokens produce no change.
func (a *Authorizer) RotateRefreshToken(token string) (Changes, bool) {
	if token == "" || token == a.RefreshToken {
		return Changes{}, false
	}
	return Changes{RefreshToken: &token}, true
}

// ApplyProfile records a freshly fetched profile and scope list. It never
// changes the authorization state; only Reauthorize reactivates a record.
func (a *Authorizer) ApplyProfile(profile Profile, funcScopes []int) (Changes, bool) {
	var c Changes
	if !a.Profile.Equal(profile) {
		p := profile.Clone()
		c.Profile = &p
	}
	if !slices.Equal(a.FuncScopes, funcScopes) && !(len(a.FuncScopes) == 0 && len(funcScopes) == 0) {
		scopes := slices.Clone(funcScopes)
		c.FuncScopes = &scopes
	}
	return c, !c.IsEmpty()
}

// MarkUnauthorized records that the authorizer revoked the grant.
func (a *Authorizer) MarkUnauthorized() (Changes, bool) {
	if !a.Authorized {
		return Changes{}, false
	}
	authorized := false
	return Changes{Authorized: &authorized}, true
}

// Reauthorize records a new grant for an existing record. An empty refresh
// token is refused.
func (a *Authorizer) Reauthorize(refreshToken string, funcScopes []int) (Changes, bool) {
	if refreshToken == "" {
		return Changes{}, false
	}
	var c Changes
	if !a.Authorized {
		authorized := true
		c.Authorized = &authorized
	}
	if refreshToken != a.RefreshToken {
		c.RefreshToken = &refreshToken
	}
	if funcScopes != nil && !slices.Equal(a.FuncScopes, funcScopes) {
		scopes := slices.Clone(funcScopes)
		c.FuncScopes = &scopes
	}
	return c, !c.IsEmpty()
}
