package testutil

import (
	"time"

	"credgate/internal/authorizer/models"
	id "credgate/pkg/domain"
)

// Fixed app IDs for deterministic test data.
const (
	TestAppID1 id.AppID = "wx570bc396a51b8ff8"
	TestAppID2 id.AppID = "wxd1b0b7c6e0f1a2b3"
)

// AuthorizerBuilder provides a fluent interface for building test authorizers.
type AuthorizerBuilder struct {
	authorizer *models.Authorizer
}

// NewAuthorizerBuilder creates a builder for an authorized record with a refresh token.
func NewAuthorizerBuilder() *AuthorizerBuilder {
	now := time.Now()
	return &AuthorizerBuilder{
		authorizer: &models.Authorizer{
			ID:           id.NewAuthorizerID(),
			AppID:        TestAppID1,
			Authorized:   true,
			RefreshToken: "refreshtoken@@@initial",
			FuncScopes:   []int{1, 2, 3},
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
}

func (b *AuthorizerBuilder) WithAppID(appID id.AppID) *AuthorizerBuilder {
	b.authorizer.AppID = appID
	return b
}

func (b *AuthorizerBuilder) WithRefreshToken(token string) *AuthorizerBuilder {
	b.authorizer.RefreshToken = token
	return b
}

func (b *AuthorizerBuilder) WithProfile(p models.Profile) *AuthorizerBuilder {
	b.authorizer.Profile = p
	return b
}

func (b *AuthorizerBuilder) WithFuncScopes(scopes ...int) *AuthorizerBuilder {
	b.authorizer.FuncScopes = scopes
	return b
}

func (b *AuthorizerBuilder) Unauthorized() *AuthorizerBuilder {
	b.authorizer.Authorized = false
	return b
}

// Build returns a copy so the builder can be reused.
func (b *AuthorizerBuilder) Build() *models.Authorizer {
	a := *b.authorizer
	a.FuncScopes = append([]int(nil), b.authorizer.FuncScopes...)
	return &a
}
