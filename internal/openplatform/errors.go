package openplatform

import (
	"errors"
	"fmt"
)

// Category classifies why a platform call failed.
type Category string

const (
	CategoryTimeout Category = "timeout"
	// CategoryOutage covers transport errors, 5xx responses and the platform's "system busy" code.
	CategoryOutage Category = "outage"
	// CategoryBadData covers undecodable bodies and responses missing required fields.
	CategoryBadData Category = "bad_data"
	// CategoryInvalidCredential means the credential used for the call was rejected.
	// The caller should evict it before trying again.
	CategoryInvalidCredential Category = "invalid_credential"
	CategoryRateLimited       Category = "rate_limited"
	// CategoryPlatform is any other non-zero errcode.
	CategoryPlatform    Category = "platform"
	CategoryCircuitOpen Category = "circuit_open"
	CategoryInternal    Category = "internal"
)

// Platform errcodes with a dedicated category.
const (
	errcodeSystemBusy          = -1
	errcodeInvalidCredential   = 40001
	errcodeInvalidAccessToken  = 40014
	errcodeAccessTokenExpired  = 42001
	errcodeInvalidRefreshToken = 61023
	errcodeReachMaxAPIDaily    = 45009
)

// FetchError is returned by every Client call that fails.
type FetchError struct {
	Category Category
	Endpoint string
	Message  string
	// Code is the platform errcode or the HTTP status, when there was one.
	Code int
	Err  error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("openplatform %s [%s]: %s", e.Endpoint, e.Category, e.Message)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func newFetchError(category Category, endpoint, message string, code int, err error) *FetchError {
	return &FetchError{Category: category, Endpoint: endpoint, Message: message, Code: code, Err: err}
}

// CategoryOf extracts the failure category of err, or CategoryInternal.
func CategoryOf(err error) Category {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Category
	}
	return CategoryInternal
}

// IsInvalidCredential reports whether err means the presented credential was rejected.
func IsInvalidCredential(err error) bool {
	return CategoryOf(err) == CategoryInvalidCredential
}

func categorizeErrcode(code int) Category {
	switch code {
	case errcodeSystemBusy:
		return CategoryOutage
	case errcodeInvalidCredential, errcodeInvalidAccessToken, errcodeAccessTokenExpired, errcodeInvalidRefreshToken:
		return CategoryInvalidCredential
	case errcodeReachMaxAPIDaily:
		return CategoryRateLimited
	default:
		return CategoryPlatform
	}
}

// countsAgainstBreaker reports whether a failure says something about upstream health.
func countsAgainstBreaker(c Category) bool {
	switch c {
	case CategoryTimeout, CategoryOutage, CategoryBadData:
		return true
	default:
		return false
	}
}

// IsRefreshTokenRejected reports whether the platform refused an authorizer
// refresh token, as opposed to the component token that accompanied it.
func IsRefreshTokenRejected(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Code == errcodeInvalidRefreshToken
}
