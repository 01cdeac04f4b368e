package broker

import (
	"errors"

	credmetrics "credgate/internal/credential/metrics"
	"credgate/internal/openplatform"
)

// unavailableError ends a fetch chain without a platform failure, for example
// when no verify ticket has been pushed yet.
type unavailableError struct {
	reason string
}

func (e *unavailableError) Error() string {
	return e.reason
}

func unavailable(reason string) error {
	return &unavailableError{reason: reason}
}

const outcomeStoreError = "store_error"

// failureOutcome labels a fetch chain failure for metrics and logs.
func failureOutcome(err error) string {
	var ue *unavailableError
	if errors.As(err, &ue) {
		return credmetrics.OutcomeAbsent
	}
	var fe *openplatform.FetchError
	if errors.As(err, &fe) {
		return string(fe.Category)
	}
	return outcomeStoreError
}
