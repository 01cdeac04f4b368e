package audit

import "time"

// Event records a credential lifecycle action. It carries identifiers and
// fingerprints only, never credential values.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	AppID     string            `json:"appid,omitempty"`
	Subject   string            `json:"subject,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
}

type AuditEvent string

const (
	EventAuthorizationCompleted AuditEvent = "authorization_completed"
	EventAuthorizationRevoked   AuditEvent = "authorization_revoked"
	EventRefreshTokenRotated    AuditEvent = "refresh_token_rotated"
	EventProfileSynced          AuditEvent = "profile_synced"
	EventCredentialInvalidated  AuditEvent = "credential_invalidated"
	EventVerifyTicketSaved      AuditEvent = "verify_ticket_saved"
	EventSessionRevoked         AuditEvent = "session_revoked"
	EventCircuitReset           AuditEvent = "circuit_reset"
)

func (e AuditEvent) String() string {
	return string(e)
}
