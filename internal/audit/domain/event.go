package domain

import "time"

// Action names an audited authentication operation.
type Action string

const (
	ActionLogin         Action = "login"
	ActionRefresh       Action = "refresh"
	ActionLogout        Action = "logout"
	ActionSessionRevoke Action = "session_revoke"
)

// Outcome is the result of an audited operation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is one audit trail entry. Detail never contains secrets or tokens.
type Event struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	Action    Action    `json:"action"`
	Outcome   Outcome   `json:"outcome"`
	IP        string    `json:"ip,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
