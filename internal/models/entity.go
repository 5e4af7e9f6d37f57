package models

import "time"

// Status is the safety state of a tracked person.
type Status string

const (
	StatusSafe    Status = "SAFE"
	StatusAtRisk  Status = "AT_RISK"
	StatusUnknown Status = "UNKNOWN"
)

// TrackedEntity is a person whose last-known location is periodically
// checked against active alerts. Created by the registration flow;
// the verifier only ever touches Status, StatusReason and LastUpdated.
type TrackedEntity struct {
	ID                string    `json:"id"`
	DisplayName       string    `json:"displayName"`
	RelationshipLabel string    `json:"relationshipLabel"`
	Location          string    `json:"location,omitempty"`
	Status            Status    `json:"status"`
	StatusReason      string    `json:"statusReason"`
	LastUpdated       time.Time `json:"lastUpdated"`
}

// StatusUpdate records one state transition produced by a verification
// cycle. Only entities whose status or reason actually changed emit one.
type StatusUpdate struct {
	EntityID  string `json:"entityId"`
	OldStatus Status `json:"oldStatus"`
	NewStatus Status `json:"newStatus"`
	Reason    string `json:"reason"`
}
