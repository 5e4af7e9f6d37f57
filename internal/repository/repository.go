package repository

import (
	"context"
	"time"

	"github.com/avenlake/hazardwatch/internal/models"
)

// ReadStateStore persists the set of alert ids the user has read.
// Read-state lives independently of the in-memory alert list so a feed
// refresh never resurrects an alert as unread.
type ReadStateStore interface {
	LoadReadIDs(ctx context.Context) ([]string, error)
	SaveReadID(ctx context.Context, id string) error
	SaveReadIDs(ctx context.Context, ids []string) error
}

// AdminAlertRecord is a human-entered alert as stored, before
// normalization into the shared alert model.
type AdminAlertRecord struct {
	ID          string
	Title       string
	Description string
	Severity    models.Severity
	Priority    string
	CreatedBy   string
	Zones       []string
	CreatedAt   time.Time
	ExpiresAt   *time.Time
}

// AdminAlertStore persists administrative alerts.
type AdminAlertStore interface {
	AddAdminAlert(ctx context.Context, rec *AdminAlertRecord) error
	ListActive(ctx context.Context, now time.Time) ([]AdminAlertRecord, error)
}

// EntityStore persists tracked persons and their verification state.
type EntityStore interface {
	AddEntity(ctx context.Context, e *models.TrackedEntity) error
	ListEntities(ctx context.Context) ([]models.TrackedEntity, error)
	UpdateLocation(ctx context.Context, id, location string) error
	SaveStatus(ctx context.Context, id string, status models.Status, reason string, at time.Time) error
}
