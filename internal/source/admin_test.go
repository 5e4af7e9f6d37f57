package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avenlake/hazardwatch/internal/models"
	"github.com/avenlake/hazardwatch/internal/repository"
)

type stubAdminStore struct {
	records []repository.AdminAlertRecord
	err     error
	askedAt time.Time
}

func (s *stubAdminStore) AddAdminAlert(ctx context.Context, rec *repository.AdminAlertRecord) error {
	s.records = append(s.records, *rec)
	return nil
}

func (s *stubAdminStore) ListActive(ctx context.Context, now time.Time) ([]repository.AdminAlertRecord, error) {
	s.askedAt = now
	return s.records, s.err
}

func TestAdminAdapter_Fetch(t *testing.T) {
	clock := clockwork.NewFakeClock()
	expires := clock.Now().Add(time.Hour)
	store := &stubAdminStore{
		records: []repository.AdminAlertRecord{{
			ID:          "42",
			Title:       "Water main break",
			Description: "Avoid 5th and Main.",
			Severity:    models.SeverityHigh,
			Priority:    "urgent",
			CreatedBy:   "ops",
			Zones:       []string{"downtown"},
			CreatedAt:   clock.Now().Add(-time.Hour),
			ExpiresAt:   &expires,
		}},
	}

	a := NewAdminAdapter(store, clock)
	alerts, err := a.Fetch(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	alert := alerts[0]
	assert.Equal(t, "admin_42", alert.ID)
	assert.Equal(t, models.SourceAdministrative, alert.Source)
	// Severity passes through untouched.
	assert.Equal(t, models.SeverityHigh, alert.Severity)
	assert.Equal(t, "ops", alert.CreatedBy)
	assert.Equal(t, []string{"downtown"}, alert.Zones)
	assert.Equal(t, []string{"downtown"}, alert.AffectedAreas)
	assert.Equal(t, clock.Now(), store.askedAt)
}

func TestAdminAdapter_StoreError(t *testing.T) {
	store := &stubAdminStore{err: errors.New("db locked")}

	a := NewAdminAdapter(store, nil)
	_, err := a.Fetch(context.Background(), nil)
	require.Error(t, err)
}
