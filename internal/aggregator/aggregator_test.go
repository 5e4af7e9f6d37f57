package aggregator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/goleak"

	"github.com/avenlake/hazardwatch/internal/models"
	"github.com/avenlake/hazardwatch/internal/source"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubAdapter serves a fixed alert list, optionally failing, and counts
// invocations.
type stubAdapter struct {
	src    models.Source
	alerts []models.Alert
	err    error
	calls  atomic.Int64
	delay  time.Duration
}

func (s *stubAdapter) Source() models.Source {
	return s.src
}

func (s *stubAdapter) Fetch(ctx context.Context, loc *models.Coordinates) ([]models.Alert, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out, nil
}

// memReadStore is an in-memory ReadStateStore.
type memReadStore struct {
	mu  sync.Mutex
	ids map[string]struct{}
	err error
}

func newMemReadStore() *memReadStore {
	return &memReadStore{ids: make(map[string]struct{})}
}

func (m *memReadStore) LoadReadIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id := range m.ids {
		out = append(out, id)
	}
	return out, m.err
}

func (m *memReadStore) SaveReadID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.ids[id] = struct{}{}
	return nil
}

func (m *memReadStore) SaveReadIDs(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := m.SaveReadID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func seismicAlert(id string, ts time.Time) models.Alert {
	return models.Alert{
		ID:        "seismic_" + id,
		Source:    models.SourceSeismic,
		Severity:  models.SeverityModerate,
		Title:     "M 5.2 - somewhere",
		Timestamp: ts,
		Magnitude: 5.2,
	}
}

func weatherAlert(id string, ts time.Time) models.Alert {
	return models.Alert{
		ID:            "weather_" + id,
		Source:        models.SourceWeather,
		Severity:      models.SeverityHigh,
		Title:         "Flood Warning",
		Timestamp:     ts,
		AffectedAreas: []string{"Los Angeles County"},
	}
}

func newTestAggregator(t *testing.T, adapters []source.Adapter, store *memReadStore, clock clockwork.Clock) *Aggregator {
	t.Helper()
	if store == nil {
		store = newMemReadStore()
	}
	agg := New(context.Background(), adapters, store, clock, nil, time.Second)
	t.Cleanup(agg.Close)
	return agg
}

func TestFetchAll_MergesAndSortsByRecency(t *testing.T) {
	now := time.Now()
	adapters := []source.Adapter{
		&stubAdapter{src: models.SourceSeismic, alerts: []models.Alert{seismicAlert("old", now.Add(-2 * time.Hour))}},
		&stubAdapter{src: models.SourceWeather, alerts: []models.Alert{weatherAlert("new", now)}},
	}
	agg := newTestAggregator(t, adapters, nil, nil)

	alerts, err := agg.FetchAll(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts))
	}
	if alerts[0].ID != "weather_new" || alerts[1].ID != "seismic_old" {
		t.Errorf("not sorted by recency: %s, %s", alerts[0].ID, alerts[1].ID)
	}
}

func TestFetchAll_PartialAdapterFailureIsolated(t *testing.T) {
	now := time.Now()
	adapters := []source.Adapter{
		&stubAdapter{src: models.SourceSeismic, alerts: []models.Alert{seismicAlert("a", now)}},
		&stubAdapter{src: models.SourceWeather, err: errors.New("upstream down")},
		&stubAdapter{src: models.SourceAdministrative, alerts: []models.Alert{{
			ID: "admin_1", Source: models.SourceAdministrative, Severity: models.SeverityLow, Timestamp: now,
		}}},
	}
	agg := newTestAggregator(t, adapters, nil, nil)

	alerts, err := agg.FetchAll(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(alerts) != 2 {
		t.Errorf("expected seismic+admin alerts despite weather failure, got %d", len(alerts))
	}
}

func TestFetchAll_SourceFilter(t *testing.T) {
	now := time.Now()
	seismic := &stubAdapter{src: models.SourceSeismic, alerts: []models.Alert{seismicAlert("a", now)}}
	weather := &stubAdapter{src: models.SourceWeather, alerts: []models.Alert{weatherAlert("b", now)}}
	agg := newTestAggregator(t, []source.Adapter{seismic, weather}, nil, nil)

	alerts, err := agg.FetchAll(context.Background(), nil, []models.Source{models.SourceSeismic})
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Source != models.SourceSeismic {
		t.Errorf("source filter not applied: %+v", alerts)
	}
	if weather.calls.Load() != 0 {
		t.Errorf("filtered-out adapter was invoked %d times", weather.calls.Load())
	}
}

func TestFetchAll_AdapterTimeoutIsolated(t *testing.T) {
	now := time.Now()
	adapters := []source.Adapter{
		&stubAdapter{src: models.SourceSeismic, alerts: []models.Alert{seismicAlert("a", now)}},
		&stubAdapter{src: models.SourceWeather, delay: 5 * time.Second, alerts: []models.Alert{weatherAlert("slow", now)}},
	}
	store := newMemReadStore()
	agg := New(context.Background(), adapters, store, nil, nil, 50*time.Millisecond)
	defer agg.Close()

	start := time.Now()
	alerts, err := agg.FetchAll(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("slow adapter stalled the cycle: %v", elapsed)
	}
	if len(alerts) != 1 || alerts[0].Source != models.SourceSeismic {
		t.Errorf("expected only the fast adapter's alerts, got %+v", alerts)
	}
}

func TestMarkRead_IdempotentAndPersisted(t *testing.T) {
	now := time.Now()
	store := newMemReadStore()
	agg := newTestAggregator(t, []source.Adapter{
		&stubAdapter{src: models.SourceSeismic, alerts: []models.Alert{seismicAlert("a", now), seismicAlert("b", now)}},
	}, store, nil)

	if _, err := agg.FetchAll(context.Background(), nil, nil); err != nil {
		t.Fatal(err)
	}

	agg.MarkRead(context.Background(), "seismic_a")
	agg.MarkRead(context.Background(), "seismic_a")

	stats := agg.Statistics()
	if stats.Unread != 1 {
		t.Errorf("expected 1 unread after double MarkRead, got %d", stats.Unread)
	}
	if _, ok := store.ids["seismic_a"]; !ok {
		t.Error("read id not persisted")
	}
}

func TestReadState_SurvivesRefresh(t *testing.T) {
	now := time.Now()
	adapter := &stubAdapter{src: models.SourceSeismic, alerts: []models.Alert{seismicAlert("a", now)}}
	agg := newTestAggregator(t, []source.Adapter{adapter}, nil, nil)

	if _, err := agg.FetchAll(context.Background(), nil, nil); err != nil {
		t.Fatal(err)
	}
	agg.MarkRead(context.Background(), "seismic_a")

	// A refresh reintroduces the same id; it must stay read.
	alerts, err := agg.FetchAll(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !alerts[0].IsRead {
		t.Error("read state lost across refresh")
	}
	if agg.Statistics().Unread != 0 {
		t.Errorf("unread count wrong after refresh: %d", agg.Statistics().Unread)
	}
}

func TestReadState_LoadedFromStoreAtStartup(t *testing.T) {
	now := time.Now()
	store := newMemReadStore()
	store.ids["seismic_a"] = struct{}{}

	agg := newTestAggregator(t, []source.Adapter{
		&stubAdapter{src: models.SourceSeismic, alerts: []models.Alert{seismicAlert("a", now)}},
	}, store, nil)

	alerts, err := agg.FetchAll(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !alerts[0].IsRead {
		t.Error("durable read id not applied on first fetch")
	}
}

func TestMarkAllRead(t *testing.T) {
	now := time.Now()
	store := newMemReadStore()
	agg := newTestAggregator(t, []source.Adapter{
		&stubAdapter{src: models.SourceSeismic, alerts: []models.Alert{seismicAlert("a", now), seismicAlert("b", now)}},
		&stubAdapter{src: models.SourceWeather, alerts: []models.Alert{weatherAlert("c", now)}},
	}, store, nil)

	if _, err := agg.FetchAll(context.Background(), nil, nil); err != nil {
		t.Fatal(err)
	}

	agg.MarkAllRead(context.Background())

	if unread := agg.Statistics().Unread; unread != 0 {
		t.Errorf("expected 0 unread, got %d", unread)
	}
	if len(store.ids) != 3 {
		t.Errorf("expected 3 persisted read ids, got %d", len(store.ids))
	}
}

func TestMarkRead_PersistenceFailureStillUpdatesMemory(t *testing.T) {
	now := time.Now()
	store := newMemReadStore()
	agg := newTestAggregator(t, []source.Adapter{
		&stubAdapter{src: models.SourceSeismic, alerts: []models.Alert{seismicAlert("a", now)}},
	}, store, nil)

	if _, err := agg.FetchAll(context.Background(), nil, nil); err != nil {
		t.Fatal(err)
	}

	store.mu.Lock()
	store.err = errors.New("disk full")
	store.mu.Unlock()

	agg.MarkRead(context.Background(), "seismic_a")

	if agg.Statistics().Unread != 0 {
		t.Error("in-memory read state must advance even when persistence fails")
	}
}

func TestFilter(t *testing.T) {
	now := time.Now()
	agg := newTestAggregator(t, []source.Adapter{
		&stubAdapter{src: models.SourceSeismic, alerts: []models.Alert{seismicAlert("a", now.Add(-3 * time.Hour))}},
		&stubAdapter{src: models.SourceWeather, alerts: []models.Alert{weatherAlert("b", now)}},
	}, nil, nil)

	if _, err := agg.FetchAll(context.Background(), nil, nil); err != nil {
		t.Fatal(err)
	}

	bySource := agg.Filter(FilterCriteria{Sources: []models.Source{models.SourceWeather}})
	if len(bySource) != 1 || bySource[0].Source != models.SourceWeather {
		t.Errorf("source filter: %+v", bySource)
	}

	bySeverity := agg.Filter(FilterCriteria{Severities: []models.Severity{models.SeverityHigh}})
	if len(bySeverity) != 1 || bySeverity[0].Severity != models.SeverityHigh {
		t.Errorf("severity filter: %+v", bySeverity)
	}

	// MODERATE seismic falls below the HIGH floor; the HIGH weather alert stays.
	atLeastHigh := agg.Filter(FilterCriteria{MinSeverity: models.SeverityHigh})
	if len(atLeastHigh) != 1 || atLeastHigh[0].ID != "weather_b" {
		t.Errorf("min severity filter: %+v", atLeastHigh)
	}
	if all := agg.Filter(FilterCriteria{MinSeverity: models.SeverityInfo}); len(all) != 2 {
		t.Errorf("INFO floor must keep everything: %+v", all)
	}

	since := now.Add(-time.Hour)
	recent := agg.Filter(FilterCriteria{Since: &since})
	if len(recent) != 1 || recent[0].ID != "weather_b" {
		t.Errorf("date filter: %+v", recent)
	}

	// Case-insensitive substring over affected areas.
	byArea := agg.Filter(FilterCriteria{Area: "los angeles"})
	if len(byArea) != 1 || byArea[0].ID != "weather_b" {
		t.Errorf("area filter: %+v", byArea)
	}

	unread := true
	byUnread := agg.Filter(FilterCriteria{Unread: &unread})
	if len(byUnread) != 2 {
		t.Errorf("unread filter: %+v", byUnread)
	}
}

func TestActive_ExpiryRespected(t *testing.T) {
	clock := clockwork.NewFakeClock()
	now := clock.Now()
	expired := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	agg := newTestAggregator(t, []source.Adapter{
		&stubAdapter{src: models.SourceWeather, alerts: []models.Alert{
			{ID: "weather_live", Source: models.SourceWeather, Timestamp: now, ExpiresAt: &future},
			{ID: "weather_gone", Source: models.SourceWeather, Timestamp: now, ExpiresAt: &expired},
			{ID: "weather_forever", Source: models.SourceWeather, Timestamp: now},
		}},
	}, nil, clock)

	if _, err := agg.FetchAll(context.Background(), nil, nil); err != nil {
		t.Fatal(err)
	}

	active := agg.Active()
	if len(active) != 2 {
		t.Fatalf("expected 2 active alerts, got %d", len(active))
	}
	for _, alert := range active {
		if alert.ID == "weather_gone" {
			t.Error("expired alert reported active")
		}
	}
}

func TestSubscribe_NotifiedOnRefreshAndReadMutation(t *testing.T) {
	now := time.Now()
	agg := newTestAggregator(t, []source.Adapter{
		&stubAdapter{src: models.SourceSeismic, alerts: []models.Alert{seismicAlert("a", now)}},
	}, nil, nil)

	id, ch := agg.Subscribe()
	defer agg.Unsubscribe(id)

	if _, err := agg.FetchAll(context.Background(), nil, nil); err != nil {
		t.Fatal(err)
	}

	select {
	case alerts := <-ch:
		if len(alerts) != 1 {
			t.Errorf("expected snapshot with 1 alert, got %d", len(alerts))
		}
	case <-time.After(time.Second):
		t.Fatal("no notification after FetchAll")
	}

	agg.MarkRead(context.Background(), "seismic_a")

	select {
	case alerts := <-ch:
		if !alerts[0].IsRead {
			t.Error("notification snapshot missing read mutation")
		}
	case <-time.After(time.Second):
		t.Fatal("no notification after MarkRead")
	}
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	agg := newTestAggregator(t, nil, nil, nil)

	id, _ := agg.Subscribe()
	agg.Unsubscribe(id)
	agg.Unsubscribe(id) // second call is a no-op
}

func TestStatistics(t *testing.T) {
	now := time.Now()
	agg := newTestAggregator(t, []source.Adapter{
		&stubAdapter{src: models.SourceSeismic, alerts: []models.Alert{seismicAlert("a", now), seismicAlert("b", now)}},
		&stubAdapter{src: models.SourceWeather, alerts: []models.Alert{weatherAlert("c", now)}},
	}, nil, nil)

	if _, err := agg.FetchAll(context.Background(), nil, nil); err != nil {
		t.Fatal(err)
	}
	agg.MarkRead(context.Background(), "weather_c")

	stats := agg.Statistics()
	if stats.Total != 3 || stats.Active != 3 || stats.Unread != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.BySource[models.SourceSeismic] != 2 || stats.BySource[models.SourceWeather] != 1 {
		t.Errorf("bySource wrong: %+v", stats.BySource)
	}
	if stats.BySeverity[models.SeverityModerate] != 2 || stats.BySeverity[models.SeverityHigh] != 1 {
		t.Errorf("bySeverity wrong: %+v", stats.BySeverity)
	}
}

func TestFetchAll_ConcurrentCallsJoin(t *testing.T) {
	now := time.Now()
	adapter := &stubAdapter{
		src:    models.SourceSeismic,
		alerts: []models.Alert{seismicAlert("a", now)},
		delay:  100 * time.Millisecond,
	}
	agg := newTestAggregator(t, []source.Adapter{adapter}, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := agg.FetchAll(context.Background(), nil, nil); err != nil {
				t.Errorf("FetchAll failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if calls := adapter.calls.Load(); calls != 1 {
		t.Errorf("expected concurrent identical calls to join one fetch, adapter saw %d", calls)
	}
}
