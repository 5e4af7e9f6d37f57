// Package aggregator merges every enabled source adapter into one
// severity-ranked, recency-sorted alert feed with read/unread tracking
// and subscriber notification.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/avenlake/hazardwatch/internal/models"
	"github.com/avenlake/hazardwatch/internal/observability"
	"github.com/avenlake/hazardwatch/internal/repository"
	"github.com/avenlake/hazardwatch/internal/source"
)

// Aggregator owns the in-memory alert list for the process lifetime.
// State is replaced wholesale on each refresh; read-state is tracked in
// a separate id set so a refresh never resets an alert to unread.
type Aggregator struct {
	adapters     []source.Adapter
	readStore    repository.ReadStateStore
	clock        clockwork.Clock
	metrics      *observability.Metrics
	fetchTimeout time.Duration

	mu      sync.RWMutex
	alerts  []models.Alert
	readIDs map[string]struct{}

	broadcaster *Broadcaster
	flight      singleflight.Group
}

// New constructs an aggregator over the given adapters. The durable
// read-id set is loaded once here; a load failure degrades to an empty
// set rather than failing startup.
func New(ctx context.Context, adapters []source.Adapter, readStore repository.ReadStateStore, clock clockwork.Clock, metrics *observability.Metrics, fetchTimeout time.Duration) *Aggregator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	readIDs := make(map[string]struct{})
	if readStore != nil {
		ids, err := readStore.LoadReadIDs(ctx)
		if err != nil {
			slog.Error("failed to load read state, starting with empty set", "error", err)
		}
		for _, id := range ids {
			readIDs[id] = struct{}{}
		}
	}

	return &Aggregator{
		adapters:     adapters,
		readStore:    readStore,
		clock:        clock,
		metrics:      metrics,
		fetchTimeout: fetchTimeout,
		readIDs:      readIDs,
		broadcaster:  NewBroadcaster(),
	}
}

// FetchAll refreshes the feed from every enabled adapter, scoped to loc
// when provided and restricted to the given sources when non-empty.
// Adapter invocations run concurrently, each with its own timeout, and
// a failing adapter contributes zero alerts instead of aborting the
// cycle. Concurrent identical calls join one in-flight aggregation.
func (a *Aggregator) FetchAll(ctx context.Context, loc *models.Coordinates, sources []models.Source) ([]models.Alert, error) {
	key := flightKey(loc, sources)
	result, err, _ := a.flight.Do(key, func() (any, error) {
		return a.fetchAll(ctx, loc, sources), nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.Alert), nil
}

func (a *Aggregator) fetchAll(ctx context.Context, loc *models.Coordinates, sources []models.Source) []models.Alert {
	enabled := a.enabledAdapters(sources)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		merged []models.Alert
	)

	for _, adapter := range enabled {
		wg.Add(1)
		go func(adapter source.Adapter) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
			defer cancel()

			alerts, err := adapter.Fetch(fetchCtx, loc)
			if err != nil {
				slog.Error("adapter fetch failed", "source", adapter.Source(), "error", err)
				if a.metrics != nil {
					a.metrics.AdapterFailures.WithLabelValues(string(adapter.Source())).Inc()
				}
				return
			}

			mu.Lock()
			merged = append(merged, alerts...)
			mu.Unlock()
		}(adapter)
	}
	wg.Wait()

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})

	a.mu.Lock()
	for i := range merged {
		_, read := a.readIDs[merged[i].ID]
		merged[i].IsRead = read
	}
	a.alerts = merged
	snapshot := a.snapshotLocked()
	a.mu.Unlock()

	if a.metrics != nil {
		a.metrics.FetchCycles.Inc()
		a.updateGauges(snapshot)
	}

	a.broadcaster.Broadcast(snapshot)
	return snapshot
}

func (a *Aggregator) enabledAdapters(sources []models.Source) []source.Adapter {
	if len(sources) == 0 {
		return a.adapters
	}
	want := make(map[models.Source]struct{}, len(sources))
	for _, s := range sources {
		want[s] = struct{}{}
	}
	var enabled []source.Adapter
	for _, adapter := range a.adapters {
		if _, ok := want[adapter.Source()]; ok {
			enabled = append(enabled, adapter)
		}
	}
	return enabled
}

func flightKey(loc *models.Coordinates, sources []models.Source) string {
	var b strings.Builder
	if loc != nil {
		fmt.Fprintf(&b, "%.4f,%.4f", loc.Latitude, loc.Longitude)
	}
	sorted := make([]string, 0, len(sources))
	for _, s := range sources {
		sorted = append(sorted, string(s))
	}
	sort.Strings(sorted)
	b.WriteString("|")
	b.WriteString(strings.Join(sorted, ","))
	return b.String()
}

// FilterCriteria selects a subset of the current feed. Zero values
// match everything.
type FilterCriteria struct {
	Sources     []models.Source
	Severities  []models.Severity
	MinSeverity models.Severity // alerts below this tier are dropped
	Since       *time.Time
	Until       *time.Time
	Unread      *bool
	Area        string // case-insensitive substring over affected areas
}

// Filter applies the criteria to current state without mutating it.
func (a *Aggregator) Filter(criteria FilterCriteria) []models.Alert {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []models.Alert
	for _, alert := range a.alerts {
		if matches(&alert, &criteria) {
			out = append(out, alert)
		}
	}
	return out
}

func matches(alert *models.Alert, c *FilterCriteria) bool {
	if len(c.Sources) > 0 && !containsSource(c.Sources, alert.Source) {
		return false
	}
	if len(c.Severities) > 0 && !containsSeverity(c.Severities, alert.Severity) {
		return false
	}
	if c.MinSeverity != "" && !alert.Severity.AtLeast(c.MinSeverity) {
		return false
	}
	if c.Since != nil && alert.Timestamp.Before(*c.Since) {
		return false
	}
	if c.Until != nil && alert.Timestamp.After(*c.Until) {
		return false
	}
	if c.Unread != nil && alert.IsRead == *c.Unread {
		return false
	}
	if c.Area != "" {
		needle := strings.ToLower(c.Area)
		found := false
		for _, area := range alert.AffectedAreas {
			if strings.Contains(strings.ToLower(area), needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsSource(haystack []models.Source, s models.Source) bool {
	for _, h := range haystack {
		if h == s {
			return true
		}
	}
	return false
}

func containsSeverity(haystack []models.Severity, s models.Severity) bool {
	for _, h := range haystack {
		if h == s {
			return true
		}
	}
	return false
}

// Active returns alerts with no expiry or an expiry in the future.
func (a *Aggregator) Active() []models.Alert {
	now := a.clock.Now()

	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []models.Alert
	for _, alert := range a.alerts {
		if alert.Active(now) {
			out = append(out, alert)
		}
	}
	return out
}

// MarkRead marks one alert read. Idempotent; the read id is persisted
// durably and survives future refreshes that reintroduce the same id.
// A persistence failure is logged and in-memory state still advances.
func (a *Aggregator) MarkRead(ctx context.Context, id string) {
	a.mu.Lock()
	if _, already := a.readIDs[id]; already {
		a.mu.Unlock()
		return
	}
	a.readIDs[id] = struct{}{}
	for i := range a.alerts {
		if a.alerts[i].ID == id {
			a.alerts[i].IsRead = true
		}
	}
	snapshot := a.snapshotLocked()
	a.mu.Unlock()

	if a.readStore != nil {
		if err := a.readStore.SaveReadID(ctx, id); err != nil {
			slog.Error("failed to persist read id", "id", id, "error", err)
		}
	}

	if a.metrics != nil {
		a.updateGauges(snapshot)
	}
	a.broadcaster.Broadcast(snapshot)
}

// MarkAllRead marks every alert in the current feed read.
func (a *Aggregator) MarkAllRead(ctx context.Context) {
	a.mu.Lock()
	var newlyRead []string
	for i := range a.alerts {
		if !a.alerts[i].IsRead {
			a.alerts[i].IsRead = true
			newlyRead = append(newlyRead, a.alerts[i].ID)
		}
		a.readIDs[a.alerts[i].ID] = struct{}{}
	}
	snapshot := a.snapshotLocked()
	a.mu.Unlock()

	if len(newlyRead) == 0 {
		return
	}

	if a.readStore != nil {
		if err := a.readStore.SaveReadIDs(ctx, newlyRead); err != nil {
			slog.Error("failed to persist read ids", "count", len(newlyRead), "error", err)
		}
	}

	if a.metrics != nil {
		a.updateGauges(snapshot)
	}
	a.broadcaster.Broadcast(snapshot)
}

// Subscribe registers a feed listener. The returned channel receives a
// snapshot of the full list after every refresh and read-state change.
func (a *Aggregator) Subscribe() (uint64, <-chan []models.Alert) {
	return a.broadcaster.Subscribe()
}

// Unsubscribe removes a listener. Safe to call repeatedly.
func (a *Aggregator) Unsubscribe(id uint64) {
	a.broadcaster.Unsubscribe(id)
}

// Close shuts down all subscriber channels.
func (a *Aggregator) Close() {
	a.broadcaster.Close()
}

// Stats is a derived view over current state.
type Stats struct {
	Total      int                     `json:"total"`
	Active     int                     `json:"active"`
	Unread     int                     `json:"unread"`
	BySeverity map[models.Severity]int `json:"bySeverity"`
	BySource   map[models.Source]int   `json:"bySource"`
}

// Statistics summarizes the current feed.
func (a *Aggregator) Statistics() Stats {
	now := a.clock.Now()

	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := Stats{
		Total:      len(a.alerts),
		BySeverity: make(map[models.Severity]int),
		BySource:   make(map[models.Source]int),
	}
	for i := range a.alerts {
		alert := &a.alerts[i]
		stats.BySeverity[alert.Severity]++
		stats.BySource[alert.Source]++
		if alert.Active(now) {
			stats.Active++
		}
		if !alert.IsRead {
			stats.Unread++
		}
	}
	return stats
}

func (a *Aggregator) snapshotLocked() []models.Alert {
	snapshot := make([]models.Alert, len(a.alerts))
	copy(snapshot, a.alerts)
	return snapshot
}

func (a *Aggregator) updateGauges(snapshot []models.Alert) {
	unread := 0
	for i := range snapshot {
		if !snapshot[i].IsRead {
			unread++
		}
	}
	a.metrics.AlertsInFeed.Set(float64(len(snapshot)))
	a.metrics.UnreadAlerts.Set(float64(unread))
}
