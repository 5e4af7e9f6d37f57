package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avenlake/hazardwatch/internal/aggregator"
	"github.com/avenlake/hazardwatch/internal/models"
	"github.com/avenlake/hazardwatch/internal/repository"
)

// Feed is the aggregator surface the API exposes to callers.
type Feed interface {
	FetchAll(ctx context.Context, loc *models.Coordinates, sources []models.Source) ([]models.Alert, error)
	Filter(criteria aggregator.FilterCriteria) []models.Alert
	Active() []models.Alert
	MarkRead(ctx context.Context, id string)
	MarkAllRead(ctx context.Context)
	Statistics() aggregator.Stats
}

// VerifyRunner triggers one safety verification cycle.
type VerifyRunner interface {
	RunCycle(ctx context.Context) ([]models.StatusUpdate, error)
}

type Handler struct {
	feed     Feed
	verify   VerifyRunner
	entities repository.EntityStore
	admin    repository.AdminAlertStore
}

func NewHandler(feed Feed, verify VerifyRunner, entities repository.EntityStore, admin repository.AdminAlertStore) *Handler {
	return &Handler{
		feed:     feed,
		verify:   verify,
		entities: entities,
		admin:    admin,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	r.GET("/api/alerts", h.getAlerts)
	r.GET("/api/alerts/active", h.getActiveAlerts)
	r.GET("/api/alerts/stats", h.getStats)
	r.GET("/api/alerts/geojson", h.getAlertsGeoJSON)
	r.POST("/api/alerts/refresh", h.refreshAlerts)
	r.POST("/api/alerts/:id/read", h.markRead)
	r.POST("/api/alerts/read-all", h.markAllRead)

	r.GET("/api/members", h.listMembers)
	r.POST("/api/members", h.createMember)
	r.PUT("/api/members/:id/location", h.updateMemberLocation)

	r.POST("/api/admin-alerts", h.createAdminAlert)
	r.POST("/api/verify", h.runVerification)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) getAlerts(c *gin.Context) {
	criteria := aggregator.FilterCriteria{
		Area: c.Query("area"),
	}

	if s := c.Query("source"); s != "" {
		for _, part := range strings.Split(s, ",") {
			criteria.Sources = append(criteria.Sources, models.Source(strings.ToUpper(strings.TrimSpace(part))))
		}
	}
	if s := c.Query("severity"); s != "" {
		for _, part := range strings.Split(s, ",") {
			criteria.Severities = append(criteria.Severities, models.ParseSeverity(part))
		}
	}
	if s := c.Query("minSeverity"); s != "" {
		criteria.MinSeverity = models.ParseSeverity(s)
	}
	if s := c.Query("since"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be YYYY-MM-DD"})
			return
		}
		criteria.Since = &t
	}
	if s := c.Query("until"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "until must be YYYY-MM-DD"})
			return
		}
		criteria.Until = &t
	}
	if s := c.Query("unread"); s != "" {
		unread := s == "true" || s == "1"
		criteria.Unread = &unread
	}

	c.JSON(http.StatusOK, gin.H{"alerts": h.feed.Filter(criteria)})
}

func (h *Handler) getActiveAlerts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alerts": h.feed.Active()})
}

func (h *Handler) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.feed.Statistics())
}

func (h *Handler) getAlertsGeoJSON(c *gin.Context) {
	fc := toGeoJSON(h.feed.Active())
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, fc)
}

type refreshRequest struct {
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
	Sources []string `json:"sources"`
}

func (h *Handler) refreshAlerts(c *gin.Context) {
	// An empty body means "refresh everything".
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var loc *models.Coordinates
	if req.Lat != nil && req.Lon != nil {
		loc = &models.Coordinates{Latitude: *req.Lat, Longitude: *req.Lon}
	}

	var sources []models.Source
	for _, s := range req.Sources {
		sources = append(sources, models.Source(strings.ToUpper(strings.TrimSpace(s))))
	}

	alerts, err := h.feed.FetchAll(c.Request.Context(), loc, sources)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to refresh alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (h *Handler) markRead(c *gin.Context) {
	h.feed.MarkRead(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) markAllRead(c *gin.Context) {
	h.feed.MarkAllRead(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) listMembers(c *gin.Context) {
	entities, err := h.entities.ListEntities(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list members"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": entities})
}

type createMemberRequest struct {
	DisplayName       string `json:"displayName" binding:"required"`
	RelationshipLabel string `json:"relationshipLabel"`
	Location          string `json:"location"`
}

func (h *Handler) createMember(c *gin.Context) {
	var req createMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entity := &models.TrackedEntity{
		ID:                uuid.NewString(),
		DisplayName:       req.DisplayName,
		RelationshipLabel: req.RelationshipLabel,
		Location:          req.Location,
		Status:            models.StatusUnknown,
		LastUpdated:       time.Now(),
	}

	if err := h.entities.AddEntity(c.Request.Context(), entity); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create member"})
		return
	}

	c.JSON(http.StatusCreated, entity)
}

type updateLocationRequest struct {
	Location string `json:"location" binding:"required"`
}

func (h *Handler) updateMemberLocation(c *gin.Context) {
	var req updateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.entities.UpdateLocation(c.Request.Context(), c.Param("id"), req.Location); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type createAdminAlertRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Severity    string   `json:"severity" binding:"required"`
	Priority    string   `json:"priority"`
	CreatedBy   string   `json:"createdBy"`
	Zones       []string `json:"zones"`
	ExpiresAt   *string  `json:"expiresAt"`
}

func (h *Handler) createAdminAlert(c *gin.Context) {
	var req createAdminAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec := &repository.AdminAlertRecord{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Severity:    models.ParseSeverity(req.Severity),
		Priority:    req.Priority,
		CreatedBy:   req.CreatedBy,
		Zones:       req.Zones,
		CreatedAt:   time.Now(),
	}
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expiresAt must be RFC3339"})
			return
		}
		rec.ExpiresAt = &t
	}

	if err := h.admin.AddAdminAlert(c.Request.Context(), rec); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create alert"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": rec.ID})
}

func (h *Handler) runVerification(c *gin.Context) {
	updates, err := h.verify.RunCycle(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"updates": updates})
}
