package handlers

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tariffsync/tariff-service/internal/database"
	"github.com/tariffsync/tariff-service/internal/storage"
	"github.com/tariffsync/tariff-service/internal/syncer"
	"github.com/tariffsync/tariff-service/internal/tariff"
)

// SyncResponse reports the outcome of a triggered sync cycle
type SyncResponse struct {
	Run        *database.SyncRun `json:"run"`
	Error      string            `json:"error,omitempty"`
	Violations []Violation       `json:"violations,omitempty"`
}

// ListSyncRunsResponse is a page of sync runs
type ListSyncRunsResponse struct {
	Runs   []database.SyncRun `json:"runs"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// OverrideRequest sets a manual override. ExpiresAt wins over TTLMinutes;
// with neither the override lasts until cleared.
type OverrideRequest struct {
	Mode       string     `json:"mode" binding:"required"`
	ExpiresAt  *time.Time `json:"expiresAt"`
	TTLMinutes int        `json:"ttlMinutes" binding:"min=0"`
}

func requireSync(c *gin.Context) bool {
	if syncService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sync not configured"})
		return false
	}
	return true
}

func knownTarget(c *gin.Context) (string, bool) {
	target := c.Param("target")
	if syncService != nil && !slices.Contains(syncService.Targets(), target) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown sync target: " + target})
		return "", false
	}
	return target, true
}

// ListTargets handles GET /internal/sync/targets
func ListTargets(c *gin.Context) {
	if !requireSync(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"targets": syncService.Targets()})
}

// TriggerSync handles POST /internal/sync/:target
func TriggerSync(c *gin.Context) {
	if !requireSync(c) {
		return
	}
	run, err := syncService.Trigger(c.Request.Context(), c.Param("target"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, SyncResponse{Run: run})
	case errors.Is(err, syncer.ErrUnknownTarget):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, syncer.ErrInFlight), errors.Is(err, syncer.ErrLocked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case run == nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	case isTariffError(err):
		c.JSON(http.StatusUnprocessableEntity, SyncResponse{Run: run, Error: err.Error(), Violations: Violations(err)})
	default:
		// the run was recorded but the feed or controller failed
		c.JSON(http.StatusBadGateway, SyncResponse{Run: run, Error: err.Error()})
	}
}

// ListSyncRuns handles GET /internal/sync/runs
func ListSyncRuns(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be non-negative"})
		return
	}

	runs, err := store.ListSyncRuns(c.Request.Context(), c.Query("target"), limit, offset)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if runs == nil {
		runs = []database.SyncRun{}
	}
	c.JSON(http.StatusOK, ListSyncRunsResponse{Runs: runs, Limit: limit, Offset: offset})
}

// GetOverride handles GET /internal/sync/:target/override
func GetOverride(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	target, ok := knownTarget(c)
	if !ok {
		return
	}
	o, err := store.GetOverride(c.Request.Context(), target)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if !o.Active(now()) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active override"})
		return
	}
	c.JSON(http.StatusOK, o)
}

// SetOverride handles PUT /internal/sync/:target/override. The override
// applies from the target's next cycle.
func SetOverride(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	target, ok := knownTarget(c)
	if !ok {
		return
	}
	var req OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode, err := tariff.ParseOverrideMode(req.Mode)
	if err != nil || mode == tariff.OverrideNone {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be charge or discharge"})
		return
	}

	at := now()
	o := &database.Override{Target: target, Mode: string(mode), UpdatedAt: at}
	switch {
	case req.ExpiresAt != nil:
		if !req.ExpiresAt.After(at) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expiresAt must be in the future"})
			return
		}
		o.ExpiresAt = req.ExpiresAt
	case req.TTLMinutes > 0:
		exp := at.Add(time.Duration(req.TTLMinutes) * time.Minute)
		o.ExpiresAt = &exp
	}

	if err := store.SetOverride(c.Request.Context(), o); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// ClearOverride handles DELETE /internal/sync/:target/override
func ClearOverride(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	target, ok := knownTarget(c)
	if !ok {
		return
	}
	if err := store.ClearOverride(c.Request.Context(), target); err != nil {
		respondStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ArchiveResponse is an archived document with its record
type ArchiveResponse struct {
	Archive  *database.Archive      `json:"archive"`
	Document *tariff.TariffDocument `json:"document"`
}

// GetArchive handles GET /internal/sync/archives/:id
func GetArchive(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	if archives == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive storage not configured"})
		return
	}
	a, err := store.GetArchiveByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	doc, err := storage.LoadDocument(c.Request.Context(), archives, a.ArchivePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusGone, gin.H{"error": "archived document no longer stored"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ArchiveResponse{Archive: a, Document: doc})
}
