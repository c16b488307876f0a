package handlers

import (
	"errors"
	"io"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/tariffsync/tariff-service/internal/database"
	"github.com/tariffsync/tariff-service/internal/parsers/schedule"
	"github.com/tariffsync/tariff-service/internal/tariff"
)

const maxImportSize = 5 << 20

var scheduleIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ListSchedulesResponse wraps the stored schedules
type ListSchedulesResponse struct {
	Schedules []database.Schedule `json:"schedules"`
	Total     int                 `json:"total"`
}

func requireStore(c *gin.Context) bool {
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not configured"})
		return false
	}
	return true
}

func scheduleID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !scheduleIDPattern.MatchString(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule id"})
		return "", false
	}
	return id, true
}

func respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// ListSchedules handles GET /internal/schedules
func ListSchedules(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	schedules, err := store.ListSchedules(c.Request.Context())
	if err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListSchedulesResponse{Schedules: schedules, Total: len(schedules)})
}

// GetSchedule handles GET /internal/schedules/:id. With ?format=yaml the
// definition is returned as an editable YAML file.
func GetSchedule(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	id, ok := scheduleID(c)
	if !ok {
		return
	}
	sched, err := store.GetSchedule(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if c.Query("format") == "yaml" {
		body, err := schedule.MarshalYAML(sched.Definition)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/yaml", body)
		return
	}
	c.JSON(http.StatusOK, sched)
}

// GetScheduleDocument handles GET /internal/schedules/:id/document
func GetScheduleDocument(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	id, ok := scheduleID(c)
	if !ok {
		return
	}
	sched, err := store.GetSchedule(c.Request.Context(), id)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	doc, _, err := sched.Definition.Compile()
	if err != nil {
		respondCompileError(c, err)
		return
	}
	c.JSON(http.StatusOK, CompileResponse{Fingerprint: tariff.Fingerprint(doc), Document: doc})
}

// save compiles the definition and stores it only when it is valid
func save(c *gin.Context, id string, f schedule.File) {
	if _, _, err := f.Compile(); err != nil {
		respondCompileError(c, err)
		return
	}
	sched := &database.Schedule{ID: id, Name: f.Name, Definition: f}
	if err := store.SaveSchedule(c.Request.Context(), sched); err != nil {
		respondStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, sched)
}

// PutSchedule handles PUT /internal/schedules/:id
func PutSchedule(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	id, ok := scheduleID(c)
	if !ok {
		return
	}
	f, ok := bindSchedule(c)
	if !ok {
		return
	}
	save(c, id, f)
}

// ImportSchedule handles POST /internal/schedules/:id/import. The schedule
// is read from a multipart "file" field or from the raw body, as YAML, JSON
// or an xlsx workbook.
func ImportSchedule(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	id, ok := scheduleID(c)
	if !ok {
		return
	}

	var (
		content  []byte
		filename = c.Query("filename")
		err      error
	)
	if fh, ferr := c.FormFile("file"); ferr == nil {
		if fh.Size > maxImportSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		filename = fh.Filename
		f, oerr := fh.Open()
		if oerr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": oerr.Error()})
			return
		}
		defer f.Close()
		content, err = io.ReadAll(f)
	} else {
		content, err = io.ReadAll(io.LimitReader(c.Request.Body, maxImportSize+1))
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(content) > maxImportSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	if len(content) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty schedule"})
		return
	}

	f, err := schedule.Parse(content, filename)
	if err != nil {
		if isTariffError(err) {
			respondCompileError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	save(c, id, f)
}

// DeleteSchedule handles DELETE /internal/schedules/:id
func DeleteSchedule(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	id, ok := scheduleID(c)
	if !ok {
		return
	}
	if err := store.DeleteSchedule(c.Request.Context(), id); err != nil {
		respondStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
