package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tariffsync/tariff-service/internal/parsers/schedule"
	"github.com/tariffsync/tariff-service/internal/tariff"
)

// Defaults for dynamic compilation (initialized by the application)
var (
	dynamicMeta = tariff.DocumentMeta{Name: "Dynamic", Code: "TARIFF_SYNC:DYNAMIC"}
	dynamicOpts tariff.DynamicOptions
)

// InitCompile sets the document metadata and options used by the dynamic
// compile endpoint
func InitCompile(meta tariff.DocumentMeta, opts tariff.DynamicOptions) {
	dynamicMeta = meta
	dynamicOpts = opts
}

// CompileResponse is a compiled document plus its fingerprint
type CompileResponse struct {
	Fingerprint string                 `json:"fingerprint"`
	Document    *tariff.TariffDocument `json:"document"`
}

// ValidateResponse reports a schedule that compiled cleanly
type ValidateResponse struct {
	Valid       bool   `json:"valid"`
	Seasons     int    `json:"seasons"`
	Fingerprint string `json:"fingerprint"`
}

// DynamicRequest is a price feed to compile into a rolling grid
type DynamicRequest struct {
	Now                time.Time        `json:"now" binding:"required"`
	Timezone           string           `json:"timezone"`
	AdvanceNoticeSlots *int             `json:"advanceNoticeSlots"`
	Override           string           `json:"override"`
	Feed               tariff.PriceFeed `json:"feed"`
}

// DynamicResponse is a compiled dynamic document with feed statistics
type DynamicResponse struct {
	CompileResponse
	TomorrowSlots int `json:"tomorrowSlots"`
	PartialSlots  int `json:"partialSlots"`
	ClampedSlots  int `json:"clampedSlots"`
}

func bindSchedule(c *gin.Context) (schedule.File, bool) {
	var f schedule.File
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule: " + err.Error()})
		return f, false
	}
	return f, true
}

// CompileStatic handles POST /internal/compile/static
func CompileStatic(c *gin.Context) {
	f, ok := bindSchedule(c)
	if !ok {
		return
	}
	doc, _, err := f.Compile()
	if err != nil {
		respondCompileError(c, err)
		return
	}
	c.JSON(http.StatusOK, CompileResponse{Fingerprint: tariff.Fingerprint(doc), Document: doc})
}

// ValidateSchedule handles POST /internal/compile/validate
func ValidateSchedule(c *gin.Context) {
	f, ok := bindSchedule(c)
	if !ok {
		return
	}
	if err := f.Validate(); err != nil {
		respondCompileError(c, err)
		return
	}
	doc, seasons, err := f.Compile()
	if err != nil {
		respondCompileError(c, err)
		return
	}
	c.JSON(http.StatusOK, ValidateResponse{
		Valid:       true,
		Seasons:     len(seasons),
		Fingerprint: tariff.Fingerprint(doc),
	})
}

// PreviewSchedule handles POST /internal/compile/preview
func PreviewSchedule(c *gin.Context) {
	f, ok := bindSchedule(c)
	if !ok {
		return
	}
	s, err := f.ToSchedule()
	if err != nil {
		respondCompileError(c, err)
		return
	}
	c.JSON(http.StatusOK, tariff.PreviewSchedule(s))
}

// CompileDynamic handles POST /internal/compile/dynamic
func CompileDynamic(c *gin.Context) {
	var req DynamicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := dynamicOpts
	if req.Timezone != "" {
		loc, err := time.LoadLocation(req.Timezone)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown timezone: " + req.Timezone})
			return
		}
		opts.Location = loc
	}
	if req.AdvanceNoticeSlots != nil {
		opts.AdvanceNoticeSlots = *req.AdvanceNoticeSlots
	}
	mode, err := tariff.ParseOverrideMode(req.Override)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := tariff.CompileDynamic(req.Now, req.Feed, opts)
	if err != nil {
		respondCompileError(c, err)
		return
	}
	doc, err := tariff.DynamicDocument(tariff.OverrideMeta(dynamicMeta, mode), tariff.ApplyOverride(result.Grid, mode))
	if err != nil {
		respondCompileError(c, err)
		return
	}
	c.JSON(http.StatusOK, DynamicResponse{
		CompileResponse: CompileResponse{Fingerprint: tariff.Fingerprint(doc), Document: doc},
		TomorrowSlots:   result.TomorrowSlots(),
		PartialSlots:    result.PartialSlots(),
		ClampedSlots:    result.ClampedSlots(),
	})
}

// DecodeDocument handles POST /internal/compile/decode, turning a tariff
// document back into an editable schedule
func DecodeDocument(c *gin.Context) {
	var doc tariff.TariffDocument
	if err := c.ShouldBindJSON(&doc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document: " + err.Error()})
		return
	}
	s, err := tariff.DocumentSchedule(&doc)
	if err != nil {
		respondCompileError(c, err)
		return
	}
	c.JSON(http.StatusOK, schedule.FromSchedule(s))
}
