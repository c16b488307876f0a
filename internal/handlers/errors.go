package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tariffsync/tariff-service/internal/parsers/schedule"
	"github.com/tariffsync/tariff-service/internal/tariff"
)

// Violation is one problem found while compiling or validating a tariff
type Violation struct {
	Type    string   `json:"type" jsonschema:"enum=gap,enum=overlap,enum=season_overlap,enum=invalid_rate,enum=invalid_rule,enum=calendar,enum=stale_data,enum=misaligned_time,enum=field,enum=other"`
	Message string   `json:"message" jsonschema:"required"`
	Season  string   `json:"season,omitempty"`
	Rule    string   `json:"rule,omitempty"`
	Path    string   `json:"path,omitempty"`
	Where   []string `json:"where,omitempty"`
	Reasons []string `json:"reasons,omitempty"`
}

// ViolationsResponse is the 422 body for a tariff that cannot be compiled
type ViolationsResponse struct {
	Error      string      `json:"error"`
	Violations []Violation `json:"violations"`
}

func rects(rs []tariff.Rect) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.String()
	}
	return out
}

// Violations flattens a compile or validation error into its violations
func Violations(err error) []Violation {
	if err == nil {
		return nil
	}
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		var out []Violation
		for _, e := range multi.Unwrap() {
			out = append(out, Violations(e)...)
		}
		return out
	}

	v := Violation{Type: "other", Message: err.Error()}
	var (
		gap        *tariff.GapError
		overlap    *tariff.OverlapError
		seasons    *tariff.SeasonOverlapError
		rate       *tariff.InvalidRateError
		rule       *tariff.InvalidRuleError
		calendar   *tariff.CalendarError
		stale      *tariff.StaleDataError
		misaligned *tariff.MisalignedTimeError
		field      *schedule.FieldError
		row        *schedule.RowError
	)
	switch {
	case errors.As(err, &gap):
		v.Type, v.Season, v.Where = "gap", gap.Season, rects(gap.Missing)
	case errors.As(err, &overlap):
		v.Type, v.Season, v.Rule = "overlap", overlap.Season, overlap.Rule1
	case errors.As(err, &seasons):
		v.Type, v.Season = "season_overlap", seasons.Season1
	case errors.As(err, &rate):
		v.Type, v.Season, v.Rule, v.Reasons, v.Where = "invalid_rate", rate.Season, rate.Rule, rate.Reasons, rects(rate.Where)
	case errors.As(err, &rule):
		v.Type, v.Season, v.Rule = "invalid_rule", rule.Season, rule.Rule
	case errors.As(err, &calendar):
		v.Type, v.Season = "calendar", calendar.Season
	case errors.As(err, &stale):
		v.Type = "stale_data"
	case errors.As(err, &field):
		v.Type, v.Path = "field", field.Path
	case errors.As(err, &row):
		v.Type, v.Path = "field", row.Sheet
	case errors.As(err, &misaligned):
		v.Type = "misaligned_time"
	case errors.Is(err, tariff.ErrNoSeasons):
		v.Type = "invalid_rule"
	}
	return []Violation{v}
}

// isTariffError reports whether err is a problem with the tariff itself
// rather than with the service
func isTariffError(err error) bool {
	for _, v := range Violations(err) {
		if v.Type != "other" {
			return true
		}
	}
	return false
}

// respondCompileError writes 422 for tariff problems and 500 otherwise
func respondCompileError(c *gin.Context, err error) {
	if !isTariffError(err) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusUnprocessableEntity, ViolationsResponse{
		Error:      err.Error(),
		Violations: Violations(err),
	})
}
