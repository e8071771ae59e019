package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const dateOnlyLayout = "2006-01-02"

var errInvalidTime = errors.New("invalid_time")

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseOptionalTime accepts RFC 3339 or a bare date. Bare dates resolve to
// the start of the day, or its last instant when endOfDay is set.
func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &parsed, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		if endOfDay {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
		} else {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		}
		return &parsed, nil
	}
	return nil, errInvalidTime
}

// parseTimeRange reads <prefix>_from and <prefix>_to from the query string.
func parseTimeRange(c *gin.Context, prefix string) (*time.Time, *time.Time, error) {
	from, err := parseOptionalTime(c.Query(prefix+"_from"), false)
	if err != nil {
		return nil, nil, newValidationError(prefix+"_from", "invalid_time", "invalid time")
	}
	to, err := parseOptionalTime(c.Query(prefix+"_to"), true)
	if err != nil {
		return nil, nil, newValidationError(prefix+"_to", "invalid_time", "invalid time")
	}
	return from, to, nil
}

func queryBool(c *gin.Context, key string) (bool, error) {
	value, err := parseOptionalBool(c.Query(key))
	if err != nil {
		return false, newValidationError(key, "invalid_"+key, "invalid "+key)
	}
	return value != nil && *value, nil
}

func writePDF(c *gin.Context, body []byte, filename string) {
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", body)
}
