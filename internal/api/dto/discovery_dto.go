package dto

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// TagSweepRequest payload for POST /discovery/tags.
type TagSweepRequest struct {
	Tags     []string        `json:"tags"`
	Days     json.RawMessage `json:"days" form:"-"`
	PerPage  int             `json:"perPage"`
	MaxPages int             `json:"maxPages"`
	Send     bool            `json:"send"`
}

// RecencyDays interprets the days field. Absent or null means the configured default;
// a number, or a string holding one, is used as given. Any other value disables the
// recency check instead of failing the request.
func (r TagSweepRequest) RecencyDays() *float64 {
	raw := bytes.TrimSpace(r.Days)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var days float64
	if err := json.Unmarshal(raw, &days); err == nil {
		return &days
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return &v
		}
	}
	days = math.NaN()
	return &days
}

// ShotsRequest payload for POST /discovery/shots.
type ShotsRequest struct {
	URLs []string `json:"urls"`
	Send bool     `json:"send"`
}
