package client

import (
	"fmt"
	"time"
)

// Status mirrors the daemon's per-profile status document.
type Status struct {
	ProfileID string    `json:"profile_id"`
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	LogPath   string    `json:"log_path,omitempty"`
	Note      string    `json:"note,omitempty"`
	Stats     *Stats    `json:"stats,omitempty"`
}

// Stats is the optional resource sample attached to a running status.
type Stats struct {
	RSSBytes   uint64    `json:"rss_bytes"`
	CPUPercent float64   `json:"cpu_percent"`
	StartedAt  time.Time `json:"started_at"`
}

// ErrorResponse is the body of every non-2xx API reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// APIError is returned when the daemon answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

type pidResp struct {
	PID int `json:"pid"`
}

type pathResp struct {
	Path string `json:"path"`
}
