package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

type Config struct {
	Driver string
	Path   string
	// BusyTimeout applies to the sqlite driver only.
	BusyTimeout time.Duration
}

// RunRecord is one crawl run, appended after the pipeline finishes.
type RunRecord struct {
	At         time.Time `json:"at"`
	Source     string    `json:"source"` // "schedule" | "manual" | "cli"
	OK         bool      `json:"ok"`
	Entries    int       `json:"entries"`
	NewEntries int       `json:"new_entries"`
	Changed    bool      `json:"changed"`
	Committed  bool      `json:"committed"`
	TookMS     int64     `json:"took_ms"`
	Error      string    `json:"error,omitempty"`
}
