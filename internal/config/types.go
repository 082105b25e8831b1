package config

import (
	"errors"
	"fmt"
	"strings"
)

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Crawl     CrawlConfig     `json:"crawl"`
	SJR       SJRConfig       `json:"sjr,omitempty"`
	Export    ExportConfig    `json:"export"`
	Publish   PublishConfig   `json:"publish,omitempty"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
	Notify    *NotifyConfig   `json:"notify,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// SchedulerConfig controls the crawl trigger.
//
// Schedule accepts a cron expression ("0 */6 * * *"), a prefixed form
// ("cron:...", "interval:45m"), or a plain Go duration ("6h").
// All duration fields are Go duration strings (e.g. "10s", "1m").
type SchedulerConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"`
	Timezone string `json:"timezone,omitempty"`

	// RunTimeout bounds a full crawl run. Defaults to "10m".
	RunTimeout  string `json:"run_timeout,omitempty"`
	RetryMax    int    `json:"retry_max,omitempty"`
	HistorySize int    `json:"history_size,omitempty"`
}

// CrawlConfig controls the provider fetch layer.
type CrawlConfig struct {
	// Providers is the enabled provider set. Default: elsevier, wiley, mdpi.
	Providers []string `json:"providers,omitempty"`

	// MDPIJournals overrides the default MDPI journal slugs.
	MDPIJournals []string `json:"mdpi_journals,omitempty"`

	// SelectorSites configures the generic HTML card scraper.
	SelectorSites []SelectorSite `json:"selector_sites,omitempty"`

	// RatePerSec throttles outbound requests across all providers.
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	// Timeout is a Go duration string bounding each HTTP request.
	Timeout   string `json:"timeout,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	// InsecureRetry retries once with TLS verification disabled when a
	// certificate error occurs. Some publisher feeds sit behind broken
	// certificate chains.
	InsecureRetry bool `json:"insecure_retry"`
}

// SelectorSite declares one HTML source for the selector provider.
// Selector keys mirror the crawl site declarations: each selects within the
// card matched by list_selector.
type SelectorSite struct {
	Name             string `json:"name"`
	URL              string `json:"url"`
	ListSelector     string `json:"list_selector"`
	TitleSelector    string `json:"title_selector,omitempty"`
	JournalSelector  string `json:"journal_selector,omitempty"`
	LinkSelector     string `json:"link_selector,omitempty"`
	DeadlineSelector string `json:"deadline_selector,omitempty"`
}

type SJRConfig struct {
	Enabled bool `json:"enabled"`
}

type ExportConfig struct {
	// Path of the JSON export, relative to the working directory.
	Path string `json:"path"`
	// Pretty indents the export. The file is meant to be committed, so
	// readable diffs are usually worth the extra bytes.
	Pretty bool `json:"pretty,omitempty"`
}

// PublishConfig controls the auto-commit step.
type PublishConfig struct {
	Enabled       bool   `json:"enabled"`
	CommitMessage string `json:"commit_message,omitempty"`
	Push          bool   `json:"push,omitempty"`
	Remote        string `json:"remote,omitempty"`
	// WorkDir is the git repository root. Defaults to the export file's
	// directory.
	WorkDir string `json:"work_dir,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./cfpbot_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type NotifyConfig struct {
	Enabled    bool   `json:"enabled"`
	Token      string `json:"token"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	QueueSize  int    `json:"queue_size,omitempty"`
}

// Validate checks cross-field constraints that strict decoding can't catch.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Export.Path) == "" {
		return errors.New("export.path is required")
	}
	for _, field := range []struct {
		path string
		raw  string
	}{
		{"scheduler.run_timeout", c.Scheduler.RunTimeout},
		{"crawl.timeout", c.Crawl.Timeout},
	} {
		if _, err := ParseDurationField(field.path, field.raw); err != nil {
			return err
		}
	}
	if c.Storage != nil {
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	if c.Crawl.RatePerSec < 0 {
		return errors.New("crawl.rate_per_sec must be >= 0")
	}
	for i, s := range c.Crawl.SelectorSites {
		if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.URL) == "" {
			return fmt.Errorf("crawl.selector_sites[%d]: name and url are required", i)
		}
		if strings.TrimSpace(s.ListSelector) == "" {
			return fmt.Errorf("crawl.selector_sites[%d]: list_selector is required", i)
		}
	}
	if c.Notify != nil && c.Notify.Enabled {
		if strings.TrimSpace(c.Notify.Token) == "" {
			return errors.New("notify.token is required when notify is enabled")
		}
		if c.Notify.ChatID == 0 {
			return errors.New("notify.chat_id is required when notify is enabled")
		}
	}
	return nil
}
