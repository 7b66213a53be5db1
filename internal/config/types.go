package config

// Config is the whole on-disk configuration (config.yaml or config.json).
//
// All durations are Go duration strings ("500ms", "45s", "10m"). Pointer
// fields distinguish "omitted" (use the default) from an explicit zero.
type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	Logging    LoggingConfig    `json:"logging"`
	Storage    StorageConfig    `json:"storage"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	TaskEngine TaskEngineConfig `json:"task_engine"`
	Polling    PollingConfig    `json:"polling"`
	HTTP       HTTPConfig       `json:"http"`
	Shutdown   ShutdownConfig   `json:"shutdown"`
	Sites      []SiteConfig     `json:"sites"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// SendTimeout bounds one delivery end to end (queue wait plus API call).
	SendTimeout    string  `json:"send_timeout,omitempty"`
	RatePerSec     float64 `json:"rate_per_sec,omitempty"`
	ExcerptChars   int     `json:"excerpt_chars,omitempty"`
	DisablePreview bool    `json:"disable_preview,omitempty"`
	// LogChat receives forwarded log lines when logging.telegram is enabled.
	LogChat string `json:"log_chat,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

// LoggingFile rotates the log at local midnight and keeps MaxBackups old
// files (default 30).
type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxBackups int    `json:"max_backups,omitempty"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig selects the record store.
//
//	storage: { driver: sqlite, path: data/duyurular.db, busy_timeout: "5s" }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
	MaxConns    int    `json:"max_conns,omitempty"`
	Synchronous string `json:"synchronous,omitempty"` // OFF | NORMAL | FULL | EXTRA
}

// SchedulerConfig controls triggers. Enabled defaults to true.
type SchedulerConfig struct {
	Enabled        *bool  `json:"enabled,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
	InitialDelay   string `json:"initial_delay,omitempty"`
	InitialStagger string `json:"initial_stagger,omitempty"`
}

func (c SchedulerConfig) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// TaskEngineConfig controls poll execution.
//
// Defaults: workers 4, queue_size 64, default_timeout "10m", max_queue_delay "0s"
// (disabled), history_size 200, retry_max 2.
type TaskEngineConfig struct {
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	MaxQueueDelay  string `json:"max_queue_delay,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
	// RetryMax bounds extra attempts of a poll that could not reach the store.
	RetryMax *int `json:"retry_max,omitempty"`
}

func (c TaskEngineConfig) Retries() int { return intOr(c.RetryMax, 2) }

// PollingConfig bounds reconciliation work. See poll.Policy.
type PollingConfig struct {
	BootstrapFetchLimit *int `json:"bootstrap_fetch_limit,omitempty"`
	BootstrapSendLimit  *int `json:"bootstrap_send_limit,omitempty"`
	SteadyCheckWindow   *int `json:"steady_check_window,omitempty"`
	RecentDetailWindow  *int `json:"recent_detail_window,omitempty"`
}

// Limits returns the effective values in field order, defaults applied.
func (c PollingConfig) Limits() (fetch, send, steady, recent int) {
	return intOr(c.BootstrapFetchLimit, 30),
		intOr(c.BootstrapSendLimit, 1),
		intOr(c.SteadyCheckWindow, 20),
		intOr(c.RecentDetailWindow, 5)
}

type HTTPConfig struct {
	Timeout      string `json:"timeout,omitempty"`
	MaxRetries   *int   `json:"max_retries,omitempty"`
	RetryDelay   string `json:"retry_delay,omitempty"`
	RequestDelay string `json:"request_delay,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`
}

func (c HTTPConfig) Retries() int { return intOr(c.MaxRetries, 3) }

type ShutdownConfig struct {
	Timeout   string `json:"timeout,omitempty"`
	PollDrain string `json:"poll_drain,omitempty"`
}

// SiteConfig is one polled announcement source.
type SiteConfig struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Kind        string `json:"kind,omitempty"` // scraper kind; default bseu_list
	Destination string `json:"destination"`
	// ScheduleMinutes lists clock minutes to poll at every hour, e.g. ["01", "31"].
	ScheduleMinutes []string `json:"schedule_minutes,omitempty"`
	// Schedule overrides ScheduleMinutes with a cron expression or interval.
	Schedule string `json:"schedule,omitempty"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

func (s SiteConfig) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

func (s SiteConfig) KindOrDefault() string {
	if s.Kind == "" {
		return DefaultSiteKind
	}
	return s.Kind
}

// DefaultSiteKind is the scraper kind used when a site omits kind.
const DefaultSiteKind = "bseu_list"

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
