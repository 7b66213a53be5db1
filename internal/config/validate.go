package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // scheduler.timezone must resolve on hosts without zoneinfo

	logx "duyurubot/pkg/logx"
)

// Validate checks everything that can be checked without the runtime
// registries. Scraper kinds and Telegram destinations are checked by the app.
// All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		add(errors.New("telegram.token is required"))
	}
	if cfg.Telegram.RatePerSec < 0 {
		add(errors.New("telegram.rate_per_sec must be >= 0"))
	}
	if cfg.Telegram.ExcerptChars < 0 {
		add(errors.New("telegram.excerpt_chars must be >= 0"))
	}
	if cfg.Logging.Telegram.Enabled && strings.TrimSpace(cfg.Telegram.LogChat) == "" {
		add(errors.New("logging.telegram.enabled requires telegram.log_chat"))
	}
	if lvl := strings.TrimSpace(cfg.Logging.Level); lvl != "" && !logx.ValidLevel(lvl) {
		add(fmt.Errorf("logging.level: unknown level %q", lvl))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "sqlite", "sqlite3":
	default:
		add(fmt.Errorf("storage.driver: unsupported driver %q", cfg.Storage.Driver))
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		add(errors.New("storage.path is required"))
	}
	switch strings.ToUpper(strings.TrimSpace(cfg.Storage.Synchronous)) {
	case "", "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		add(fmt.Errorf("storage.synchronous: unknown mode %q", cfg.Storage.Synchronous))
	}

	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add(fmt.Errorf("scheduler.timezone: %w", err))
		}
	}

	for path, raw := range map[string]string{
		"telegram.send_timeout":       cfg.Telegram.SendTimeout,
		"storage.busy_timeout":        cfg.Storage.BusyTimeout,
		"scheduler.initial_delay":     cfg.Scheduler.InitialDelay,
		"scheduler.initial_stagger":   cfg.Scheduler.InitialStagger,
		"task_engine.default_timeout": cfg.TaskEngine.DefaultTimeout,
		"task_engine.max_queue_delay": cfg.TaskEngine.MaxQueueDelay,
		"http.timeout":                cfg.HTTP.Timeout,
		"http.retry_delay":            cfg.HTTP.RetryDelay,
		"http.request_delay":          cfg.HTTP.RequestDelay,
		"shutdown.timeout":            cfg.Shutdown.Timeout,
		"shutdown.poll_drain":         cfg.Shutdown.PollDrain,
	} {
		_, err := ParseDurationField(path, raw)
		add(err)
	}

	if cfg.Logging.File.MaxBackups < 0 {
		add(errors.New("logging.file.max_backups must be >= 0"))
	}
	if cfg.TaskEngine.Retries() < 0 {
		add(errors.New("task_engine.retry_max must be >= 0"))
	}
	if cfg.HTTP.Retries() < 0 {
		add(errors.New("http.max_retries must be >= 0"))
	}
	add(validatePolling(cfg.Polling))
	errs = append(errs, validateSites(cfg.Sites)...)

	return errors.Join(errs...)
}

func validatePolling(p PollingConfig) error {
	fetch, send, steady, recent := p.Limits()
	switch {
	case fetch < 1:
		return fmt.Errorf("polling.bootstrap_fetch_limit must be >= 1 (got %d)", fetch)
	case send < 0 || steady < 0 || recent < 0:
		return errors.New("polling limits must be >= 0")
	case send > fetch:
		return fmt.Errorf("polling.bootstrap_send_limit (%d) must be <= bootstrap_fetch_limit (%d)", send, fetch)
	case steady > fetch:
		return fmt.Errorf("polling.steady_check_window (%d) must be <= bootstrap_fetch_limit (%d)", steady, fetch)
	case recent > steady:
		return fmt.Errorf("polling.recent_detail_window (%d) must be <= steady_check_window (%d)", recent, steady)
	}
	return nil
}

func validateSites(sites []SiteConfig) []error {
	var errs []error
	if len(sites) == 0 {
		return []error{errors.New("sites: at least one site is required")}
	}
	seen := map[string]bool{}
	for i, s := range sites {
		at := fmt.Sprintf("sites[%d]", i)
		name := strings.TrimSpace(s.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", at))
		} else {
			at = fmt.Sprintf("sites[%s]", name)
			if seen[name] {
				errs = append(errs, fmt.Errorf("%s: duplicate site name", at))
			}
			seen[name] = true
		}
		u, err := url.Parse(strings.TrimSpace(s.URL))
		if err != nil || !u.IsAbs() || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s.url must be an absolute URL (got %q)", at, s.URL))
		}
		if !s.IsEnabled() {
			continue
		}
		if strings.TrimSpace(s.Destination) == "" {
			errs = append(errs, fmt.Errorf("%s.destination is required", at))
		}
		if strings.TrimSpace(s.Schedule) == "" && len(s.ScheduleMinutes) == 0 {
			errs = append(errs, fmt.Errorf("%s: schedule or schedule_minutes is required", at))
		}
	}
	return errs
}
