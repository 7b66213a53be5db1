package app

import (
	"time"

	"duyurubot/internal/config"
	"duyurubot/internal/delivery"
	"duyurubot/internal/poll"
	"duyurubot/internal/scraper"
	"duyurubot/internal/storage"
	"duyurubot/internal/task/engine"
	"duyurubot/internal/task/scheduler"
	"duyurubot/internal/transport/telegram"
	logx "duyurubot/pkg/logx"
)

// Defaults for durations the config may omit.
const (
	defaultSendTimeout    = 45 * time.Second
	defaultBusyTimeout    = 5 * time.Second
	defaultPollTimeout    = 10 * time.Minute
	defaultHTTPTimeout    = 30 * time.Second
	defaultRetryDelay     = 5 * time.Second
	defaultRequestDelay   = 500 * time.Millisecond
	defaultInitialDelay   = 2 * time.Second
	defaultInitialStagger = 5 * time.Second
	defaultShutdown       = 45 * time.Second
	defaultPollDrain      = 20 * time.Second
)

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled:    cfg.Logging.File.Enabled,
			Path:       cfg.Logging.File.Path,
			MaxBackups: cfg.Logging.File.MaxBackups,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, defaultBusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
		MaxConns:    cfg.Storage.MaxConns,
		Synchronous: cfg.Storage.Synchronous,
	}, nil
}

func mapTelegramConfig(cfg *config.Config) (telegram.Config, error) {
	send, err := config.ParseDurationOrDefault("telegram.send_timeout", cfg.Telegram.SendTimeout, defaultSendTimeout)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:          cfg.Telegram.Token,
		SendTimeout:    send,
		DisablePreview: cfg.Telegram.DisablePreview,
		ExcerptChars:   cfg.Telegram.ExcerptChars,
		LogChat:        cfg.Telegram.LogChat,
	}, nil
}

// mapDeliveryConfig bounds a whole delivery (queue wait included) by the same
// send_timeout as the API call.
func mapDeliveryConfig(cfg *config.Config) (delivery.Config, error) {
	send, err := config.ParseDurationOrDefault("telegram.send_timeout", cfg.Telegram.SendTimeout, defaultSendTimeout)
	if err != nil {
		return delivery.Config{}, err
	}
	return delivery.Config{
		Enabled:    true,
		Timeout:    send,
		RatePerSec: cfg.Telegram.RatePerSec,
	}, nil
}

func mapFetcherConfig(cfg *config.Config) (scraper.FetcherConfig, error) {
	timeout, err := config.ParseDurationOrDefault("http.timeout", cfg.HTTP.Timeout, defaultHTTPTimeout)
	if err != nil {
		return scraper.FetcherConfig{}, err
	}
	retryDelay, err := config.ParseDurationOrDefault("http.retry_delay", cfg.HTTP.RetryDelay, defaultRetryDelay)
	if err != nil {
		return scraper.FetcherConfig{}, err
	}
	requestDelay, err := config.ParseDurationOrDefault("http.request_delay", cfg.HTTP.RequestDelay, defaultRequestDelay)
	if err != nil {
		return scraper.FetcherConfig{}, err
	}
	return scraper.FetcherConfig{
		Timeout:      timeout,
		MaxRetries:   cfg.HTTP.Retries(),
		RetryDelay:   retryDelay,
		RequestDelay: requestDelay,
		UserAgent:    cfg.HTTP.UserAgent,
	}, nil
}

func mapPolicy(cfg *config.Config) poll.Policy {
	fetch, send, steady, recent := cfg.Polling.Limits()
	return poll.Policy{
		BootstrapFetchLimit: fetch,
		BootstrapSendLimit:  send,
		SteadyCheckWindow:   steady,
		RecentDetailWindow:  recent,
	}
}

func mapTaskEngineConfig(cfg *config.Config) (engine.Config, error) {
	te := cfg.TaskEngine
	defTimeout, err := config.ParseDurationOrDefault("task_engine.default_timeout", te.DefaultTimeout, defaultPollTimeout)
	if err != nil {
		return engine.Config{}, err
	}
	maxQueueDelay, err := config.ParseDurationField("task_engine.max_queue_delay", te.MaxQueueDelay)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Enabled:        true,
		Workers:        te.Workers,
		QueueSize:      te.QueueSize,
		DefaultTimeout: defTimeout,
		MaxQueueDelay:  maxQueueDelay,
		HistorySize:    te.HistorySize,
		RetryMax:       te.Retries(),
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Enabled:  cfg.Scheduler.IsEnabled(),
		Timezone: cfg.Scheduler.Timezone,
	}
}

// initialTiming returns the delay before the first site's initial poll and the
// gap between consecutive sites.
func initialTiming(cfg *config.Config) (delay, stagger time.Duration, err error) {
	delay, err = config.ParseDurationOrDefault("scheduler.initial_delay", cfg.Scheduler.InitialDelay, defaultInitialDelay)
	if err != nil {
		return 0, 0, err
	}
	stagger, err = config.ParseDurationOrDefault("scheduler.initial_stagger", cfg.Scheduler.InitialStagger, defaultInitialStagger)
	if err != nil {
		return 0, 0, err
	}
	return delay, stagger, nil
}

// shutdownTiming returns the overall stop limit and the poll drain bound.
// Invalid values fall back to defaults; Validate has already rejected them.
func shutdownTiming(cfg *config.Config) (total, drain time.Duration) {
	total, err := config.ParseDurationOrDefault("shutdown.timeout", cfg.Shutdown.Timeout, defaultShutdown)
	if err != nil {
		total = defaultShutdown
	}
	drain, err = config.ParseDurationOrDefault("shutdown.poll_drain", cfg.Shutdown.PollDrain, defaultPollDrain)
	if err != nil {
		drain = defaultPollDrain
	}
	return total, drain
}
