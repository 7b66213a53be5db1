package config

import (
	"reflect"
	"strings"

	logx "duyurubot/pkg/logx"
)

// Change describes what differs between two configs.
type Change struct {
	// Sections lists every changed top-level section.
	Sections []string
	// Restart lists changed sections that only take effect after a restart.
	Restart []string
	// Fields are safe log attributes; secrets are never included.
	Fields []logx.Field
}

func (c Change) Empty() bool { return len(c.Sections) == 0 }

func (c Change) Has(section string) bool {
	for _, s := range c.Sections {
		if s == section {
			return true
		}
	}
	return false
}

// liveSections apply without a restart.
var liveSections = map[string]bool{
	"logging":     true,
	"scheduler":   true, // timezone only; site schedules are registered once
	"shutdown":    true,
	"task_engine": true, // pool size changes still wait for a restart
}

// SummarizeConfigChange compares two configs section by section.
func SummarizeConfigChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change
	mark := func(section string, fields ...logx.Field) {
		ch.Sections = append(ch.Sections, section)
		if !liveSections[section] {
			ch.Restart = append(ch.Restart, section)
		}
		ch.Fields = append(ch.Fields, fields...)
	}

	// Never log the token, only whether it changed.
	ot, nt := oldCfg.Telegram, newCfg.Telegram
	tokenChanged := strings.TrimSpace(ot.Token) != strings.TrimSpace(nt.Token)
	ot.Token, nt.Token = "", ""
	if tokenChanged || ot != nt {
		mark("telegram",
			logx.Bool("telegram.token_changed", tokenChanged),
			logx.Float64("telegram.rate_per_sec", nt.RatePerSec),
			logx.Bool("telegram.log_chat_set", strings.TrimSpace(nt.LogChat) != ""),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		mark("logging",
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		mark("storage", logx.String("storage.path", newCfg.Storage.Path))
	}

	if oldCfg.Scheduler.IsEnabled() != newCfg.Scheduler.IsEnabled() ||
		oldCfg.Scheduler.Timezone != newCfg.Scheduler.Timezone ||
		oldCfg.Scheduler.InitialDelay != newCfg.Scheduler.InitialDelay ||
		oldCfg.Scheduler.InitialStagger != newCfg.Scheduler.InitialStagger {
		mark("scheduler",
			logx.Bool("scheduler.enabled", newCfg.Scheduler.IsEnabled()),
			logx.String("scheduler.timezone", newCfg.Scheduler.Timezone),
		)
	}

	if !reflect.DeepEqual(oldCfg.TaskEngine, newCfg.TaskEngine) {
		mark("task_engine",
			logx.Int("task_engine.workers", newCfg.TaskEngine.Workers),
			logx.Int("task_engine.queue_size", newCfg.TaskEngine.QueueSize),
			logx.Int("task_engine.retry_max", newCfg.TaskEngine.Retries()),
		)
	}

	if !reflect.DeepEqual(oldCfg.Polling, newCfg.Polling) {
		fetch, send, steady, recent := newCfg.Polling.Limits()
		mark("polling",
			logx.Int("polling.bootstrap_fetch_limit", fetch),
			logx.Int("polling.bootstrap_send_limit", send),
			logx.Int("polling.steady_check_window", steady),
			logx.Int("polling.recent_detail_window", recent),
		)
	}

	if !reflect.DeepEqual(oldCfg.HTTP, newCfg.HTTP) {
		mark("http", logx.Int("http.max_retries", newCfg.HTTP.Retries()))
	}

	if oldCfg.Shutdown != newCfg.Shutdown {
		mark("shutdown",
			logx.String("shutdown.timeout", newCfg.Shutdown.Timeout),
			logx.String("shutdown.poll_drain", newCfg.Shutdown.PollDrain),
		)
	}

	if !reflect.DeepEqual(oldCfg.Sites, newCfg.Sites) {
		enabled := 0
		for _, s := range newCfg.Sites {
			if s.IsEnabled() {
				enabled++
			}
		}
		mark("sites", logx.Int("sites.total", len(newCfg.Sites)), logx.Int("sites.enabled", enabled))
	}

	return ch
}
