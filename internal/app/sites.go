package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"duyurubot/internal/config"
	"duyurubot/internal/poll"
	"duyurubot/internal/scraper"
	"duyurubot/internal/storage"
	"duyurubot/internal/task/engine"
	"duyurubot/internal/task/scheduler"
	"duyurubot/internal/transport/telegram"
	logx "duyurubot/pkg/logx"
)

// checkRuntime validates what config.Validate cannot: scraper kinds against the
// registry and destinations against the Telegram address forms.
func checkRuntime(cfg *config.Config, reg *scraper.Registry) error {
	var errs []error
	for i, s := range cfg.Sites {
		at := fmt.Sprintf("sites[%d]", i)
		if name := strings.TrimSpace(s.Name); name != "" {
			at = fmt.Sprintf("sites[%s]", name)
		}
		if kind := s.KindOrDefault(); !reg.Has(kind) {
			errs = append(errs, fmt.Errorf("%s.kind: unknown kind %q (known: %s)", at, kind, strings.Join(reg.Kinds(), ", ")))
		}
		if !s.IsEnabled() {
			continue
		}
		if err := telegram.ValidDestination(s.Destination); err != nil {
			errs = append(errs, fmt.Errorf("%s.destination: %w", at, err))
		}
	}
	return errors.Join(errs...)
}

// buildSites creates a Source for every enabled site.
func buildSites(cfg *config.Config, reg *scraper.Registry, f *scraper.Fetcher) ([]siteEntry, error) {
	var out []siteEntry
	for _, sc := range cfg.Sites {
		if !sc.IsEnabled() {
			continue
		}
		src, err := reg.Build(scraper.SiteConfig{
			Name: sc.Name,
			URL:  sc.URL,
			Kind: sc.KindOrDefault(),
		}, f)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", sc.Name, err)
		}
		out = append(out, siteEntry{
			site:     poll.Site{Name: sc.Name, Destination: sc.Destination, Source: src},
			schedule: sc.Schedule,
			minutes:  sc.ScheduleMinutes,
		})
	}
	return out, nil
}

type siteEntry struct {
	site     poll.Site
	schedule string
	minutes  []string
}

func pollTaskName(site string) string    { return "poll:" + site }
func initialTaskName(site string) string { return pollTaskName(site) + ":initial" }

// registerSites adds the recurring poll and the staggered initial poll of
// every site. Polls of one site may overlap; the store arbitrates.
func (a *App) registerSites(now time.Time, delay, stagger time.Duration) error {
	opt := engine.TaskOptions{
		Overlap:       engine.OverlapAllow,
		RetryBase:     a.storeRetry,
		RetryMaxDelay: 4 * a.storeRetry,
	}
	for i, e := range a.sites {
		name := pollTaskName(e.site.Name)
		job := a.pollJob(e.site)

		var err error
		if strings.TrimSpace(e.schedule) != "" {
			_, err = a.sched.AddScheduleOpt(name, e.schedule, 0, opt, job)
		} else {
			var spec string
			spec, err = scheduler.MinutesSpec(e.minutes)
			if err == nil {
				_, err = a.sched.AddCronOpt(name, spec, 0, opt, job)
			}
		}
		if err != nil {
			return fmt.Errorf("schedule %s: %w", name, err)
		}

		at := now.Add(delay + time.Duration(i)*stagger)
		if _, err := a.sched.AddOnce(initialTaskName(e.site.Name), at, 0, job); err != nil {
			return fmt.Errorf("schedule %s initial: %w", name, err)
		}
		a.log.Info("site registered",
			logx.Site(e.site.Name),
			logx.String("schedule", firstNonEmpty(e.schedule, strings.Join(e.minutes, ","))),
			logx.Time("initial_at", at),
			logx.Time("next", a.sched.NextRun(name)),
		)
	}
	return nil
}

// unregisterDisabled removes the schedules of running sites that cfg no
// longer enables. Newly added or re-enabled sites still need a restart.
func (a *App) unregisterDisabled(cfg *config.Config) {
	enabled := make(map[string]bool, len(cfg.Sites))
	for _, sc := range cfg.Sites {
		if sc.IsEnabled() {
			enabled[sc.Name] = true
		}
	}
	kept := a.sites[:0]
	for _, e := range a.sites {
		if enabled[e.site.Name] {
			kept = append(kept, e)
			continue
		}
		removed := a.sched.Remove(pollTaskName(e.site.Name))
		a.sched.Remove(initialTaskName(e.site.Name))
		a.log.Info("site unregistered", logx.Site(e.site.Name), logx.Bool("was_scheduled", removed))
	}
	a.sites = kept
}

// pollJob adapts a poll to an engine task.
func (a *App) pollJob(site poll.Site) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return pollError(a.poller.Poll(ctx, site).Err, a.storeRetry)
	}
}

// pollError classifies a poll failure for the engine. A poll that could not
// reach the store wrote and sent nothing, so it is retried after wait. Any
// other failure is final for the run: the next scheduled trigger is the retry.
func pollError(err error, wait time.Duration) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, poll.ErrStoreUnavailable) && !errors.Is(err, storage.ErrClosed):
		return engine.RetryAfter(err, wait)
	default:
		return engine.NoRetry(err)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
