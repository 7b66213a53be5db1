// Package poll reconciles a site's freshly fetched listing against the record
// store and dispatches notifications for new and changed announcements.
//
// A site's first poll (no stored records) is a bootstrap: it persists a bounded
// backlog and announces only the most recent few. Every later poll is steady
// state: it walks a trailing window oldest to newest, inserting unknown items
// and updating changed ones.
package poll

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"duyurubot/internal/delivery"
	"duyurubot/internal/eventbus"
	"duyurubot/internal/fingerprint"
	"duyurubot/internal/scraper"
	"duyurubot/internal/storage"
	logx "duyurubot/pkg/logx"
)

// ErrStoreUnavailable wraps store failures that abort a poll before any item
// is examined. Nothing has been written or sent, so the poll can be retried.
var ErrStoreUnavailable = errors.New("store unavailable")

// Orchestrator runs polls. It holds no per-site state, so overlapping polls of
// the same site are safe: the store's uniqueness and idempotent updates arbitrate.
type Orchestrator struct {
	store     Store
	deliverer Deliverer
	policy    Policy
	log       logx.Logger
	bus       eventbus.Bus
}

func New(store Store, deliverer Deliverer, policy Policy, log logx.Logger, bus eventbus.Bus) *Orchestrator {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	return &Orchestrator{store: store, deliverer: deliverer, policy: policy, log: log, bus: bus}
}

func (o *Orchestrator) Policy() Policy { return o.policy }

// Poll runs one poll for site. Failures are logged and reported in Result.Err;
// Poll never panics.
func (o *Orchestrator) Poll(ctx context.Context, site Site) (res Result) {
	res = Result{Site: site.Name, Mode: ModeSkipped}
	log := o.log.With(logx.Site(site.Name))
	start := time.Now()

	o.bus.Publish(eventbus.Event{Type: eventbus.PollStarted, Data: site.Name})
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("poll panic: %v", r)
			log.Error("poll panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
		fields := []logx.Field{
			logx.String("mode", string(res.Mode)),
			logx.Int("candidates", res.Candidates),
			logx.Int("new", res.New),
			logx.Int("updated", res.Updated),
			logx.Int("delivered", res.Delivered),
			logx.Int("delivery_failed", res.DeliveryFailed),
			logx.Duration("took", time.Since(start)),
		}
		if res.Err != nil {
			log.Error("poll finished with error", append(fields, logx.Err(res.Err))...)
		} else {
			log.Info("poll finished", fields...)
		}
		o.bus.Publish(eventbus.Event{Type: eventbus.PollFinished, Data: res})
	}()

	if site.Source == nil {
		res.Err = errors.New("site has no source")
		return res
	}

	candidates, err := site.Source.FetchCandidates(ctx)
	if err != nil {
		log.Error("fetch candidates failed", logx.Err(err))
		candidates = nil
	}
	res.Candidates = len(candidates)
	if len(candidates) == 0 {
		log.Warn("no candidates on listing page")
		return res
	}

	h, err := o.store.Acquire(ctx)
	if err != nil {
		res.Err = fmt.Errorf("%w: acquire: %w", ErrStoreUnavailable, err)
		return res
	}
	defer h.Close()

	known, err := h.Count(ctx, site.Name)
	if err != nil {
		// Falling through to bootstrap here would re-announce history.
		res.Err = fmt.Errorf("%w: count records: %w", ErrStoreUnavailable, err)
		return res
	}

	run := &siteRun{o: o, site: site, h: h, log: log, res: &res}
	if known == 0 {
		res.Mode = ModeBootstrap
		run.bootstrap(ctx, candidates)
	} else {
		res.Mode = ModeSteady
		run.steady(ctx, candidates)
	}
	return res
}

// siteRun carries the state of one Poll call.
type siteRun struct {
	o    *Orchestrator
	site Site
	h    storage.Handle
	log  logx.Logger
	res  *Result
}

type fetched struct {
	content string
	ok      bool // false when the fetch failed
}

func (r *siteRun) detail(ctx context.Context, c scraper.Candidate) fetched {
	if strings.TrimSpace(c.URL) == "" {
		return fetched{ok: true}
	}
	content, err := r.site.Source.FetchDetail(ctx, c.URL)
	if err != nil {
		r.log.Warn("fetch detail failed", logx.ID(c.ID), logx.String("url", c.URL), logx.Err(err))
		return fetched{}
	}
	return fetched{content: content, ok: true}
}

func (r *siteRun) bootstrap(ctx context.Context, candidates []scraper.Candidate) {
	p := r.o.policy
	kept := candidates[:min(p.BootstrapFetchLimit, len(candidates))]
	r.log.Info("bootstrap",
		logx.Int("found", len(candidates)),
		logx.Int("keep", len(kept)),
		logx.Int("send", min(p.BootstrapSendLimit, len(kept))),
	)

	stored := make(map[string]fetched, len(kept))
	for _, c := range kept {
		if ctx.Err() != nil {
			r.res.Err = ctx.Err()
			return
		}
		if c.ID == "" {
			r.log.Warn("candidate without id skipped", logx.String("title", c.Title))
			continue
		}
		d := r.detail(ctx, c)
		inserted, err := r.h.InsertIfAbsent(ctx, record(r.site.Name, c, d.content))
		if err != nil {
			r.log.Error("insert failed", logx.String("op", "insert"), logx.ID(c.ID), logx.Err(err))
			continue
		}
		if !inserted {
			// Already stored by an overlapping poll, which also announces it.
			continue
		}
		r.res.New++
		stored[c.ID] = d
	}

	toSend := slices.Clone(kept[:min(p.BootstrapSendLimit, len(kept))])
	slices.Reverse(toSend)
	for _, c := range toSend {
		d, ok := stored[c.ID]
		if !ok {
			continue
		}
		// A listing can repeat an id; announce it once.
		delete(stored, c.ID)
		r.deliver(ctx, c, d.content, delivery.KindNew)
	}
}

func (r *siteRun) steady(ctx context.Context, candidates []scraper.Candidate) {
	p := r.o.policy
	oldestFirst := slices.Clone(candidates)
	slices.Reverse(oldestFirst)
	window := oldestFirst[max(0, len(oldestFirst)-p.SteadyCheckWindow):]
	recentFrom := len(window) - p.RecentDetailWindow

	r.log.Debug("steady",
		logx.Int("found", len(candidates)),
		logx.Int("check", len(window)),
		logx.Int("detail", min(p.RecentDetailWindow, len(window))),
	)

	for i, c := range window {
		if ctx.Err() != nil {
			r.res.Err = ctx.Err()
			return
		}
		if c.ID == "" {
			r.log.Warn("candidate without id skipped", logx.String("title", c.Title))
			continue
		}

		rec, found, err := r.h.Get(ctx, r.site.Name, c.ID)
		if err != nil {
			r.log.Error("lookup failed", logx.String("op", "get"), logx.ID(c.ID), logx.Err(err))
			continue
		}
		if !found {
			r.newItem(ctx, c)
			continue
		}
		r.checkUpdate(ctx, c, rec, i >= recentFrom)
	}
}

func (r *siteRun) newItem(ctx context.Context, c scraper.Candidate) {
	d := r.detail(ctx, c)
	inserted, err := r.h.InsertIfAbsent(ctx, record(r.site.Name, c, d.content))
	if err != nil {
		r.log.Error("insert failed", logx.String("op", "insert"), logx.ID(c.ID), logx.Err(err))
		return
	}
	if !inserted {
		// An overlapping poll got there first and announced it.
		return
	}
	r.res.New++
	r.log.Info("new announcement", logx.ID(c.ID), logx.String("title", c.Title))
	r.deliver(ctx, c, d.content, delivery.KindNew)
}

func (r *siteRun) checkUpdate(ctx context.Context, c scraper.Candidate, rec storage.Record, recent bool) {
	changed := false
	if c.Title != rec.Title {
		r.log.Info("title changed", logx.ID(c.ID), logx.String("old", rec.Title), logx.String("new", c.Title))
		changed = true
	}

	var (
		d         fetched
		attempted bool
	)
	if recent {
		d, attempted = r.detail(ctx, c), true
		// A failed fetch is no evidence of a content change.
		if d.ok && fingerprint.Of(d.content, c.Title) != rec.ContentHash {
			r.log.Info("content changed", logx.ID(c.ID))
			changed = true
		}
	}
	if !changed {
		return
	}
	if !attempted {
		d = r.detail(ctx, c)
	}

	hash := fingerprint.Of(d.content, c.Title)
	updated, err := r.h.Update(ctx, r.site.Name, c.ID, c.Title, hash, d.content)
	if err != nil {
		r.log.Error("update failed", logx.String("op", "update"), logx.ID(c.ID), logx.Err(err))
		return
	}
	if !updated {
		r.log.Warn("update matched no record", logx.ID(c.ID))
		return
	}
	r.res.Updated++
	r.deliver(ctx, c, d.content, delivery.KindUpdate)
}

func (r *siteRun) deliver(ctx context.Context, c scraper.Candidate, content string, kind delivery.Kind) {
	err := r.o.deliverer.Deliver(ctx, delivery.Request{
		Destination: r.site.Destination,
		Site:        r.site.Name,
		Item:        delivery.Item{Title: c.Title, URL: c.URL, Date: c.Date, Content: content},
		Kind:        kind,
	})
	if err != nil {
		r.res.DeliveryFailed++
		r.log.Error("delivery failed", logx.ID(c.ID), logx.String("kind", kind.String()), logx.Err(err))
		return
	}
	r.res.Delivered++
}

func record(site string, c scraper.Candidate, content string) storage.Record {
	return storage.Record{
		Site:        site,
		ExternalID:  c.ID,
		Title:       c.Title,
		URL:         c.URL,
		Date:        c.Date,
		ContentHash: fingerprint.Of(content, c.Title),
		RawContent:  content,
	}
}
