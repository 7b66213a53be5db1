package scheduler

import (
	"sort"
	"time"

	"duyurubot/internal/task/engine"
)

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	enabled := s.cfg.Enabled
	tz := s.cfg.Timezone
	defs := make([]scheduleDef, len(s.defs))
	copy(defs, s.defs)
	c := s.c
	loc := s.loc
	eng := s.engine
	s.mu.Unlock()

	if tz == "" {
		tz = DefaultTimezone
	}
	if loc != nil {
		tz = loc.String()
	}

	items := make([]ScheduleInfo, 0, len(defs))
	for _, d := range defs {
		it := ScheduleInfo{ID: d.id, Name: d.name, Spec: d.spec, Timeout: d.timeout}
		if c != nil && d.entryID != 0 {
			e := c.Entry(d.entryID)
			it.Next = e.Next
			it.Prev = e.Prev
		}
		items = append(items, it)
	}

	s.tmu.Lock()
	once := make([]OnceInfo, 0, len(s.once))
	for name, d := range s.once {
		once = append(once, OnceInfo{Name: name, At: d.at})
	}
	s.tmu.Unlock()
	sort.Slice(once, func(i, j int) bool { return once[i].At.Before(once[j].At) })

	snap := Snapshot{Enabled: enabled, Timezone: tz, Schedules: items, Once: once}
	if eng != nil {
		es := eng.Snapshot()
		opt := engine.DefaultTaskOptions(engine.Config{RetryMax: es.RetryMax})
		snap.Workers = es.Workers
		snap.InFlight = es.InFlight
		snap.QueueLen = es.QueueLen
		snap.QueueCap = es.QueueCap
		snap.Dropped = es.Dropped
		snap.DroppedQueueFull = es.DroppedQueueFull
		snap.DroppedStale = es.DroppedStale
		snap.DefaultTimeout = es.DefaultTimeout
		snap.MaxQueueDelay = es.MaxQueueDelay
		snap.RetryMax = opt.RetryMax
		snap.RetryBase = opt.RetryBase
		snap.RetryMaxDelay = opt.RetryMaxDelay
		snap.History = es.History
	}
	return snap
}

// NextRun returns the next trigger time of the named cron or interval
// schedule, or the zero time when it is unknown or the scheduler is stopped.
func (s *Service) NextRun(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return time.Time{}
	}
	for _, d := range s.defs {
		if d.name == name && d.entryID != 0 {
			return s.c.Entry(d.entryID).Next
		}
	}
	return time.Time{}
}
