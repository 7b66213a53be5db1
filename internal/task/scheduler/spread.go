package scheduler

import (
	"hash/fnv"
	"time"

	"github.com/robfig/cron/v3"
)

const maxStartupSpread = 30 * time.Second

// phasedSchedule fires first at first, then follows base.
type phasedSchedule struct {
	base  cron.Schedule
	first time.Time
}

func (s *phasedSchedule) Next(t time.Time) time.Time {
	if !s.first.IsZero() && t.Before(s.first) {
		return s.first
	}
	return s.base.Next(t)
}

// makeIntervalScheduleWithSpread delays the first run of an interval schedule
// by an offset derived from name. Interval-scheduled sites then keep apart from
// each other and keep the same phase across restarts.
func makeIntervalScheduleWithSpread(every time.Duration, now time.Time, name string) (cron.Schedule, time.Duration) {
	base := cron.Every(every)
	// cron.Every works in whole seconds.
	secs := uint64(min(every, maxStartupSpread) / time.Second)
	if secs == 0 {
		return base, 0
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	offset := time.Duration(h.Sum64()%secs) * time.Second
	return &phasedSchedule{base: base, first: now.Add(every + offset)}, offset
}
