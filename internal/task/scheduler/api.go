package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"duyurubot/internal/task/engine"
	logx "duyurubot/pkg/logx"

	"github.com/robfig/cron/v3"
)

// AddScheduleOpt parses schedule and registers either a cron or interval task.
// See ParseSchedule for the accepted forms.
func (s *Service) AddScheduleOpt(name, schedule string, timeout time.Duration, opt TaskOptions, job func(ctx context.Context) error) (string, error) {
	ps, err := ParseSchedule(schedule)
	if err != nil {
		return "", err
	}
	switch ps.Kind {
	case SpecCron:
		return s.AddCronOpt(name, ps.Cron, timeout, opt, job)
	case SpecInterval:
		return s.AddIntervalOpt(name, ps.Every, timeout, opt, job)
	default:
		return "", fmt.Errorf("unsupported schedule kind")
	}
}

// AddCronOpt registers a cron schedule under name, replacing any schedule with
// the same name. It returns name, the stable identifier for Remove.
func (s *Service) AddCronOpt(name, spec string, timeout time.Duration, opt TaskOptions, job func(ctx context.Context) error) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("name required")
	}
	if job == nil {
		return "", errors.New("job required")
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return "", fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return s.addDef(name, fmt.Sprintf("cron:%d", time.Now().UnixNano()), spec, timeout, opt, job)
}

func (s *Service) AddIntervalOpt(name string, every time.Duration, timeout time.Duration, opt TaskOptions, job func(ctx context.Context) error) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("name required")
	}
	if job == nil {
		return "", errors.New("job required")
	}
	if every <= 0 {
		return "", errors.New("interval must be > 0")
	}
	return s.addDef(name, fmt.Sprintf("interval:%d", time.Now().UnixNano()), "@every "+every.String(), timeout, opt, job)
}

func (s *Service) addDef(name, id, spec string, timeout time.Duration, opt TaskOptions, job func(ctx context.Context) error) (string, error) {
	s.removeOnce(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeScheduleLocked(name)
	s.defs = append(s.defs, scheduleDef{
		id:      id,
		name:    name,
		spec:    spec,
		timeout: timeout,
		job:     job,
		opt:     opt,
		state:   &engine.RunState{},
	})
	if s.c == nil {
		// Registered with cron when Start runs.
		return name, nil
	}
	d := &s.defs[len(s.defs)-1]
	if err := s.addCronLocked(d); err != nil {
		s.log.Error("schedule register failed", logx.String("name", name), logx.String("spec", spec), logx.Err(err))
		return name, err
	}
	args := []logx.Field{logx.String("name", name), logx.String("spec", spec), logx.Duration("timeout", timeout)}
	if next := s.previewNextRunsLocked(spec, 4); next != "" {
		args = append(args, logx.String("next", next))
	}
	s.log.Debug("schedule registered", args...)
	return name, nil
}

// AddOnce runs job once at at. A one-shot with the same name is replaced. If
// the scheduler is not running, the timer is armed by Start.
func (s *Service) AddOnce(name string, at time.Time, timeout time.Duration, job func(ctx context.Context) error) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("name required")
	}
	if at.IsZero() {
		return "", errors.New("at required")
	}
	if job == nil {
		return "", errors.New("job required")
	}

	s.mu.Lock()
	s.removeScheduleLocked(name)
	s.mu.Unlock()

	s.tmu.Lock()
	defer s.tmu.Unlock()
	if prev := s.once[name]; prev != nil && prev.timer != nil {
		prev.timer.Stop()
	}
	s.onceSeq++
	d := &onceDef{at: at, timeout: timeout, job: job, ver: s.onceSeq}
	s.once[name] = d
	if s.armed {
		s.armOneLocked(name, d)
	}
	return name, nil
}

// armOnce arms every pending one-shot. Called from Start.
func (s *Service) armOnce() {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	s.armed = true
	for name, d := range s.once {
		s.armOneLocked(name, d)
	}
}

// Call with s.tmu held.
func (s *Service) armOneLocked(name string, d *onceDef) {
	ver := d.ver
	d.timer = time.AfterFunc(max(time.Until(d.at), 0), func() {
		s.tmu.Lock()
		cur := s.once[name]
		// Removed or replaced since this timer was armed.
		if cur == nil || cur.ver != ver || !s.armed {
			s.tmu.Unlock()
			return
		}
		delete(s.once, name)
		s.tmu.Unlock()

		s.enqueue(engine.Task{
			Name:    name,
			Timeout: cur.timeout,
			Run:     cur.job,
			State:   &engine.RunState{},
		})
	})
}

// Remove unschedules everything registered under name and reports whether
// anything was removed. Safe to call while stopped.
func (s *Service) Remove(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	s.mu.Lock()
	removed := s.removeScheduleLocked(name)
	s.mu.Unlock()
	removed = s.removeOnce(name) || removed

	if removed {
		s.log.Debug("schedule removed", logx.String("name", name))
	}
	return removed
}

// removeScheduleLocked removes all defs matching name and unregisters them
// from cron if running. Call with s.mu held.
func (s *Service) removeScheduleLocked(name string) bool {
	removed := false
	n := 0
	for _, d := range s.defs {
		if d.name == name {
			if s.c != nil && d.entryID != 0 {
				s.c.Remove(d.entryID)
			}
			removed = true
			continue
		}
		s.defs[n] = d
		n++
	}
	s.defs = s.defs[:n]
	return removed
}

func (s *Service) removeOnce(name string) bool {
	s.tmu.Lock()
	defer s.tmu.Unlock()
	d, ok := s.once[name]
	if !ok {
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	delete(s.once, name)
	return true
}

// Call with s.mu held.
func (s *Service) addCronLocked(d *scheduleDef) error {
	name, timeout, opt, state, run := d.name, d.timeout, d.opt, d.state, d.job
	job := cron.FuncJob(func() {
		s.enqueue(engine.Task{
			Name:    name,
			Timeout: timeout,
			Run:     run,
			Opt:     opt,
			State:   state,
		})
	})

	// Interval schedules start at a per-name phase offset.
	spec := strings.TrimSpace(d.spec)
	if strings.HasPrefix(spec, "@every") {
		every, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(spec, "@every")))
		if err == nil && every > 0 {
			loc := s.loc
			if loc == nil {
				loc = time.Local
			}
			sched, jitter := makeIntervalScheduleWithSpread(every, time.Now().In(loc), d.name)
			d.startupSpread = jitter
			d.entryID = s.c.Schedule(sched, job)
			return nil
		}
	}

	d.startupSpread = 0
	eid, err := s.c.AddJob(d.spec, job)
	if err == nil {
		d.entryID = eid
	}
	return err
}
