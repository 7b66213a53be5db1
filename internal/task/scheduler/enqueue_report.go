package scheduler

import (
	"errors"
	"time"

	"duyurubot/internal/task/engine"
	logx "duyurubot/pkg/logx"
)

const enqueueWarnThrottle = 5 * time.Second

func (s *Service) enqueue(t engine.Task) {
	if s.engine == nil {
		return
	}
	if err := s.engine.Enqueue(t); err != nil {
		s.reportEnqueueError(t.Name, err)
	}
}

func (s *Service) reportEnqueueError(name string, err error) {
	if err == nil {
		return
	}
	// Overlap skips happen during normal operation.
	if errors.Is(err, engine.ErrOverlapSkip) {
		s.log.Debug("schedule trigger skipped", logx.String("schedule", name), logx.Err(err))
		return
	}

	now := time.Now()
	s.enqMu.Lock()
	last := s.lastEnqWarn[name]
	if !last.IsZero() && now.Sub(last) < enqueueWarnThrottle {
		s.enqMu.Unlock()
		return
	}
	s.lastEnqWarn[name] = now
	s.enqMu.Unlock()

	s.log.Warn("schedule failed to enqueue task", logx.String("schedule", name), logx.Err(err))
}
