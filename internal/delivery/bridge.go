package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"duyurubot/internal/eventbus"
	rtsup "duyurubot/internal/runtime/supervisor"
	logx "duyurubot/pkg/logx"

	"golang.org/x/time/rate"
)

type request struct {
	Request
	deadline time.Time
	reply    chan error // buffered(1); the worker never blocks on it
}

// Bridge serializes every outbound send through one supervised worker.
//
// It is safe for concurrent use.
type Bridge struct {
	mu sync.Mutex

	log      logx.Logger
	notifier Notifier
	bus      eventbus.Bus

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	enqWG     sync.WaitGroup
	stopping  chan struct{} // closed when Stop begins

	queue    chan *request
	sup      *rtsup.Supervisor
	stopDone chan struct{} // non-nil while stopping
}

func New(cfg Config, n Notifier, log logx.Logger, bus eventbus.Bus) *Bridge {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Bridge{
		log:      log,
		notifier: n,
		bus:      bus,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
	}
}

func (b *Bridge) Enabled() bool {
	b.mu.Lock()
	en := b.cfg.Enabled
	b.mu.Unlock()
	return en
}

// Start launches the worker. It is idempotent.
func (b *Bridge) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	b.mu.Lock()
	if b.stopDone != nil {
		done := b.stopDone
		b.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		b.mu.Lock()
	}
	if b.queue != nil || !b.cfg.Enabled || b.notifier == nil {
		b.mu.Unlock()
		return
	}

	b.queue = make(chan *request, b.cfg.QueueSize)
	b.stopping = make(chan struct{})
	b.accepting = true
	b.sup = rtsup.New(ctx,
		rtsup.WithLogger(b.log),
		rtsup.WithCancelOnError(false),
	)
	sup := b.sup
	q := b.queue
	b.mu.Unlock()

	sup.GoRestart("delivery.worker", func(c context.Context) error {
		b.workerLoop(c, q)
		b.mu.Lock()
		stopping := b.stopDone != nil
		b.mu.Unlock()
		if stopping {
			return context.Canceled
		}
		if c.Err() != nil {
			return c.Err()
		}
		return errors.New("delivery worker exited unexpectedly")
	}, rtsup.WithPublishFirstError(true))

	b.log.Info("delivery bridge started",
		logx.Int("queue", b.cfg.QueueSize),
		logx.Duration("timeout", b.cfg.Timeout),
	)
}

// Stop stops intake and drains queued requests best-effort until ctx is done.
// Requests still pending after that fail with ErrStopped.
func (b *Bridge) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	b.mu.Lock()
	q := b.queue
	sup := b.sup
	if q == nil {
		b.mu.Unlock()
		return
	}
	if b.stopDone != nil {
		done := b.stopDone
		b.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}

	done := make(chan struct{})
	b.stopDone = done
	b.accepting = false
	close(b.stopping)
	b.mu.Unlock()

	go func() {
		defer close(done)
		// Enqueuers see stopping and return; only then is closing q safe.
		b.enqWG.Wait()
		close(q)
		_ = sup.Wait(context.Background())

		b.mu.Lock()
		b.queue = nil
		b.sup = nil
		b.stopDone = nil
		b.mu.Unlock()
	}()

	select {
	case <-done:
		b.log.Info("delivery bridge stopped")
	case <-ctx.Done():
		sup.Cancel()
		b.log.Warn("delivery bridge stop deadline reached, pending requests dropped")
	}
}

// Deliver queues req and waits for the worker's verdict.
func (b *Bridge) Deliver(ctx context.Context, req Request) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	if !b.cfg.Enabled {
		b.mu.Unlock()
		return ErrDisabled
	}
	if !b.accepting || b.queue == nil {
		b.mu.Unlock()
		return ErrStopped
	}
	q := b.queue
	stopping := b.stopping
	workerDone := b.sup.Context().Done()
	timeout := b.cfg.Timeout
	b.enqWG.Add(1)
	b.mu.Unlock()

	r := &request{Request: req, deadline: time.Now().Add(timeout), reply: make(chan error, 1)}
	wctx, cancel := context.WithDeadline(ctx, r.deadline)
	defer cancel()

	err := func() error {
		defer b.enqWG.Done()
		select {
		case q <- r:
			return nil
		case <-stopping:
			return ErrStopped
		case <-wctx.Done():
			return b.waitErr(ctx, "enqueue")
		}
	}()
	if err != nil {
		b.publishFailed(req, 0, err)
		return err
	}

	select {
	case err := <-r.reply:
		return err
	case <-workerDone:
		// The worker may have replied just before shutting down.
		select {
		case err := <-r.reply:
			return err
		default:
		}
		return ErrStopped
	case <-wctx.Done():
		return b.waitErr(ctx, "reply")
	}
}

// waitErr maps a finished wait to the caller's error or ErrTimeout.
func (b *Bridge) waitErr(parent context.Context, phase string) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w (%s)", ErrTimeout, phase)
}

func (b *Bridge) workerLoop(ctx context.Context, q <-chan *request) {
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-q:
			if !ok {
				return
			}
			b.handle(ctx, r)
		}
	}
}

func (b *Bridge) handle(runCtx context.Context, r *request) {
	start := time.Now()
	if !start.Before(r.deadline) {
		err := fmt.Errorf("%w (queued)", ErrTimeout)
		b.log.Warn("delivery expired in queue", logx.Site(r.Site), logx.String("title", r.Item.Title))
		b.publishFailed(r.Request, 0, err)
		r.reply <- err
		return
	}

	ctx, cancel := context.WithDeadline(runCtx, r.deadline)
	defer cancel()

	err := b.send(ctx, r)
	took := time.Since(start)
	if err != nil {
		b.log.Warn("delivery failed",
			logx.Site(r.Site),
			logx.String("kind", r.Kind.String()),
			logx.String("title", r.Item.Title),
			logx.Duration("took", took),
			logx.Err(err),
		)
		b.publishFailed(r.Request, took, err)
		r.reply <- err
		return
	}

	b.log.Info("delivery sent",
		logx.Site(r.Site),
		logx.String("kind", r.Kind.String()),
		logx.String("title", r.Item.Title),
		logx.Duration("took", took),
	)
	b.bus.Publish(eventbus.Event{Type: eventbus.DeliverySent, Data: Event{
		Site: r.Site, Destination: r.Destination, Kind: r.Kind.String(), Title: r.Item.Title, Took: took,
	}})
	r.reply <- nil
}

func (b *Bridge) send(ctx context.Context, r *request) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("notifier panic: %v", p)
		}
	}()
	// Wait fails early when the next token lies past the deadline.
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w (rate limit): %v", ErrTimeout, err)
	}
	if err := b.notifier.Deliver(ctx, r.Destination, r.Site, r.Item, r.Kind); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("delivery: notifier: %w", err)
	}
	return nil
}

func (b *Bridge) publishFailed(req Request, took time.Duration, err error) {
	b.bus.Publish(eventbus.Event{Type: eventbus.DeliveryFailed, Data: Event{
		Site: req.Site, Destination: req.Destination, Kind: req.Kind.String(), Title: req.Item.Title, Took: took, Error: err.Error(),
	}})
}
