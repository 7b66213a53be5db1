package delivery

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"duyurubot/internal/eventbus"
	logx "duyurubot/pkg/logx"
)

type fakeNotifier struct {
	delay time.Duration
	err   error
	block chan struct{} // if non-nil, Deliver waits for it or ctx

	inFlight atomic.Int32
	maxSeen  atomic.Int32

	mu    sync.Mutex
	items []string
}

func (f *fakeNotifier) Deliver(ctx context.Context, destination, site string, item Item, kind Kind) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.items = append(f.items, site+"/"+item.Title+"/"+kind.String())
	f.mu.Unlock()
	return nil
}

func (f *fakeNotifier) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.items...)
}

func startBridge(t *testing.T, cfg Config, n Notifier, bus eventbus.Bus) *Bridge {
	t.Helper()
	cfg.Enabled = true
	if cfg.RatePerSec == 0 {
		cfg.RatePerSec = 1000
		cfg.Burst = 1000
	}
	b := New(cfg, n, logx.Nop(), bus)
	b.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		b.Stop(ctx)
	})
	return b
}

func TestDeliverSerializesConcurrentCallers(t *testing.T) {
	t.Parallel()
	n := &fakeNotifier{delay: 5 * time.Millisecond}
	b := startBridge(t, Config{Timeout: 5 * time.Second}, n, nil)

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- b.Deliver(context.Background(), Request{Destination: "@c", Site: "s", Item: Item{Title: "t"}, Kind: KindNew})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Deliver: %v", err)
		}
	}
	if got := len(n.sent()); got != callers {
		t.Fatalf("sent = %d, want %d", got, callers)
	}
	if got := n.maxSeen.Load(); got != 1 {
		t.Fatalf("max concurrent notifier calls = %d, want 1", got)
	}
}

func TestDeliverPreservesSubmissionOrderForOneCaller(t *testing.T) {
	t.Parallel()
	n := &fakeNotifier{}
	b := startBridge(t, Config{Timeout: time.Second}, n, nil)

	titles := []string{"a", "b", "c"}
	for _, title := range titles {
		if err := b.Deliver(context.Background(), Request{Site: "s", Item: Item{Title: title}, Kind: KindUpdate}); err != nil {
			t.Fatalf("Deliver(%s): %v", title, err)
		}
	}
	got := n.sent()
	want := []string{"s/a/update", "s/b/update", "s/c/update"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sent[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDeliverTimeout(t *testing.T) {
	t.Parallel()
	n := &fakeNotifier{block: make(chan struct{})}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()
	b := startBridge(t, Config{Timeout: 50 * time.Millisecond}, n, bus)

	start := time.Now()
	err := b.Deliver(context.Background(), Request{Site: "s", Item: Item{Title: "slow"}})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Deliver err = %v, want ErrTimeout", err)
	}
	if took := time.Since(start); took > time.Second {
		t.Fatalf("Deliver took %v, want about the timeout", took)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == eventbus.DeliveryFailed {
				return
			}
		case <-deadline:
			t.Fatal("no delivery.failed event")
		}
	}
}

func TestDeliverNotifierError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	b := startBridge(t, Config{Timeout: time.Second}, &fakeNotifier{err: boom}, nil)

	err := b.Deliver(context.Background(), Request{Site: "s", Item: Item{Title: "x"}})
	if !errors.Is(err, boom) {
		t.Fatalf("Deliver err = %v, want %v", err, boom)
	}
}

func TestDeliverAfterStop(t *testing.T) {
	t.Parallel()
	n := &fakeNotifier{}
	b := New(Config{Enabled: true, RatePerSec: 100, Burst: 100}, n, logx.Nop(), nil)

	if err := b.Deliver(context.Background(), Request{}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Deliver before Start = %v, want ErrStopped", err)
	}
	b.Start(context.Background())
	if err := b.Deliver(context.Background(), Request{Item: Item{Title: "x"}}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	b.Stop(ctx)
	if err := b.Deliver(context.Background(), Request{}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Deliver after Stop = %v, want ErrStopped", err)
	}
}

func TestStopUnblocksPendingCallers(t *testing.T) {
	t.Parallel()
	n := &fakeNotifier{block: make(chan struct{})}
	b := New(Config{Enabled: true, Timeout: 10 * time.Second, RatePerSec: 100, Burst: 100}, n, logx.Nop(), nil)
	b.Start(context.Background())

	res := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { res <- b.Deliver(context.Background(), Request{Item: Item{Title: "x"}}) }()
	}
	for n.inFlight.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	b.Stop(ctx)

	for i := 0; i < 2; i++ {
		select {
		case err := <-res:
			if err == nil {
				t.Fatal("Deliver succeeded on a blocked notifier")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("pending Deliver not released by Stop")
		}
	}
}

func TestDisabled(t *testing.T) {
	t.Parallel()
	b := New(Config{Enabled: false}, &fakeNotifier{}, logx.Nop(), nil)
	b.Start(context.Background())
	if err := b.Deliver(context.Background(), Request{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Deliver = %v, want ErrDisabled", err)
	}
	b.Stop(context.Background())
}
