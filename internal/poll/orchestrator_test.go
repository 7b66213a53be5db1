package poll

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"duyurubot/internal/delivery"
	"duyurubot/internal/eventbus"
	"duyurubot/internal/fingerprint"
	"duyurubot/internal/scraper"
	"duyurubot/internal/storage"
	logx "duyurubot/pkg/logx"
)

type fakeSource struct {
	mu          sync.Mutex
	candidates  []scraper.Candidate
	listErr     error
	content     map[string]string
	failing     map[string]bool
	detailCalls map[string]int
	panicOnList bool
}

func newFakeSource(cands []scraper.Candidate) *fakeSource {
	s := &fakeSource{content: map[string]string{}, failing: map[string]bool{}, detailCalls: map[string]int{}}
	s.setCandidates(cands)
	return s
}

func (s *fakeSource) setCandidates(c []scraper.Candidate) {
	s.mu.Lock()
	s.candidates = append([]scraper.Candidate(nil), c...)
	s.mu.Unlock()
}

func (s *fakeSource) FetchCandidates(context.Context) ([]scraper.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicOnList {
		panic("listing exploded")
	}
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]scraper.Candidate(nil), s.candidates...), nil
}

func (s *fakeSource) FetchDetail(_ context.Context, url string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detailCalls[url]++
	if s.failing[url] {
		return "", errors.New("unreachable")
	}
	return s.content[url], nil
}

func (s *fakeSource) calls(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detailCalls[url]
}

func (s *fakeSource) resetCalls() {
	s.mu.Lock()
	s.detailCalls = map[string]int{}
	s.mu.Unlock()
}

type fakeDeliverer struct {
	mu   sync.Mutex
	reqs []delivery.Request
	fail func(delivery.Request) error
}

func (d *fakeDeliverer) Deliver(_ context.Context, req delivery.Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		if err := d.fail(req); err != nil {
			return err
		}
	}
	d.reqs = append(d.reqs, req)
	return nil
}

func (d *fakeDeliverer) sent() []delivery.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]delivery.Request(nil), d.reqs...)
}

func (d *fakeDeliverer) reset() {
	d.mu.Lock()
	d.reqs = nil
	d.mu.Unlock()
}

// items returns n candidates newest-first with ids n..1.
func items(n int) []scraper.Candidate {
	out := make([]scraper.Candidate, 0, n)
	for i := n; i >= 1; i-- {
		out = append(out, item(i))
	}
	return out
}

func item(i int) scraper.Candidate {
	return scraper.Candidate{
		ID:    fmt.Sprint(i),
		Title: fmt.Sprintf("Duyuru %d", i),
		URL:   fmt.Sprintf("https://x.test/d/%d", i),
		Date:  "01.01.2025",
	}
}

type harness struct {
	store *storage.Store
	src   *fakeSource
	del   *fakeDeliverer
	orch  *Orchestrator
	site  Site
}

func newHarness(t *testing.T, policy Policy, cands []scraper.Candidate) *harness {
	t.Helper()
	st, err := storage.Open(context.Background(), storage.Config{Path: filepath.Join(t.TempDir(), "poll.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	src := newFakeSource(cands)
	for _, c := range cands {
		src.content[c.URL] = "body of " + c.ID
	}
	del := &fakeDeliverer{}
	return &harness{
		store: st,
		src:   src,
		del:   del,
		orch:  New(st, del, policy, logx.Nop(), nil),
		site:  Site{Name: "bseu", Destination: "@chan", Source: src},
	}
}

func (h *harness) poll(t *testing.T) Result {
	t.Helper()
	res := h.orch.Poll(context.Background(), h.site)
	if res.Err != nil {
		t.Fatalf("Poll err = %v", res.Err)
	}
	return res
}

func (h *harness) record(t *testing.T, id string) storage.Record {
	t.Helper()
	hd, err := h.store.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer hd.Close()
	rec, ok, err := hd.Get(context.Background(), h.site.Name, id)
	if err != nil || !ok {
		t.Fatalf("Get(%s) = %v, %v", id, ok, err)
	}
	return rec
}

func (h *harness) count(t *testing.T) int {
	t.Helper()
	hd, err := h.store.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer hd.Close()
	n, err := hd.Count(context.Background(), h.site.Name)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	return n
}

func TestBootstrapPersistsNewestAndSendsOne(t *testing.T) {
	t.Parallel()
	h := newHarness(t, DefaultPolicy(), items(50))

	res := h.poll(t)
	if res.Mode != ModeBootstrap {
		t.Fatalf("Mode = %s, want %s", res.Mode, ModeBootstrap)
	}
	if res.New != 30 {
		t.Fatalf("New = %d, want 30", res.New)
	}
	if n := h.count(t); n != 30 {
		t.Fatalf("Count = %d, want 30", n)
	}
	// Oldest kept is id 21; id 20 must not be stored.
	h.record(t, "21")
	hd, _ := h.store.Acquire(context.Background())
	if _, ok, _ := hd.Get(context.Background(), h.site.Name, "20"); ok {
		t.Fatal("id 20 stored, want only the 30 newest")
	}
	_ = hd.Close()

	sent := h.del.sent()
	if len(sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(sent))
	}
	if sent[0].Item.Title != "Duyuru 50" || sent[0].Kind != delivery.KindNew || sent[0].Destination != "@chan" {
		t.Fatalf("sent[0] = %+v", sent[0])
	}
	if sent[0].Item.Content != "body of 50" {
		t.Fatalf("Content = %q, want fetched detail", sent[0].Item.Content)
	}
	if res.Delivered != 1 || res.DeliveryFailed != 0 {
		t.Fatalf("Delivered/Failed = %d/%d, want 1/0", res.Delivered, res.DeliveryFailed)
	}
}

func TestBootstrapSendsOldestFirst(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Policy{BootstrapFetchLimit: 5, BootstrapSendLimit: 3, SteadyCheckWindow: 5, RecentDetailWindow: 2}, items(10))

	h.poll(t)
	sent := h.del.sent()
	want := []string{"Duyuru 8", "Duyuru 9", "Duyuru 10"}
	if len(sent) != len(want) {
		t.Fatalf("sent = %d, want %d", len(sent), len(want))
	}
	for i := range want {
		if sent[i].Item.Title != want[i] {
			t.Fatalf("sent[%d] = %q, want %q", i, sent[i].Item.Title, want[i])
		}
	}
}

func TestBootstrapAnnouncesRepeatedIDOnce(t *testing.T) {
	t.Parallel()
	cands := []scraper.Candidate{item(3), item(3), item(2), item(1)}
	h := newHarness(t, Policy{BootstrapFetchLimit: 4, BootstrapSendLimit: 3, SteadyCheckWindow: 4, RecentDetailWindow: 2}, cands)

	res := h.poll(t)
	if res.New != 3 || res.Delivered != 2 {
		t.Fatalf("New/Delivered = %d/%d, want 3/2", res.New, res.Delivered)
	}
	sent := h.del.sent()
	want := []string{"Duyuru 2", "Duyuru 3"}
	if len(sent) != len(want) {
		t.Fatalf("sent = %d, want %d", len(sent), len(want))
	}
	for i := range want {
		if sent[i].Item.Title != want[i] {
			t.Fatalf("sent[%d] = %q, want %q", i, sent[i].Item.Title, want[i])
		}
	}
}

func TestSecondPollIsSteadyAndQuiet(t *testing.T) {
	t.Parallel()
	h := newHarness(t, DefaultPolicy(), items(50))
	h.poll(t)
	h.del.reset()

	res := h.poll(t)
	if res.Mode != ModeSteady {
		t.Fatalf("Mode = %s, want %s", res.Mode, ModeSteady)
	}
	if res.New != 0 || res.Updated != 0 || len(h.del.sent()) != 0 {
		t.Fatalf("second poll New=%d Updated=%d sent=%d, want all zero", res.New, res.Updated, len(h.del.sent()))
	}
	if n := h.count(t); n != 30 {
		t.Fatalf("Count = %d, want 30", n)
	}
}

func TestSteadyDetectsOneNewItem(t *testing.T) {
	t.Parallel()
	h := newHarness(t, DefaultPolicy(), items(20))
	h.poll(t)
	h.del.reset()

	cands := append([]scraper.Candidate{item(21)}, items(20)...)
	h.src.setCandidates(cands)
	h.src.content[item(21).URL] = "fresh"

	res := h.poll(t)
	if res.New != 1 || res.Updated != 0 {
		t.Fatalf("New/Updated = %d/%d, want 1/0", res.New, res.Updated)
	}
	sent := h.del.sent()
	if len(sent) != 1 || sent[0].Item.Title != "Duyuru 21" || sent[0].Kind != delivery.KindNew {
		t.Fatalf("sent = %+v", sent)
	}
	if n := h.count(t); n != 21 {
		t.Fatalf("Count = %d, want 21", n)
	}
	rec := h.record(t, "21")
	if rec.ContentHash != fingerprint.Of("fresh", "Duyuru 21") || rec.RawContent != "fresh" {
		t.Fatalf("record = %+v", rec)
	}
}

func TestTitleChangeOutsideDetailWindow(t *testing.T) {
	t.Parallel()
	h := newHarness(t, DefaultPolicy(), items(20))
	h.poll(t)
	h.del.reset()
	h.src.resetCalls()

	// Oldest item: inside the steady window, outside the detail window.
	changed := item(1)
	changed.Title = "Duyuru 1 (ertelendi)"
	h.src.failing[changed.URL] = true
	cands := items(20)
	cands[len(cands)-1] = changed
	h.src.setCandidates(cands)

	res := h.poll(t)
	if res.Updated != 1 || res.New != 0 {
		t.Fatalf("Updated/New = %d/%d, want 1/0", res.Updated, res.New)
	}
	if got := h.src.calls(changed.URL); got != 1 {
		t.Fatalf("detail calls = %d, want 1", got)
	}
	sent := h.del.sent()
	if len(sent) != 1 || sent[0].Kind != delivery.KindUpdate || sent[0].Item.Title != changed.Title {
		t.Fatalf("sent = %+v", sent)
	}
	if sent[0].Item.Content != "" {
		t.Fatalf("Content = %q, want absent", sent[0].Item.Content)
	}

	rec := h.record(t, "1")
	if rec.Title != changed.Title {
		t.Fatalf("Title = %q, want %q", rec.Title, changed.Title)
	}
	if rec.ContentHash != fingerprint.Of("", changed.Title) || rec.RawContent != "" {
		t.Fatalf("record = %+v, want title fingerprint and no content", rec)
	}

	// Only the 5 most recent (ids 16..20) plus the changed item were fetched.
	for i := 2; i <= 15; i++ {
		if got := h.src.calls(item(i).URL); got != 0 {
			t.Fatalf("detail calls for %d = %d, want 0", i, got)
		}
	}
	for i := 16; i <= 20; i++ {
		if got := h.src.calls(item(i).URL); got != 1 {
			t.Fatalf("detail calls for %d = %d, want 1", i, got)
		}
	}
}

func TestContentChangeInsideDetailWindow(t *testing.T) {
	t.Parallel()
	h := newHarness(t, DefaultPolicy(), items(20))
	h.poll(t)
	h.del.reset()

	h.src.content[item(20).URL] = "revised body"
	h.src.content[item(2).URL] = "revised but outside the detail window"

	res := h.poll(t)
	if res.Updated != 1 {
		t.Fatalf("Updated = %d, want 1", res.Updated)
	}
	sent := h.del.sent()
	if len(sent) != 1 || sent[0].Item.Title != "Duyuru 20" || sent[0].Kind != delivery.KindUpdate || sent[0].Item.Content != "revised body" {
		t.Fatalf("sent = %+v", sent)
	}
	if rec := h.record(t, "20"); rec.RawContent != "revised body" {
		t.Fatalf("RawContent = %q", rec.RawContent)
	}
}

func TestDetailFailureInsideWindowIsNotAChange(t *testing.T) {
	t.Parallel()
	h := newHarness(t, DefaultPolicy(), items(20))
	h.poll(t)
	h.del.reset()

	h.src.failing[item(20).URL] = true
	res := h.poll(t)
	if res.Updated != 0 || len(h.del.sent()) != 0 {
		t.Fatalf("Updated = %d sent = %d, want 0/0", res.Updated, len(h.del.sent()))
	}
	if rec := h.record(t, "20"); rec.RawContent != "body of 20" {
		t.Fatalf("RawContent = %q, want unchanged", rec.RawContent)
	}
}

func TestEmptyListingIsNoop(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		setup func(*fakeSource)
	}{
		{"empty", func(s *fakeSource) { s.setCandidates(nil) }},
		{"transport error", func(s *fakeSource) { s.listErr = errors.New("connection reset") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, DefaultPolicy(), items(5))
			tt.setup(h.src)
			res := h.poll(t)
			if res.Mode != ModeSkipped {
				t.Fatalf("Mode = %s, want %s", res.Mode, ModeSkipped)
			}
			if n := h.count(t); n != 0 {
				t.Fatalf("Count = %d, want 0", n)
			}
			if len(h.del.sent()) != 0 {
				t.Fatalf("sent = %d, want 0", len(h.del.sent()))
			}
		})
	}
}

func TestDeliveryFailureKeepsRecord(t *testing.T) {
	t.Parallel()
	h := newHarness(t, DefaultPolicy(), items(3))
	h.poll(t)

	h.src.setCandidates(append([]scraper.Candidate{item(4)}, items(3)...))
	h.del.fail = func(delivery.Request) error { return delivery.ErrTimeout }
	res := h.poll(t)
	if res.New != 1 || res.DeliveryFailed != 1 || res.Delivered != 0 {
		t.Fatalf("New/Failed/Delivered = %d/%d/%d, want 1/1/0", res.New, res.DeliveryFailed, res.Delivered)
	}
	h.record(t, "4")

	h.del.fail = nil
	h.del.reset()
	res = h.poll(t)
	if res.New != 0 || len(h.del.sent()) != 0 {
		t.Fatalf("after failure New = %d sent = %d, want 0/0", res.New, len(h.del.sent()))
	}
}

func TestCandidatesWithoutIDAreSkipped(t *testing.T) {
	t.Parallel()
	h := newHarness(t, DefaultPolicy(), items(3))
	h.poll(t)
	h.del.reset()

	h.src.setCandidates(append([]scraper.Candidate{{Title: "no id", URL: "https://x.test/none"}}, items(3)...))
	res := h.poll(t)
	if res.New != 0 || len(h.del.sent()) != 0 {
		t.Fatalf("New = %d sent = %d, want 0/0", res.New, len(h.del.sent()))
	}
}

type countFailStore struct{ *storage.Store }

func (s countFailStore) Acquire(ctx context.Context) (storage.Handle, error) {
	h, err := s.Store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return countFailHandle{h}, nil
}

type countFailHandle struct{ storage.Handle }

func (countFailHandle) Count(context.Context, string) (int, error) {
	return 0, errDiskIO
}

func TestCountErrorAbortsPoll(t *testing.T) {
	t.Parallel()
	h := newHarness(t, DefaultPolicy(), items(5))
	orch := New(countFailStore{h.store}, h.del, DefaultPolicy(), logx.Nop(), nil)

	res := orch.Poll(context.Background(), h.site)
	if res.Err == nil {
		t.Fatal("Poll err = nil, want count error")
	}
	if len(h.del.sent()) != 0 || h.count(t) != 0 {
		t.Fatal("poll wrote or sent after a count error")
	}
}

// flakyStore hands out handles that fail one operation for chosen ids.
type flakyStore struct {
	*storage.Store
	mu   sync.Mutex
	fail map[string]string // op -> external id
}

func (s *flakyStore) set(op, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		delete(s.fail, op)
		return
	}
	s.fail[op] = id
}

func (s *flakyStore) failing(op, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail[op] == id
}

func (s *flakyStore) Acquire(ctx context.Context) (storage.Handle, error) {
	h, err := s.Store.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return flakyHandle{Handle: h, s: s}, nil
}

type flakyHandle struct {
	storage.Handle
	s *flakyStore
}

var errDiskIO = errors.New("disk I/O error")

func (h flakyHandle) InsertIfAbsent(ctx context.Context, rec storage.Record) (bool, error) {
	if h.s.failing("insert", rec.ExternalID) {
		return false, errDiskIO
	}
	return h.Handle.InsertIfAbsent(ctx, rec)
}

func (h flakyHandle) Get(ctx context.Context, site, id string) (storage.Record, bool, error) {
	if h.s.failing("get", id) {
		return storage.Record{}, false, errDiskIO
	}
	return h.Handle.Get(ctx, site, id)
}

func (h flakyHandle) Update(ctx context.Context, site, id, title, hash, raw string) (bool, error) {
	if h.s.failing("update", id) {
		return false, errDiskIO
	}
	return h.Handle.Update(ctx, site, id, title, hash, raw)
}

func TestStoreErrorSkipsItemUntilNextPoll(t *testing.T) {
	t.Parallel()
	renamed := item(3)
	renamed.Title = "Duyuru 3 (güncellendi)"

	tests := []struct {
		name     string
		op       string
		id       string
		cands    []scraper.Candidate
		failed   Result // New/Updated/Delivered while failing
		recovery Result // New/Updated/Delivered after recovery
		wantLast string
	}{
		{
			name:     "insert",
			op:       "insert",
			id:       "4",
			cands:    append([]scraper.Candidate{item(5), item(4)}, items(3)...),
			failed:   Result{New: 1, Delivered: 1},
			recovery: Result{New: 1, Delivered: 1},
			wantLast: "Duyuru 4",
		},
		{
			name:     "get",
			op:       "get",
			id:       "4",
			cands:    append([]scraper.Candidate{item(5), item(4)}, items(3)...),
			failed:   Result{New: 1, Delivered: 1},
			recovery: Result{New: 1, Delivered: 1},
			wantLast: "Duyuru 4",
		},
		{
			name:     "update",
			op:       "update",
			id:       "3",
			cands:    []scraper.Candidate{renamed, item(2), item(1)},
			failed:   Result{},
			recovery: Result{Updated: 1, Delivered: 1},
			wantLast: renamed.Title,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, DefaultPolicy(), items(3))
			flaky := &flakyStore{Store: h.store, fail: map[string]string{}}
			h.orch = New(flaky, h.del, DefaultPolicy(), logx.Nop(), nil)
			h.poll(t)
			h.del.reset()

			h.src.setCandidates(tt.cands)
			for _, c := range tt.cands {
				h.src.content[c.URL] = "body of " + c.ID
			}
			flaky.set(tt.op, tt.id)
			res := h.poll(t)
			if res.New != tt.failed.New || res.Updated != tt.failed.Updated || res.Delivered != tt.failed.Delivered {
				t.Fatalf("failing poll New/Updated/Delivered = %d/%d/%d, want %d/%d/%d",
					res.New, res.Updated, res.Delivered, tt.failed.New, tt.failed.Updated, tt.failed.Delivered)
			}
			for _, r := range h.del.sent() {
				if r.Item.Title == tt.wantLast {
					t.Fatalf("%q sent while its %s was failing", tt.wantLast, tt.op)
				}
			}

			flaky.set(tt.op, "")
			h.del.reset()
			res = h.poll(t)
			if res.New != tt.recovery.New || res.Updated != tt.recovery.Updated || res.Delivered != tt.recovery.Delivered {
				t.Fatalf("recovered poll New/Updated/Delivered = %d/%d/%d, want %d/%d/%d",
					res.New, res.Updated, res.Delivered, tt.recovery.New, tt.recovery.Updated, tt.recovery.Delivered)
			}
			sent := h.del.sent()
			if len(sent) != 1 || sent[0].Item.Title != tt.wantLast {
				t.Fatalf("recovered sent = %+v, want only %q", sent, tt.wantLast)
			}
			if rec := h.record(t, tt.id); rec.Title != tt.wantLast {
				t.Fatalf("stored Title = %q, want %q", rec.Title, tt.wantLast)
			}
		})
	}
}

func TestStoreUnavailableIsMarked(t *testing.T) {
	t.Parallel()
	h := newHarness(t, DefaultPolicy(), items(5))
	orch := New(countFailStore{h.store}, h.del, DefaultPolicy(), logx.Nop(), nil)

	res := orch.Poll(context.Background(), h.site)
	if !errors.Is(res.Err, ErrStoreUnavailable) {
		t.Fatalf("Poll err = %v, want ErrStoreUnavailable", res.Err)
	}
	if !errors.Is(res.Err, errDiskIO) {
		t.Fatalf("Poll err = %v, want the store error wrapped", res.Err)
	}

	_ = h.store.Close()
	res = New(h.store, h.del, DefaultPolicy(), logx.Nop(), nil).Poll(context.Background(), h.site)
	if !errors.Is(res.Err, ErrStoreUnavailable) || !errors.Is(res.Err, storage.ErrClosed) {
		t.Fatalf("Poll err on closed store = %v, want ErrStoreUnavailable wrapping ErrClosed", res.Err)
	}
}

func TestPanicIsContained(t *testing.T) {
	t.Parallel()
	h := newHarness(t, DefaultPolicy(), items(2))
	h.src.panicOnList = true

	bus := eventbus.New()
	events, unsub := bus.Subscribe(8)
	defer unsub()
	orch := New(h.store, h.del, DefaultPolicy(), logx.Nop(), bus)

	res := orch.Poll(context.Background(), h.site)
	if res.Err == nil {
		t.Fatal("Poll err = nil, want recovered panic")
	}

	var finished bool
	for len(events) > 0 {
		if ev := <-events; ev.Type == eventbus.PollFinished {
			finished = true
		}
	}
	if !finished {
		t.Fatal("no poll.finished event after panic")
	}

	h.src.panicOnList = false
	if res := orch.Poll(context.Background(), h.site); res.Err != nil || res.Mode != ModeBootstrap {
		t.Fatalf("next poll = %+v, want a clean bootstrap", res)
	}
}

func TestOverlappingPollsAnnounceOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t, DefaultPolicy(), items(10))
	h.poll(t)
	h.del.reset()

	h.src.setCandidates(append([]scraper.Candidate{item(11)}, items(10)...))
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.orch.Poll(context.Background(), h.site)
		}()
	}
	wg.Wait()

	if got := len(h.del.sent()); got != 1 {
		t.Fatalf("sent = %d, want 1", got)
	}
	if n := h.count(t); n != 11 {
		t.Fatalf("Count = %d, want 11", n)
	}
}

func TestPolicyValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		p       Policy
		wantErr bool
	}{
		{"default", DefaultPolicy(), false},
		{"all equal", Policy{10, 10, 10, 10}, false},
		{"zero send", Policy{10, 0, 5, 0}, false},
		{"zero fetch", Policy{0, 0, 0, 0}, true},
		{"send above fetch", Policy{10, 11, 5, 1}, true},
		{"steady above fetch", Policy{10, 1, 11, 1}, true},
		{"recent above steady", Policy{30, 1, 5, 6}, true},
		{"negative", Policy{10, -1, 5, 1}, true},
	}
	for _, tt := range tests {
		if err := tt.p.Validate(); (err != nil) != tt.wantErr {
			t.Fatalf("%s: Validate() = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}
