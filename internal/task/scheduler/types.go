package scheduler

import (
	"context"
	"sync"
	"time"

	"duyurubot/internal/eventbus"
	"duyurubot/internal/task/engine"
	logx "duyurubot/pkg/logx"

	"github.com/robfig/cron/v3"
)

// DefaultTimezone is used when Config.Timezone is empty.
const DefaultTimezone = "Europe/Istanbul"

// Config controls the scheduler (trigger) service.
type Config struct {
	Enabled  bool
	Timezone string // IANA TZ; "" means DefaultTimezone
}

// Re-export execution types from engine.
type OverlapPolicy = engine.OverlapPolicy

type TaskOptions = engine.TaskOptions

type HistoryItem = engine.HistoryItem

const (
	OverlapAllow         = engine.OverlapAllow
	OverlapSkipIfRunning = engine.OverlapSkipIfRunning
)

// Enqueuer is the part of the task engine the scheduler drives.
type Enqueuer interface {
	Enqueue(t engine.Task) error
	Snapshot() engine.Snapshot
}

type scheduleDef struct {
	id            string
	name          string
	spec          string // cron spec or @every
	timeout       time.Duration
	job           func(ctx context.Context) error
	entryID       cron.EntryID
	startupSpread time.Duration // initial random delay for @every schedules
	opt           TaskOptions
	state         *engine.RunState
}

// onceDef outlives Stop so a pending one-shot resumes on the next Start.
type onceDef struct {
	at      time.Time
	timeout time.Duration
	job     func(ctx context.Context) error
	ver     uint64
	timer   *time.Timer
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location
	bus eventbus.Bus

	engine Enqueuer

	parser cron.Parser
	c      *cron.Cron
	defs   []scheduleDef

	// Enqueue error throttling: key is schedule name.
	enqMu       sync.Mutex
	lastEnqWarn map[string]time.Time

	tmu     sync.Mutex
	once    map[string]*onceDef
	onceSeq uint64
	armed   bool // one-shot timers run only while started
}

type ScheduleInfo struct {
	ID      string
	Name    string
	Spec    string
	Timeout time.Duration
	Next    time.Time
	Prev    time.Time
}

type OnceInfo struct {
	Name string
	At   time.Time
}

type Snapshot struct {
	Enabled  bool
	Timezone string

	// Executor diagnostics (task engine).
	Workers          int
	InFlight         int
	QueueLen         int
	QueueCap         int
	Dropped          uint64
	DroppedQueueFull uint64
	DroppedStale     uint64
	DefaultTimeout   time.Duration
	MaxQueueDelay    time.Duration
	RetryMax         int
	RetryBase        time.Duration
	RetryMaxDelay    time.Duration

	Schedules []ScheduleInfo
	Once      []OnceInfo
	History   []HistoryItem
}
