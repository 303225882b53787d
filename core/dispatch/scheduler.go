package dispatch

import (
	"sync"
	"time"

	"github.com/kilianp07/dockyard/core/allocator"
	"github.com/kilianp07/dockyard/core/events"
	"github.com/kilianp07/dockyard/core/lifecycle"
	"github.com/kilianp07/dockyard/core/logger"
	"github.com/kilianp07/dockyard/core/metrics"
	"github.com/kilianp07/dockyard/core/queue"
	"github.com/kilianp07/dockyard/core/store"
)

// Scheduler reconciles the truck queue with the dock pool.
type Scheduler struct {
	cfg      Config
	alloc    *allocator.Allocator
	life     *lifecycle.Manager
	queue    *queue.Queue
	records  store.AssignmentStore
	selector Selector
	pub      events.Publisher
	sink     metrics.MetricsSink
	log      logger.Logger
	now      func() time.Time

	locks keyedMutex

	timersMu sync.Mutex
	timers   map[string]*releaseTimer
	nextTok  uint64
	closed   bool
	inflight sync.WaitGroup
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithSelector overrides the policy named in Config.
func WithSelector(sel Selector) Option { return func(s *Scheduler) { s.selector = sel } }

func WithPublisher(p events.Publisher) Option {
	return func(s *Scheduler) {
		if p != nil {
			s.pub = p
		}
	}
}

func WithMetricsSink(m metrics.MetricsSink) Option {
	return func(s *Scheduler) {
		if m != nil {
			s.sink = m
		}
	}
}

func WithLogger(l logger.Logger) Option { return func(s *Scheduler) { s.log = logger.OrNop(l) } }

func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

// New wires a Scheduler around its collaborators. records is normally the
// same store the allocator and lifecycle manager use.
func New(cfg Config, alloc *allocator.Allocator, life *lifecycle.Manager, q *queue.Queue, records store.AssignmentStore, opts ...Option) (*Scheduler, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scheduler{
		cfg:     cfg,
		alloc:   alloc,
		life:    life,
		queue:   q,
		records: records,
		pub:     events.NopPublisher{},
		sink:    metrics.NopSink{},
		log:     logger.Nop{},
		now:     time.Now,
		timers:  make(map[string]*releaseTimer),
	}
	for _, o := range opts {
		o(s)
	}
	if s.selector == nil {
		sel, err := NewSelector(cfg.Policy)
		if err != nil {
			return nil, err
		}
		s.selector = sel
	}
	return s, nil
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config { return s.cfg }

// Close stops every pending release timer and waits for callbacks already
// running. Open assignments are picked up again by Recover on the next start.
func (s *Scheduler) Close() error {
	s.timersMu.Lock()
	s.closed = true
	for id, rt := range s.timers {
		if rt.timer.Stop() {
			s.inflight.Done()
		}
		delete(s.timers, id)
	}
	pendingReleases.Set(0)
	s.timersMu.Unlock()
	s.inflight.Wait()
	return nil
}
