package scheduler

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"irondiscipline/warden/pkg/session"
	"irondiscipline/warden/pkg/subject"
)

const (
	// DefaultRegionChunks is the edge length of a region in chunks.
	DefaultRegionChunks = 8

	// chunkShift converts block coordinates to chunk coordinates.
	chunkShift = 4
)

// Observer receives scheduler events for metrics.
type Observer interface {
	TaskDropped(domain string)
}

type nopObserver struct{}

func (nopObserver) TaskDropped(string) {}

// Config configures a Scheduler.
type Config struct {
	// Shards is the number of region workers. Default: GOMAXPROCS.
	Shards int

	// RegionChunks is the edge length of a region in chunks.
	// Default: DefaultRegionChunks
	RegionChunks int

	// Debug makes affinity violations panic instead of being logged.
	Debug bool

	// Logger receives scheduler diagnostics. Default: slog.Default().
	Logger *slog.Logger

	// Observer receives drop notifications. Optional.
	Observer Observer
}

// binding records which shard currently owns an attached subject.
type binding struct {
	player session.Player
	shard  atomic.Int32
}

// Scheduler dispatches work to global, region and entity execution contexts.
type Scheduler struct {
	global       *worker
	shards       []*worker
	regionChunks int
	debug        bool
	logger       *slog.Logger
	observer     Observer
	closed       atomic.Bool
	wg           sync.WaitGroup

	mu       sync.RWMutex
	entities map[subject.ID]*binding

	tasksMu sync.Mutex
	tasks   map[*Task]struct{}
}

// New creates a scheduler and starts its workers.
func New(cfg Config) *Scheduler {
	if cfg.Shards <= 0 {
		cfg.Shards = runtime.GOMAXPROCS(0)
	}
	if cfg.RegionChunks <= 0 {
		cfg.RegionChunks = DefaultRegionChunks
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}

	logger := cfg.Logger.With("component", "scheduler")
	s := &Scheduler{
		global:       newWorker("global", logger),
		shards:       make([]*worker, cfg.Shards),
		regionChunks: cfg.RegionChunks,
		debug:        cfg.Debug,
		logger:       logger,
		observer:     cfg.Observer,
		entities:     make(map[subject.ID]*binding),
		tasks:        make(map[*Task]struct{}),
	}
	for i := range s.shards {
		s.shards[i] = newWorker(fmt.Sprintf("shard-%d", i), logger)
	}

	s.start(s.global)
	for _, w := range s.shards {
		s.start(w)
	}

	logger.Info("scheduler started", "shards", cfg.Shards, "region_chunks", cfg.RegionChunks, "debug", cfg.Debug)
	return s
}

func (s *Scheduler) start(w *worker) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		w.run()
	}()
}

// Close stops all workers and timers. Pending tasks finish with ErrClosed.
// Close waits for running callbacks to return and is safe to call more than
// once.
func (s *Scheduler) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.tasksMu.Lock()
	pending := make([]*Task, 0, len(s.tasks))
	for t := range s.tasks {
		pending = append(pending, t)
	}
	s.tasksMu.Unlock()

	for _, t := range pending {
		t.abort(ErrClosed)
	}

	s.global.close()
	for _, w := range s.shards {
		w.close()
	}
	s.wg.Wait()

	s.logger.Info("scheduler stopped")
	return nil
}

// Attach binds a subject to the shard owning its current region. Attaching
// an already attached subject replaces the live handle.
func (s *Scheduler) Attach(p session.Player) {
	b := &binding{player: p}
	b.shard.Store(int32(s.regionShard(p.Location())))

	s.mu.Lock()
	s.entities[p.ID()] = b
	s.mu.Unlock()
}

// Move hands a subject off to the shard owning loc. Tasks already queued on
// the previous shard follow the subject. It reports false for unknown
// subjects.
func (s *Scheduler) Move(id subject.ID, loc subject.Location) bool {
	b := s.binding(id)
	if b == nil {
		return false
	}
	b.shard.Store(int32(s.regionShard(loc)))
	return true
}

// Detach unbinds a subject. Entity tasks that come due afterwards are dropped.
func (s *Scheduler) Detach(id subject.ID) {
	s.mu.Lock()
	delete(s.entities, id)
	s.mu.Unlock()
}

// Attached reports whether the subject is bound.
func (s *Scheduler) Attached(id subject.ID) bool {
	return s.binding(id) != nil
}

// ShardOf returns the shard currently owning the subject.
func (s *Scheduler) ShardOf(id subject.ID) (int, bool) {
	b := s.binding(id)
	if b == nil {
		return 0, false
	}
	return int(b.shard.Load()), true
}

// RegionShard returns the shard owning the region that contains loc.
func (s *Scheduler) RegionShard(loc subject.Location) int {
	return s.regionShard(loc)
}

func (s *Scheduler) binding(id subject.ID) *binding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entities[id]
}

func (s *Scheduler) regionShard(loc subject.Location) int {
	bx, bz := loc.Block()
	rx := floorDiv(bx>>chunkShift, s.regionChunks)
	rz := floorDiv(bz>>chunkShift, s.regionChunks)

	h := fnv.New32a()
	h.Write([]byte(loc.World))
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(int64(rx)))
	binary.LittleEndian.PutUint64(buf[8:], uint64(int64(rz)))
	h.Write(buf[:])

	return int(h.Sum32() % uint32(len(s.shards)))
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Run executes fn on the global context.
func (s *Scheduler) Run(fn func()) *Task {
	return s.RunAfter(0, fn)
}

// RunAfter executes fn on the global context after delay.
func (s *Scheduler) RunAfter(delay time.Duration, fn func()) *Task {
	return s.runOn(DomainGlobal, func() *worker { return s.global }, delay, 0, func(*Task) { fn() })
}

// RunPeriodic executes fn on the global context after delay and then every
// period. It panics if period is not positive.
func (s *Scheduler) RunPeriodic(delay, period time.Duration, fn func(*Task)) *Task {
	mustPeriod(period)
	return s.runOn(DomainGlobal, func() *worker { return s.global }, delay, period, fn)
}

// RunRegion executes fn on the context owning loc's region.
func (s *Scheduler) RunRegion(loc subject.Location, fn func()) *Task {
	return s.RunRegionAfter(loc, 0, fn)
}

// RunRegionAfter executes fn on the context owning loc's region after delay.
func (s *Scheduler) RunRegionAfter(loc subject.Location, delay time.Duration, fn func()) *Task {
	w := s.shards[s.regionShard(loc)]
	return s.runOn(DomainRegion, func() *worker { return w }, delay, 0, func(*Task) { fn() })
}

// RunRegionPeriodic executes fn on the context owning loc's region after
// delay and then every period. It panics if period is not positive.
func (s *Scheduler) RunRegionPeriodic(loc subject.Location, delay, period time.Duration, fn func(*Task)) *Task {
	mustPeriod(period)
	w := s.shards[s.regionShard(loc)]
	return s.runOn(DomainRegion, func() *worker { return w }, delay, period, fn)
}

// RunEntity executes fn on the context owning the subject.
func (s *Scheduler) RunEntity(id subject.ID, fn func(*EntityContext)) *Task {
	return s.RunEntityAfter(id, 0, fn)
}

// RunEntityAfter executes fn on the context owning the subject after delay.
func (s *Scheduler) RunEntityAfter(id subject.ID, delay time.Duration, fn func(*EntityContext)) *Task {
	return s.runEntity(id, delay, 0, func(ec *EntityContext, _ *Task) { fn(ec) })
}

// RunEntityPeriodic executes fn on the context owning the subject after delay
// and then every period, until cancelled or the subject detaches. It panics if
// period is not positive.
func (s *Scheduler) RunEntityPeriodic(id subject.ID, delay, period time.Duration, fn func(*EntityContext, *Task)) *Task {
	mustPeriod(period)
	return s.runEntity(id, delay, period, fn)
}

// RunEntityWait executes fn on the context owning the subject and waits for
// it. It returns fn's error, ErrDropped if the subject is not attached,
// ErrClosed, or ErrPanicked. If ctx ends before fn started, the task is
// cancelled and ctx.Err() is returned; once fn has started, RunEntityWait
// waits for it regardless of ctx, so anything fn wrote is safe to read.
func (s *Scheduler) RunEntityWait(ctx context.Context, id subject.ID, fn func(*EntityContext) error) error {
	var (
		state    atomic.Int32
		ran      = make(chan struct{})
		finished bool
		fnErr    error
	)
	t := s.RunEntity(id, func(ec *EntityContext) {
		if !state.CompareAndSwap(waitPending, waitRunning) {
			return
		}
		defer close(ran)
		fnErr = fn(ec)
		finished = true
	})

	select {
	case <-t.Done():
	case <-ctx.Done():
	}

	if state.CompareAndSwap(waitPending, waitAbandoned) {
		t.Cancel()
		if err := t.Err(); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return context.Canceled
	}

	<-ran
	if !finished {
		// The worker aborts the task with the panic value.
		<-t.Done()
		return t.Err()
	}
	return fnErr
}

// RunEntityWait callback states.
const (
	waitPending int32 = iota
	waitRunning
	waitAbandoned
)

func mustPeriod(period time.Duration) {
	if period <= 0 {
		panic("scheduler: non-positive period")
	}
}

func (s *Scheduler) newTask(d Domain, period time.Duration) *Task {
	t := newTask(d, period, s.untrack)
	if s.closed.Load() {
		t.finish(ErrClosed)
		return t
	}
	s.tasksMu.Lock()
	s.tasks[t] = struct{}{}
	s.tasksMu.Unlock()
	return t
}

func (s *Scheduler) untrack(t *Task) {
	s.tasksMu.Lock()
	delete(s.tasks, t)
	s.tasksMu.Unlock()
}

// schedule fires the task now or arms a timer for the first execution.
func (s *Scheduler) schedule(t *Task, delay time.Duration, fire func()) *Task {
	if t.finished() {
		return t
	}
	if delay <= 0 {
		fire()
		return t
	}
	t.arm(time.AfterFunc(delay, fire))
	return t
}

// completed runs after each execution: periodic tasks are re-armed, one-shot
// tasks finish.
func (s *Scheduler) completed(t *Task, fire func()) {
	if t.period > 0 && !t.Cancelled() && !s.closed.Load() {
		t.arm(time.AfterFunc(t.period, fire))
		return
	}
	t.finish(nil)
}

func (s *Scheduler) enqueue(w *worker, t *Task, run func()) {
	if !w.enqueue(job{task: t, run: run}) {
		t.finish(ErrClosed)
	}
}

func (s *Scheduler) runOn(d Domain, target func() *worker, delay, period time.Duration, fn func(*Task)) *Task {
	t := s.newTask(d, period)

	var fire func()
	fire = func() {
		if t.finished() {
			return
		}
		s.enqueue(target(), t, func() {
			fn(t)
			s.completed(t, fire)
		})
	}
	return s.schedule(t, delay, fire)
}

func (s *Scheduler) runEntity(id subject.ID, delay, period time.Duration, fn func(*EntityContext, *Task)) *Task {
	t := s.newTask(DomainEntity, period)

	var fire func()
	fire = func() {
		if t.finished() {
			return
		}
		b := s.binding(id)
		if b == nil {
			s.drop(t, id)
			return
		}
		shard := b.shard.Load()
		s.enqueue(s.shards[shard], t, func() {
			s.execEntity(t, id, shard, fn, fire)
		})
	}
	return s.schedule(t, delay, fire)
}

// execEntity runs on shard. If the subject moved to another shard since the
// job was queued, the job is forwarded there.
func (s *Scheduler) execEntity(t *Task, id subject.ID, shard int32, fn func(*EntityContext, *Task), fire func()) {
	b := s.binding(id)
	if b == nil {
		s.drop(t, id)
		return
	}
	if cur := b.shard.Load(); cur != shard {
		s.enqueue(s.shards[cur], t, func() {
			s.execEntity(t, id, cur, fn, fire)
		})
		return
	}

	ec := newEntityContext(b.player, s.debug, s.logger)
	func() {
		defer ec.revoke()
		fn(ec, t)
	}()
	s.completed(t, fire)
}

func (s *Scheduler) drop(t *Task, id subject.ID) {
	t.abort(ErrDropped)
	s.observer.TaskDropped(t.domain.String())
	s.logger.Debug("dropped entity task", "subject_id", id.String(), "periodic", t.Periodic())
}
