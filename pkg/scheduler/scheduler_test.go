package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irondiscipline/warden/pkg/session"
	"irondiscipline/warden/pkg/subject"
)

const waitFor = 2 * time.Second

type countingObserver struct {
	mu      sync.Mutex
	dropped map[string]int
}

func (o *countingObserver) TaskDropped(domain string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dropped == nil {
		o.dropped = make(map[string]int)
	}
	o.dropped[domain]++
}

func (o *countingObserver) count(domain string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped[domain]
}

func newTestScheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	if cfg.Shards == 0 {
		cfg.Shards = 4
	}
	s := New(cfg)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newPlayer(loc subject.Location) *session.LivePlayer {
	return session.NewLivePlayer(subject.NewID(), "tester", loc)
}

func waitDone(t *testing.T, task *Task) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(waitFor):
		t.Fatal("task did not finish in time")
	}
}

func TestRun_GlobalExecutesInOrder(t *testing.T) {
	s := newTestScheduler(t, Config{})

	var mu sync.Mutex
	var order []int
	var last *Task
	for i := 0; i < 50; i++ {
		i := i
		last = s.Run(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	waitDone(t, last)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 50)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
	assert.NoError(t, last.Err())
}

func TestRunAfter_Delays(t *testing.T) {
	s := newTestScheduler(t, Config{})

	start := time.Now()
	task := s.RunAfter(30*time.Millisecond, func() {})
	waitDone(t, task)

	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRunAfter_CancelBeforeFire(t *testing.T) {
	s := newTestScheduler(t, Config{})

	var ran atomic.Bool
	task := s.RunAfter(50*time.Millisecond, func() { ran.Store(true) })
	task.Cancel()
	waitDone(t, task)

	time.Sleep(80 * time.Millisecond)
	assert.False(t, ran.Load())
	assert.True(t, task.Cancelled())
	assert.NoError(t, task.Err())
}

func TestRunPeriodic_SelfCancel(t *testing.T) {
	s := newTestScheduler(t, Config{})

	var runs atomic.Int32
	task := s.RunPeriodic(0, 5*time.Millisecond, func(self *Task) {
		if runs.Add(1) == 3 {
			self.Cancel()
		}
	})
	waitDone(t, task)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(3), runs.Load())
}

func TestRunPeriodic_RejectsNonPositivePeriod(t *testing.T) {
	s := newTestScheduler(t, Config{})

	assert.Panics(t, func() {
		s.RunPeriodic(0, 0, func(*Task) {})
	})
}

func TestRunEntity_RunsOnOwningShard(t *testing.T) {
	s := newTestScheduler(t, Config{})
	p := newPlayer(subject.Location{World: "world", X: 10, Z: 10})
	s.Attach(p)

	var got subject.ID
	task := s.RunEntity(p.ID(), func(ec *EntityContext) {
		got = ec.Player().ID()
	})
	waitDone(t, task)

	require.NoError(t, task.Err())
	assert.Equal(t, p.ID(), got)
}

func TestRunEntity_DroppedWhenDetached(t *testing.T) {
	obs := &countingObserver{}
	s := newTestScheduler(t, Config{Observer: obs})
	p := newPlayer(subject.Location{World: "world"})

	// Never attached.
	task := s.RunEntity(p.ID(), func(*EntityContext) {
		t.Error("task for unattached subject must not run")
	})
	waitDone(t, task)
	assert.ErrorIs(t, task.Err(), ErrDropped)

	// Detached before the delay expires.
	s.Attach(p)
	task = s.RunEntityAfter(p.ID(), 20*time.Millisecond, func(*EntityContext) {
		t.Error("task for detached subject must not run")
	})
	s.Detach(p.ID())
	waitDone(t, task)
	assert.ErrorIs(t, task.Err(), ErrDropped)

	assert.Equal(t, 2, obs.count("entity"))
}

func TestRunEntityPeriodic_StopsOnDetach(t *testing.T) {
	s := newTestScheduler(t, Config{})
	p := newPlayer(subject.Location{World: "world"})
	s.Attach(p)

	var runs atomic.Int32
	task := s.RunEntityPeriodic(p.ID(), 0, 5*time.Millisecond, func(*EntityContext, *Task) {
		if runs.Add(1) == 2 {
			s.Detach(p.ID())
		}
	})
	waitDone(t, task)

	assert.ErrorIs(t, task.Err(), ErrDropped)
	assert.Equal(t, int32(2), runs.Load())
}

func TestMove_HandsOffQueuedTasks(t *testing.T) {
	s := newTestScheduler(t, Config{Shards: 8, RegionChunks: 1})
	from := subject.Location{World: "world", X: 0, Z: 0}
	p := newPlayer(from)
	s.Attach(p)

	// Find a location owned by a different shard.
	origin, _ := s.ShardOf(p.ID())
	var to subject.Location
	for i := 1; i < 1000; i++ {
		candidate := subject.Location{World: "world", X: float64(i * 16), Z: 0}
		if s.RegionShard(candidate) != origin {
			to = candidate
			break
		}
	}
	require.NotEmpty(t, to.World, "no location on another shard")

	// Block the origin shard so the entity task is still queued when the
	// subject moves.
	gate := make(chan struct{})
	s.RunRegion(from, func() { <-gate })

	task := s.RunEntity(p.ID(), func(ec *EntityContext) {
		ec.Player().Teleport(to)
	})
	require.True(t, s.Move(p.ID(), to))
	close(gate)
	waitDone(t, task)

	require.NoError(t, task.Err())
	shard, ok := s.ShardOf(p.ID())
	require.True(t, ok)
	assert.Equal(t, s.RegionShard(to), shard)
	assert.Equal(t, 1, p.Teleports())
}

func TestEntityContext_InvalidAfterCallback(t *testing.T) {
	s := newTestScheduler(t, Config{})
	p := newPlayer(subject.Location{World: "world"})
	s.Attach(p)

	var leaked *EntityContext
	task := s.RunEntity(p.ID(), func(ec *EntityContext) {
		assert.True(t, ec.Valid())
		leaked = ec
	})
	waitDone(t, task)

	require.NotNil(t, leaked)
	assert.False(t, leaked.Valid())

	// Late writes are refused.
	leaked.Player().SetGameMode(session.ModeCreative)
	assert.Equal(t, session.ModeSurvival, p.GameMode())
	assert.Equal(t, p.ID(), leaked.ID())
}

func TestEntityContext_DebugPanics(t *testing.T) {
	s := newTestScheduler(t, Config{Debug: true})
	p := newPlayer(subject.Location{World: "world"})
	s.Attach(p)

	var leaked *EntityContext
	waitDone(t, s.RunEntity(p.ID(), func(ec *EntityContext) { leaked = ec }))

	assert.PanicsWithError(t, ErrAffinity.Error()+": subject "+p.ID().String(), func() {
		leaked.Player()
	})
}

func TestRunEntityWait(t *testing.T) {
	s := newTestScheduler(t, Config{})
	p := newPlayer(subject.Location{World: "world"})
	s.Attach(p)

	boom := errors.New("boom")
	err := s.RunEntityWait(context.Background(), p.ID(), func(*EntityContext) error { return boom })
	assert.ErrorIs(t, err, boom)

	err = s.RunEntityWait(context.Background(), p.ID(), func(ec *EntityContext) error {
		ec.Player().SetGameMode(session.ModeAdventure)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, session.ModeAdventure, p.GameMode())

	err = s.RunEntityWait(context.Background(), subject.NewID(), func(*EntityContext) error { return nil })
	assert.ErrorIs(t, err, ErrDropped)
}

func TestRunEntityWait_ContextCancelled(t *testing.T) {
	s := newTestScheduler(t, Config{Shards: 1})
	p := newPlayer(subject.Location{World: "world"})
	s.Attach(p)

	gate := make(chan struct{})
	defer close(gate)
	s.RunRegion(p.Location(), func() { <-gate })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var ran atomic.Bool
	err := s.RunEntityWait(ctx, p.ID(), func(*EntityContext) error {
		ran.Store(true)
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ran.Load())
}

func TestRunEntityWait_WaitsForStartedCallback(t *testing.T) {
	s := newTestScheduler(t, Config{})
	p := newPlayer(subject.Location{World: "world"})
	s.Attach(p)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	gate := make(chan struct{})

	var captured session.GameMode
	result := make(chan error, 1)
	go func() {
		result <- s.RunEntityWait(ctx, p.ID(), func(ec *EntityContext) error {
			close(started)
			<-gate
			captured = ec.Player().GameMode()
			return nil
		})
	}()

	<-started
	cancel()
	select {
	case err := <-result:
		t.Fatalf("returned while the callback was running: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(gate)
	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("RunEntityWait did not return")
	}
	assert.Equal(t, p.GameMode(), captured)
}

func TestRunEntityWait_Panic(t *testing.T) {
	s := newTestScheduler(t, Config{})
	p := newPlayer(subject.Location{World: "world"})
	s.Attach(p)

	err := s.RunEntityWait(context.Background(), p.ID(), func(*EntityContext) error {
		panic("kaboom")
	})
	assert.ErrorIs(t, err, ErrPanicked)
}

func TestPanicInTaskIsContained(t *testing.T) {
	s := newTestScheduler(t, Config{})

	task := s.Run(func() { panic("kaboom") })
	waitDone(t, task)
	assert.ErrorIs(t, task.Err(), ErrPanicked)

	// The worker survives.
	waitDone(t, s.Run(func() {}))
}

func TestClose_RejectsAndAbortsPending(t *testing.T) {
	s := New(Config{Shards: 2})

	pending := s.RunAfter(time.Hour, func() {})
	periodic := s.RunPeriodic(time.Hour, time.Hour, func(*Task) {})

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	waitDone(t, pending)
	waitDone(t, periodic)
	assert.ErrorIs(t, pending.Err(), ErrClosed)
	assert.ErrorIs(t, periodic.Err(), ErrClosed)

	late := s.Run(func() { t.Error("task after close must not run") })
	waitDone(t, late)
	assert.ErrorIs(t, late.Err(), ErrClosed)
}

func TestRegionShard_Stable(t *testing.T) {
	s := newTestScheduler(t, Config{Shards: 16, RegionChunks: 4})

	a := subject.Location{World: "world", X: 1, Z: 1}
	b := subject.Location{World: "world", X: 63, Z: 63}
	assert.Equal(t, s.RegionShard(a), s.RegionShard(b), "same region must map to same shard")

	neg := subject.Location{World: "world", X: -1, Z: -1}
	negFar := subject.Location{World: "world", X: -64, Z: -64}
	assert.Equal(t, s.RegionShard(neg), s.RegionShard(negFar))
}
