package containment

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"irondiscipline/warden/pkg/cache"
	"irondiscipline/warden/pkg/notify"
	"irondiscipline/warden/pkg/possession"
	"irondiscipline/warden/pkg/scheduler"
	"irondiscipline/warden/pkg/session"
	"irondiscipline/warden/pkg/store"
	"irondiscipline/warden/pkg/subject"
)

var (
	jailLoc  = subject.Location{World: "world", X: 100, Y: 64, Z: 100}
	spawnLoc = subject.Location{World: "world", X: 0, Y: 70, Z: 0, Yaw: 90}
)

type staticLocation struct {
	mu     sync.Mutex
	loc    *subject.Location
	radius float64
}

func (s *staticLocation) Location() *subject.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc == nil {
		return nil
	}
	loc := *s.loc
	return &loc
}

func (s *staticLocation) Radius() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.radius
}

func (s *staticLocation) set(loc *subject.Location) {
	s.mu.Lock()
	s.loc = loc
	s.mu.Unlock()
}

// countingCapturer counts how often live possessions were wiped.
type countingCapturer struct {
	possession.SlotCapturer
	clears atomic.Int32
}

func (c *countingCapturer) Clear(h possession.Holder) {
	c.clears.Add(1)
	c.SlotCapturer.Clear(h)
}

type recordingMetrics struct {
	mu          sync.Mutex
	transitions map[string]int
	reconciles  map[string]int
	denied      map[string]int
	teleports   int
	confined    int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		transitions: make(map[string]int),
		reconciles:  make(map[string]int),
		denied:      make(map[string]int),
	}
}

func (m *recordingMetrics) RecordTransition(op, outcome string, _ time.Duration) {
	m.mu.Lock()
	m.transitions[op+"/"+outcome]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordReconcile(outcome string) {
	m.mu.Lock()
	m.reconciles[outcome]++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordBoundaryTeleport() {
	m.mu.Lock()
	m.teleports++
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordDenied(action string) {
	m.mu.Lock()
	m.denied[action]++
	m.mu.Unlock()
}

func (m *recordingMetrics) SetConfined(n int) {
	m.mu.Lock()
	m.confined = n
	m.mu.Unlock()
}

func (m *recordingMetrics) transition(op, outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitions[op+"/"+outcome]
}

func (m *recordingMetrics) confinedGauge() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.confined
}

func (m *recordingMetrics) teleportCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.teleports
}

func (m *recordingMetrics) deniedCount(action string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.denied[action]
}

func (m *recordingMetrics) reconcile(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconciles[outcome]
}

type harness struct {
	store    *store.MemoryBackend
	cache    *cache.Layer
	sched    *scheduler.Scheduler
	sessions *session.Registry
	location *staticLocation
	notes    *notify.Recorder
	capturer *countingCapturer
	metrics  *recordingMetrics
	ctrl     *Controller
	disp     *Dispatcher
}

type harnessOption func(*Deps, *Settings)

func withStore(fn func(*store.MemoryBackend) store.Backend) harnessOption {
	return func(d *Deps, _ *Settings) {
		d.Store = fn(d.Store.(*store.MemoryBackend))
	}
}

func withBoundaryInterval(d time.Duration) harnessOption {
	return func(_ *Deps, s *Settings) {
		s.BoundaryInterval = d
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	loc := jailLoc
	h := &harness{
		store:    store.NewMemoryBackend(),
		cache:    cache.New(),
		sched:    scheduler.New(scheduler.Config{Shards: 4}),
		sessions: session.NewRegistry(),
		location: &staticLocation{loc: &loc, radius: 10},
		notes:    &notify.Recorder{},
		capturer: &countingCapturer{},
		metrics:  newRecordingMetrics(),
	}
	t.Cleanup(func() { _ = h.sched.Close() })

	deps := Deps{
		Store:     h.store,
		Cache:     h.cache,
		Scheduler: h.sched,
		Sessions:  h.sessions,
		Location:  h.location,
		Capturer:  h.capturer,
		Notifier:  h.notes,
		Metrics:   h.metrics,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	// Boundary loops are exercised explicitly where needed.
	settings := Settings{BoundaryInterval: time.Hour}
	for _, opt := range opts {
		opt(&deps, &settings)
	}

	ctrl, err := New(deps, settings)
	require.NoError(t, err)
	h.ctrl = ctrl
	h.disp = NewDispatcher(ctrl)
	return h
}

// join brings p online the way the host does.
func (h *harness) join(p *session.LivePlayer) error {
	h.sessions.Join(p)
	_, err := h.disp.Dispatch(context.Background(), JoinEvent{Player: p})
	return err
}

func (h *harness) leave(t *testing.T, p *session.LivePlayer) {
	t.Helper()
	h.sessions.Leave(p.ID())
	_, err := h.disp.Dispatch(context.Background(), LeaveEvent{SubjectID: p.ID()})
	require.NoError(t, err)
}

func (h *harness) record(t *testing.T, id subject.ID) *store.Record {
	t.Helper()
	rec, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return rec
}

// newStockedPlayer creates a player at spawn carrying a sword, bread and a
// helmet.
func newStockedPlayer(name string) *session.LivePlayer {
	return stockedPlayer(subject.NewID(), name)
}

func stockedPlayer(id subject.ID, name string) *session.LivePlayer {
	p := session.NewLivePlayer(id, name, spawnLoc)
	p.Give(&possession.Item{
		Material:     "diamond_sword",
		Amount:       1,
		Durability:   12,
		Name:         "Oathkeeper",
		Enchantments: map[string]int{"sharpness": 5},
	})
	p.Give(&possession.Item{Material: "bread", Amount: 32})
	armor := make([]*possession.Item, session.ArmorSlots)
	armor[3] = &possession.Item{Material: "iron_helmet", Amount: 1}
	p.SetArmor(armor)
	return p
}

func snapshotOf(p *session.LivePlayer) possession.Snapshot {
	return possession.SlotCapturer{}.Capture(p)
}

func emptied(p *session.LivePlayer) bool {
	return possession.CountItems(p.Inventory()) == 0 && possession.CountItems(p.Armor()) == 0
}
