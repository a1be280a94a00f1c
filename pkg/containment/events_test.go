package containment

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irondiscipline/warden/pkg/notify"
	"irondiscipline/warden/pkg/store"
	"irondiscipline/warden/pkg/subject"
)

type strayEvent struct{}

func (strayEvent) EventName() string { return "stray" }

func TestDispatch_Commands(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := newStockedPlayer("cleo")
	require.NoError(t, h.join(p))
	offline := subject.NewID()

	res, err := h.disp.Dispatch(ctx, ConfineCommand{Subject: p.Subject(), Reason: "spam"})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.True(t, h.ctrl.IsConfined(p.ID()))

	res, err = h.disp.Dispatch(ctx, ConfineCommand{Subject: p.Subject(), Reason: "spam"})
	assert.ErrorIs(t, err, ErrAlreadyConfined)
	assert.False(t, res.Accepted)

	res, err = h.disp.Dispatch(ctx, ConfineOfflineCommand{SubjectID: offline, DisplayName: "dora"})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.True(t, h.ctrl.IsConfined(offline))

	res, err = h.disp.Dispatch(ctx, ReleaseCommand{SubjectID: p.ID()})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.False(t, h.ctrl.IsConfined(p.ID()))

	res, err = h.disp.Dispatch(ctx, ReleaseCommand{SubjectID: p.ID()})
	assert.ErrorIs(t, err, ErrNotConfined)
	assert.False(t, res.Accepted)
}

func TestDispatch_UnknownEvent(t *testing.T) {
	h := newHarness(t)

	res, err := h.disp.Dispatch(context.Background(), strayEvent{})
	assert.ErrorIs(t, err, ErrUnknownEvent)
	assert.False(t, res.Accepted)
}

func TestDispatch_MoveOfDetachedSubject(t *testing.T) {
	h := newHarness(t)

	res, err := h.disp.Dispatch(context.Background(), MoveEvent{SubjectID: subject.NewID(), To: jailLoc})
	require.NoError(t, err)
	assert.False(t, res.Accepted)
}

func TestDispatch_LeaveDropsPendingWork(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := newStockedPlayer("eli")
	require.NoError(t, h.join(p))
	_, err := h.ctrl.Confine(ctx, p.Subject(), nil, "x")
	require.NoError(t, err)

	h.leave(t, p)

	assert.False(t, h.sched.Attached(p.ID()))
	assert.Zero(t, h.ctrl.BoundaryLoops())
	assert.True(t, h.ctrl.IsConfined(p.ID()))
}

func TestAllow_DeniesConfinedSubjects(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := subject.NewID()
	free := subject.NewID()
	_, err := h.ctrl.ConfineOffline(ctx, id, "fay", nil, "")
	require.NoError(t, err)

	for action := range deniedWhileConfined {
		res, err := h.disp.Dispatch(ctx, ActionEvent{SubjectID: id, Action: action})
		require.NoError(t, err)
		assert.False(t, res.Accepted, action)
		assert.True(t, h.ctrl.Allow(free, action), action)
	}

	assert.True(t, h.ctrl.Allow(id, Action("look_around")))
	assert.Equal(t, 1, h.notes.Count(id, notify.KeyChatBlocked))
	assert.Equal(t, 1, h.metrics.deniedCount(string(ActionBlockBreak)))
}

// slowReadBackend holds the first Get after it read the record, so a
// release can run while the result is in flight.
type slowReadBackend struct {
	store.Backend
	read    chan struct{}
	proceed chan struct{}
	armed   atomic.Bool
}

func (b *slowReadBackend) Get(ctx context.Context, id subject.ID) (*store.Record, error) {
	rec, err := b.Backend.Get(ctx, id)
	if b.armed.CompareAndSwap(true, false) {
		close(b.read)
		<-b.proceed
	}
	return rec, err
}

func TestDetail_StaleReadDoesNotResurrectRelease(t *testing.T) {
	ctx := context.Background()
	slow := &slowReadBackend{read: make(chan struct{}), proceed: make(chan struct{})}
	h := newHarness(t, withStore(func(m *store.MemoryBackend) store.Backend {
		slow.Backend = m
		return slow
	}))

	id := subject.NewID()
	_, err := h.ctrl.ConfineOffline(ctx, id, "gus", nil, "")
	require.NoError(t, err)
	// Force the next detail lookup to hit the store.
	h.cache.Invalidate(id)
	h.cache.AddMember(id)

	slow.armed.Store(true)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, found, err := h.ctrl.Detail(ctx, id)
		assert.NoError(t, err)
		assert.True(t, found, "the read itself saw the record")
	}()

	<-slow.read
	ok, err := h.ctrl.Release(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	close(slow.proceed)
	wg.Wait()

	_, cached := h.cache.Detail.Get(id)
	assert.False(t, cached, "a read that started before the release must not populate the cache")
	_, found, err := h.ctrl.Detail(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)
}
