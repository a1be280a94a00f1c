package containment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"irondiscipline/warden/pkg/cache"
	"irondiscipline/warden/pkg/notify"
	"irondiscipline/warden/pkg/possession"
	"irondiscipline/warden/pkg/scheduler"
	"irondiscipline/warden/pkg/session"
	"irondiscipline/warden/pkg/store"
	"irondiscipline/warden/pkg/subject"
	"irondiscipline/warden/pkg/telemetry/logging"
	"irondiscipline/warden/pkg/telemetry/tracing"
)

// Detail is the cached view of a confinement record without its snapshot.
type Detail = store.Detail

// LocationProvider supplies the confinement area. Location returns nil when
// no location is configured.
type LocationProvider interface {
	Location() *subject.Location
	Radius() float64
}

// Metrics receives controller outcomes.
type Metrics interface {
	RecordTransition(op, outcome string, d time.Duration)
	RecordReconcile(outcome string)
	RecordBoundaryTeleport()
	RecordDenied(action string)
	SetConfined(n int)
}

type nopMetrics struct{}

func (nopMetrics) RecordTransition(string, string, time.Duration) {}
func (nopMetrics) RecordReconcile(string)                         {}
func (nopMetrics) RecordBoundaryTeleport()                        {}
func (nopMetrics) RecordDenied(string)                            {}
func (nopMetrics) SetConfined(int)                                {}

// Settings are the tunables of the controller.
type Settings struct {
	// BoundaryInterval is the period of the per-subject boundary loop.
	// Default: 1s
	BoundaryInterval time.Duration

	// ConfinedMode is applied on confinement. Default: adventure
	ConfinedMode session.GameMode

	// ReleaseMode is applied on release. Default: survival
	ReleaseMode session.GameMode

	// OfflineReason is recorded for offline confinements without a reason.
	// Default: "jail_reason_offline"
	OfflineReason string
}

// Deps are the collaborators of a Controller. Store, Cache, Scheduler,
// Sessions and Location are required.
type Deps struct {
	Store     store.Backend
	Cache     *cache.Layer
	Scheduler *scheduler.Scheduler
	Sessions  session.Directory
	Location  LocationProvider

	Capturer possession.Capturer
	Codec    *possession.Codec
	Notifier notify.Sink
	Metrics  Metrics
	Tracer   trace.Tracer
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Controller owns the confinement lifecycle of every subject.
type Controller struct {
	store    store.Backend
	cache    *cache.Layer
	sched    *scheduler.Scheduler
	sessions session.Directory
	location LocationProvider
	capturer possession.Capturer
	codec    *possession.Codec
	notifier notify.Sink
	metrics  Metrics
	tracer   trace.Tracer
	logger   *slog.Logger
	clock    func() time.Time
	settings Settings

	mu          sync.Mutex
	transitions map[subject.ID]transition
	boundaries  map[subject.ID]*scheduler.Task
}

// New creates a controller.
func New(deps Deps, settings Settings) (*Controller, error) {
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("containment: store is required")
	case deps.Cache == nil:
		return nil, fmt.Errorf("containment: cache is required")
	case deps.Scheduler == nil:
		return nil, fmt.Errorf("containment: scheduler is required")
	case deps.Sessions == nil:
		return nil, fmt.Errorf("containment: session directory is required")
	case deps.Location == nil:
		return nil, fmt.Errorf("containment: location provider is required")
	}

	if deps.Capturer == nil {
		deps.Capturer = possession.SlotCapturer{}
	}
	if deps.Codec == nil {
		deps.Codec = possession.NewCodec()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.LogSink{Logger: deps.Logger}
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(tracing.InstrumentationName)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	if settings.BoundaryInterval <= 0 {
		settings.BoundaryInterval = time.Second
	}
	if settings.ConfinedMode == "" {
		settings.ConfinedMode = session.ModeAdventure
	}
	if settings.ReleaseMode == "" {
		settings.ReleaseMode = session.ModeSurvival
	}
	if settings.OfflineReason == "" {
		settings.OfflineReason = "jail_reason_offline"
	}

	return &Controller{
		store:       deps.Store,
		cache:       deps.Cache,
		sched:       deps.Scheduler,
		sessions:    deps.Sessions,
		location:    deps.Location,
		capturer:    deps.Capturer,
		codec:       deps.Codec,
		notifier:    deps.Notifier,
		metrics:     deps.Metrics,
		tracer:      deps.Tracer,
		logger:      deps.Logger.With("component", "containment.controller"),
		clock:       deps.Clock,
		settings:    settings,
		transitions: make(map[subject.ID]transition),
		boundaries:  make(map[subject.ID]*scheduler.Task),
	}, nil
}

// IsConfined reports membership only. It never blocks on I/O.
func (c *Controller) IsConfined(id subject.ID) bool {
	return c.cache.IsMember(id)
}

// Detail returns the confinement detail of id from the cache or the store.
func (c *Controller) Detail(ctx context.Context, id subject.ID) (Detail, bool, error) {
	d, found, err := c.cache.Load(ctx, id, c.store.Get)
	if err != nil {
		return Detail{}, false, persistenceErr("detail", id, err)
	}
	return d, found, nil
}

// Confined returns every subject believed confined.
func (c *Controller) Confined() []subject.ID {
	return c.cache.Members()
}

// startOp opens a span and enriches ctx with log fields.
func (c *Controller) startOp(ctx context.Context, op string, id subject.ID) (context.Context, trace.Span) {
	ctx = logging.WithOperation(logging.WithSubject(ctx, id), op)
	return c.tracer.Start(ctx, "containment."+op, tracing.Subject(id))
}

// finishOp records the outcome of op on its span and in metrics.
func (c *Controller) finishOp(span trace.Span, op string, start time.Time, ok bool, err error) {
	outcome := "rejected"
	switch {
	case err != nil && !isRejection(err):
		outcome = "failed"
		tracing.SetError(span, err)
	case ok:
		outcome = "ok"
	}
	tracing.SetOutcome(span, outcome)
	span.End()

	c.metrics.RecordTransition(op, outcome, time.Since(start))
	c.metrics.SetConfined(c.cache.MemberCount())
}

func (c *Controller) notify(id subject.ID, key string, params map[string]string) {
	c.notifier.Notify(id, key, params)
}

// encode serializes both halves of a snapshot concurrently.
func (c *Controller) encode(ctx context.Context, snap possession.Snapshot) (inv, armor string, err error) {
	return encodeSnapshot(ctx, c.codec, snap)
}
