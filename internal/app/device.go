// ABOUTME: Composition root wiring one device: storage, session, rest timer, templates and sync.
// ABOUTME: Every component is an explicit instance owned by the Device; nothing is global.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harperreed/fitcore/internal/catalog"
	"github.com/harperreed/fitcore/internal/charm"
	"github.com/harperreed/fitcore/internal/clock"
	"github.com/harperreed/fitcore/internal/config"
	"github.com/harperreed/fitcore/internal/health"
	"github.com/harperreed/fitcore/internal/history"
	"github.com/harperreed/fitcore/internal/models"
	"github.com/harperreed/fitcore/internal/owner"
	"github.com/harperreed/fitcore/internal/resttimer"
	"github.com/harperreed/fitcore/internal/session"
	"github.com/harperreed/fitcore/internal/storage"
	fitsync "github.com/harperreed/fitcore/internal/sync"
	"github.com/harperreed/fitcore/internal/templates"
	"golang.org/x/sync/errgroup"
)

// MetricsFile is the samples file read by the file health provider, relative
// to the data directory.
const MetricsFile = "metrics.json"

// settleTimeout bounds how long Close waits for in-flight sends.
const settleTimeout = 5 * time.Second

// handlerSetter is a channel that delivers inbound bytes to a registered
// callback.
type handlerSetter interface {
	Listen(fn func([]byte))
}

// confirmingQueue deletes a queued message only after the delivery
// function reports it applied.
type confirmingQueue interface {
	Deliver(fn func(ctx context.Context, raw []byte) error)
}

// blockingListener is a channel that delivers inbound bytes while Listen runs.
type blockingListener interface {
	Listen(ctx context.Context, fn func([]byte)) error
}

// drainer is a queued channel collected on demand.
type drainer interface {
	Drain(ctx context.Context) (int, error)
}

// Options configures New. Store is required.
type Options struct {
	DeviceID     string
	Clock        clock.Clock
	Store        storage.Gateway
	Provider     health.Provider
	Notifier     health.Notifier
	Direct       fitsync.DirectChannel
	Queued       fitsync.QueuedChannel
	Logger       *slog.Logger
	RestTimers   bool
	WeeklyGoal   int
	// Catalog names the exercises offered when building a draft; nil uses
	// the embedded list.
	Catalog *catalog.Catalog
	TickInterval time.Duration
	PollInterval time.Duration
	// Go runs background work; nil uses owner.SafeGo.
	Go func(name string, fn func())
	// Closers are closed by Close after the store.
	Closers []io.Closer
}

// Device is one fitcore participant: a phone or a watch.
type Device struct {
	ID        string
	Loop      *owner.Loop
	Clock     clock.Clock
	Store     storage.Gateway
	Archive   *history.Archive
	Templates *templates.Store
	Rest      *resttimer.Engine
	Session   *session.Controller
	Bridge    *fitsync.Bridge
	Provider  health.Provider
	Catalog   *catalog.Catalog
	// Charm is set when a Charm KV backend or queue is configured.
	Charm *charm.Client

	logger       *slog.Logger
	ticker       *clock.Periodic
	ticking      bool
	direct       fitsync.DirectChannel
	queued       fitsync.QueuedChannel
	pollInterval time.Duration
	closers      []io.Closer
	cancel       context.CancelFunc
	goFn         func(name string, fn func())
	bg           sync.WaitGroup
	running      atomic.Bool
	ready        chan struct{}
	readyOnce    sync.Once
}

// New wires a device from already-open components. Call Start or Run before
// using it.
func New(opts Options) *Device {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	provider := opts.Provider
	if provider == nil {
		provider = health.Unavailable{}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = health.LogNotifier{Logger: logger}
	}

	d := &Device{
		ID:           opts.DeviceID,
		Loop:         owner.New(logger, 0),
		Clock:        clk,
		Store:        opts.Store,
		Provider:     provider,
		logger:       logger,
		direct:       opts.Direct,
		queued:       opts.Queued,
		pollInterval: opts.PollInterval,
		closers:      opts.Closers,
		ready:        make(chan struct{}),
	}
	d.Catalog = opts.Catalog
	if d.Catalog == nil {
		d.Catalog = catalog.Default()
	}
	d.goFn = opts.Go
	if d.goFn == nil {
		d.goFn = d.track
	}

	d.Archive = history.New(d.Store, logger, opts.WeeklyGoal)
	d.Templates = templates.New(d.Store, logger)
	d.Rest = resttimer.New(clk, d.Loop, notifier, logger)
	d.Session = session.New(session.Options{
		Clock:      clk,
		Post:       d.Loop,
		Store:      d.Store,
		Archive:    d.Archive,
		Provider:   provider,
		Notifier:   notifier,
		RestTimer:  d.Rest,
		Logger:     logger,
		RestTimers: opts.RestTimers,
		Go:         d.goFn,
	})
	d.Bridge = fitsync.NewBridge(fitsync.Options{
		DeviceID:  opts.DeviceID,
		Clock:     clk,
		Post:      d.Loop,
		Direct:    opts.Direct,
		Queued:    opts.Queued,
		Session:   d.Session,
		Templates: d.Templates,
		Logger:    logger,
		Go:        d.goFn,
	})
	d.Session.SetPublisher(d.Bridge)
	d.Templates.OnChange(func([]models.WorkoutTemplate) { d.Bridge.PushTemplates() })
	d.Bridge.Inbound().Subscribe(func(m fitsync.Message) {
		if err := storage.SaveJSON(d.Store, storage.KeyLastSyncDate, m.Timestamp); err != nil {
			logger.Warn("persist last sync date failed", "component", "app", "error", err)
		}
	})

	for _, ch := range []any{opts.Direct, opts.Queued} {
		switch c := ch.(type) {
		case confirmingQueue:
			c.Deliver(func(ctx context.Context, raw []byte) error {
				return d.Loop.Do(ctx, func() { d.Bridge.Apply(raw) })
			})
		case handlerSetter:
			c.Listen(d.Bridge.Receive)
		}
	}

	d.ticker = clock.NewPeriodic(clk, opts.TickInterval, func(now time.Time) {
		if err := d.Loop.Post(func() {
			d.Session.Tick(now)
			d.Rest.Tick(now)
		}); err != nil {
			logger.Debug("tick dropped", "component", "app", "error", err)
		}
	})
	d.Session.Events().Subscribe(func(e session.Event) {
		if e.Kind != session.EventTick {
			d.syncTicker()
		}
	})
	d.Rest.Updates().Subscribe(func(resttimer.Status) { d.syncTicker() })
	return d
}

// syncTicker runs the display ticker only while a session or rest countdown
// is live. Must be called on the owner loop.
func (d *Device) syncTicker() {
	want := d.ticking && (d.Session.State().Running() || d.Rest.Status().State == resttimer.Running)
	switch {
	case want && !d.ticker.Running():
		d.ticker.Start()
	case !want && d.ticker.Running():
		d.ticker.Stop()
	}
}

// Open builds a device from configuration, opening storage and the
// configured sync channels.
func Open(cfg *config.Config, logger *slog.Logger, notifier health.Notifier) (*Device, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var closers []io.Closer
	fail := func(err error) (*Device, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
		return nil, err
	}

	var cc *charm.Client
	if cfg.NeedsCharm() {
		var err error
		cc, err = charm.Open(cfg.CharmDB)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, cc)
	}

	store, err := cfg.OpenStorage(cc)
	if err != nil {
		return fail(fmt.Errorf("open storage: %w", err))
	}

	var direct fitsync.DirectChannel
	var queued fitsync.QueuedChannel
	if cfg.PeerConfigured() {
		if cfg.RedisAddr != "" {
			rc := fitsync.ConnectRedis(cfg.RedisAddr)
			closers = append(closers, rc)
			direct = fitsync.NewRedisDirect(rc, cfg.DeviceID, cfg.PeerID, logger)
		}
		if cfg.CharmQueue && cc != nil {
			queued = charm.NewQueue(cc, cfg.DeviceID, cfg.PeerID, logger)
		}
	}

	cat, err := catalog.Load(filepath.Join(cfg.GetDataDir(), catalog.FileName))
	if err != nil {
		logger.Warn("using built-in exercise catalog", "component", "app", "error", err)
		cat = catalog.Default()
	}

	clk := clock.New()
	d := New(Options{
		DeviceID:     cfg.DeviceID,
		Clock:        clk,
		Store:        store,
		Provider:     health.NewFileProvider(filepath.Join(cfg.GetDataDir(), MetricsFile), clk.Now),
		Notifier:     notifier,
		Direct:       direct,
		Queued:       queued,
		Logger:       logger,
		RestTimers:   cfg.RestTimers,
		WeeklyGoal:   cfg.WeeklyGoal,
		Catalog:      cat,
		TickInterval: cfg.GetTickInterval(),
		PollInterval: cfg.GetQueuePollInterval(),
		Closers:      closers,
	})
	d.Charm = cc
	return d, nil
}

// boot loads persisted state on the owner loop.
func (d *Device) boot(ctx context.Context) error {
	return d.Loop.Do(ctx, func() {
		d.Archive.Load(d.Clock.Now())
		d.Templates.Load()
		state := d.Session.Restore()
		d.logger.Info("device ready", "component", "app", "device", d.ID, "state", state)
		d.readyOnce.Do(func() { close(d.ready) })
	})
}

// Ready is closed once persisted state has been restored.
func (d *Device) Ready() <-chan struct{} {
	return d.ready
}

// track runs fn in the background and lets Close wait for it.
func (d *Device) track(name string, fn func()) {
	d.bg.Add(1)
	owner.SafeGo(d.logger, name, func() {
		defer d.bg.Done()
		fn()
	})
}

// Settle waits for background sends and the owner work they post back,
// such as metrics attached after completion.
func (d *Device) Settle(ctx context.Context) error {
	for i := 0; i < 3; i++ {
		done := make(chan struct{})
		go func() {
			d.bg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		if !d.running.Load() {
			return nil
		}
		if err := d.Loop.Do(ctx, func() {}); err != nil {
			return err
		}
	}
	return nil
}

// LastSync returns when the last peer message was applied.
func (d *Device) LastSync() (time.Time, bool) {
	var at time.Time
	found, err := storage.LoadJSON(d.Store, storage.KeyLastSyncDate, &at)
	if err != nil || !found {
		return time.Time{}, false
	}
	return at, true
}

// Start runs the owner loop in the background and restores persisted state.
// One-shot commands use it; Close stops the loop.
func (d *Device) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running.Store(true)
	owner.SafeGo(d.logger, "owner-loop", func() {
		defer d.running.Store(false)
		_ = d.Loop.Run(ctx)
	})
	return d.boot(ctx)
}

// Run serves the device until ctx ends: the owner loop, clock ticks,
// inbound listeners and queue polling.
func (d *Device) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	d.running.Store(true)
	g.Go(func() error {
		defer d.running.Store(false)
		return d.Loop.Run(ctx)
	})

	if err := d.boot(ctx); err != nil {
		return fmt.Errorf("boot device: %w", err)
	}
	if err := d.Loop.Do(ctx, func() {
		d.ticking = true
		d.syncTicker()
	}); err != nil {
		return err
	}
	defer d.ticker.Stop()

	g.Go(func() error {
		granted, err := d.Provider.RequestPermission(ctx)
		if err != nil {
			d.logger.Warn("health permission request failed", "component", "app", "error", err)
		} else if !granted {
			d.logger.Info("health data unavailable, sessions finish without metrics", "component", "app")
		}
		return nil
	})

	if l, ok := d.direct.(blockingListener); ok {
		g.Go(func() error {
			if err := l.Listen(ctx, d.Bridge.Receive); err != nil && ctx.Err() == nil {
				d.logger.Warn("direct listener stopped", "component", "app", "error", err)
			}
			return nil
		})
	}
	if q, ok := d.queued.(drainer); ok && d.pollInterval > 0 {
		g.Go(func() error { return d.poll(ctx, q) })
	}
	if err := d.Loop.Do(ctx, func() { d.Bridge.RequestSync(true) }); err != nil {
		return err
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (d *Device) poll(ctx context.Context, q drainer) error {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	for {
		if n, err := q.Drain(ctx); err != nil && ctx.Err() == nil {
			d.logger.Warn("drain queue failed", "component", "app", "error", err)
		} else if n > 0 {
			d.logger.Info("drained queued messages", "component", "app", "count", n)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Do runs fn on the owner loop and waits for it.
func (d *Device) Do(ctx context.Context, fn func()) error {
	return d.Loop.Do(ctx, fn)
}

// DrainQueue collects queued peer messages once. It reports zero when no
// queued channel is configured.
func (d *Device) DrainQueue(ctx context.Context) (int, error) {
	q, ok := d.queued.(drainer)
	if !ok {
		return 0, nil
	}
	return q.Drain(ctx)
}

// Channels reports which sync channels are configured.
func (d *Device) Channels() (direct, queued bool) {
	return d.direct != nil, d.queued != nil
}

// PeerReachable checks the direct channel.
func (d *Device) PeerReachable(ctx context.Context) bool {
	if d.direct == nil {
		return false
	}
	return d.direct.Reachable(ctx)
}

// Close lets in-flight sends finish, stops ticks and the loop, then closes
// storage and transports.
func (d *Device) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	if err := d.Settle(ctx); err != nil {
		d.logger.Warn("closing with background work pending", "component", "app", "error", err)
	}
	cancel()
	d.ticker.Stop()
	if d.cancel != nil {
		d.cancel()
	}
	var errs []error
	if d.Store != nil {
		if err := d.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
