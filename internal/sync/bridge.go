// ABOUTME: SyncBridge moving session, template and metrics state to the paired device.
// ABOUTME: Sends over direct and queued channels independently; inbound work runs on the owner.
package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/fitcore/internal/clock"
	"github.com/harperreed/fitcore/internal/events"
	"github.com/harperreed/fitcore/internal/models"
	"github.com/harperreed/fitcore/internal/owner"
	"github.com/oklog/ulid/v2"
)

// seenCapacity bounds the ids remembered for duplicate suppression. A
// message may arrive once per channel.
const seenCapacity = 256

// DirectChannel delivers to the peer only while it is reachable. Sends are
// one-way; any reply comes back as a separate inbound message.
type DirectChannel interface {
	Reachable(ctx context.Context) bool
	Send(ctx context.Context, raw []byte) error
}

// QueuedChannel stores messages until the peer can collect them.
type QueuedChannel interface {
	Enqueue(ctx context.Context, raw []byte) error
}

// SessionSink applies peer session state. Implemented by session.Controller.
type SessionSink interface {
	ApplyRemoteSession(w models.Workout, sentAt time.Time, final bool) bool
	SessionSnapshot() (models.Workout, bool)
	ApplyRemoteMetrics(m models.MetricsSnapshot)
}

// TemplateSink applies peer templates. Implemented by templates.Store.
type TemplateSink interface {
	List() []models.WorkoutTemplate
	ReplaceFromPeer(list []models.WorkoutTemplate)
}

// Options configures a Bridge. Direct and Queued may be nil to disable a
// channel.
type Options struct {
	DeviceID  string
	Clock     clock.Clock
	Post      owner.Poster
	Direct    DirectChannel
	Queued    QueuedChannel
	Session   SessionSink
	Templates TemplateSink
	Logger    *slog.Logger
	// Go runs channel sends off the owner loop.
	Go      func(name string, fn func())
	Context context.Context
}

// Stats counts bridge traffic since construction.
type Stats struct {
	Sent         uint64 `json:"sent"`
	Unreachable  uint64 `json:"unreachable"`
	DirectFailed uint64 `json:"direct_failed"`
	Queued       uint64 `json:"queued"`
	QueueFailed  uint64 `json:"queue_failed"`
	Received     uint64 `json:"received"`
	Dropped      uint64 `json:"dropped"`
}

// Bridge implements session.Publisher and dispatches inbound messages.
type Bridge struct {
	deviceID  string
	clock     clock.Clock
	post      owner.Poster
	direct    DirectChannel
	queued    QueuedChannel
	session   SessionSink
	templates TemplateSink
	logger    *slog.Logger
	goFn      func(name string, fn func())
	ctx       context.Context

	inbound *events.Feed[Message]

	// Owner-only state.
	seen         map[ulid.ULID]struct{}
	seenOrder    []ulid.ULID
	applyingPeer bool

	sent, unreachable, directFailed atomic.Uint64
	queuedN, queueFailed            atomic.Uint64
	received, dropped               atomic.Uint64
}

// NewBridge creates a bridge.
func NewBridge(opts Options) *Bridge {
	b := &Bridge{
		deviceID:  opts.DeviceID,
		clock:     opts.Clock,
		post:      opts.Post,
		direct:    opts.Direct,
		queued:    opts.Queued,
		session:   opts.Session,
		templates: opts.Templates,
		logger:    opts.Logger,
		goFn:      opts.Go,
		ctx:       opts.Context,
		inbound:   events.NewFeed[Message](false),
		seen:      make(map[ulid.ULID]struct{}),
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.goFn == nil {
		logger := b.logger
		b.goFn = func(name string, fn func()) { owner.SafeGo(logger, name, fn) }
	}
	if b.ctx == nil {
		b.ctx = context.Background()
	}
	return b
}

// Inbound publishes every message handled, after it was applied.
func (b *Bridge) Inbound() *events.Feed[Message] {
	return b.inbound
}

// Stats returns traffic counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Sent:         b.sent.Load(),
		Unreachable:  b.unreachable.Load(),
		DirectFailed: b.directFailed.Load(),
		Queued:       b.queuedN.Load(),
		QueueFailed:  b.queueFailed.Load(),
		Received:     b.received.Load(),
		Dropped:      b.dropped.Load(),
	}
}

// SessionStarted sends start-session.
func (b *Bridge) SessionStarted(w models.Workout) {
	b.send(TypeStartSession, SessionBody{Version: BodyVersion, Workout: w})
}

// SessionUpdated sends update-session.
func (b *Bridge) SessionUpdated(w models.Workout) {
	b.send(TypeUpdateSession, SessionBody{Version: BodyVersion, Workout: w})
}

// SetCompleted sends set-completed.
func (b *Bridge) SetCompleted(w models.Workout, exerciseID, setID uuid.UUID) {
	b.send(TypeSetCompleted, SetCompletedBody{
		Version:    BodyVersion,
		WorkoutID:  w.ID,
		ExerciseID: exerciseID,
		SetID:      setID,
	})
}

// SessionCompleted sends complete-session.
func (b *Bridge) SessionCompleted(w models.Workout) {
	b.send(TypeCompleteSession, SessionBody{Version: BodyVersion, Workout: w})
}

// MetricsCaptured sends metrics-push.
func (b *Bridge) MetricsCaptured(m models.MetricsSnapshot) {
	b.send(TypeMetricsPush, MetricsBody{Version: BodyVersion, Metrics: m})
}

// RequestSync asks the peer to push its session and, optionally, its
// templates.
func (b *Bridge) RequestSync(withTemplates bool) {
	b.send(TypeSyncRequest, SyncRequestBody{Version: BodyVersion, WithTemplates: withTemplates})
}

// PushTemplates sends the full local template list. It does nothing while a
// peer push is being applied.
func (b *Bridge) PushTemplates() {
	if b.templates == nil || b.applyingPeer {
		return
	}
	list := b.templates.List()
	if list == nil {
		list = []models.WorkoutTemplate{}
	}
	b.send(TypeTemplatePush, TemplatesBody{Version: BodyVersion, Templates: list})
}

func (b *Bridge) send(t MessageType, body any) {
	m, err := NewMessage(t, b.deviceID, b.clock.Now(), body)
	if err != nil {
		b.logger.Warn("build outbound message failed", "component", "sync", "type", t, "error", err)
		return
	}
	raw, err := Encode(m)
	if err != nil {
		b.logger.Warn("encode outbound message failed", "component", "sync", "type", t, "error", err)
		return
	}
	policy := Policy(t)
	if policy.Direct && b.direct != nil {
		b.goFn("sync-direct", func() { b.sendDirect(m, raw) })
	}
	if policy.Queued && b.queued != nil {
		b.goFn("sync-queue", func() { b.enqueue(m, raw) })
	}
}

func (b *Bridge) sendDirect(m Message, raw []byte) {
	if !b.direct.Reachable(b.ctx) {
		b.unreachable.Add(1)
		b.logger.Debug("peer unreachable, direct send skipped", "component", "sync", "type", m.Type, "id", m.ID)
		return
	}
	if err := b.direct.Send(b.ctx, raw); err != nil {
		b.directFailed.Add(1)
		if errors.Is(err, ErrUnreachable) {
			b.logger.Debug("peer went away during direct send", "component", "sync", "type", m.Type, "id", m.ID)
			return
		}
		b.logger.Warn("direct send failed", "component", "sync", "type", m.Type, "id", m.ID, "error", err)
		return
	}
	b.sent.Add(1)
}

func (b *Bridge) enqueue(m Message, raw []byte) {
	if err := b.queued.Enqueue(b.ctx, raw); err != nil {
		b.queueFailed.Add(1)
		b.logger.Warn("queue message failed", "component", "sync", "type", m.Type, "id", m.ID, "error", err)
		return
	}
	b.queuedN.Add(1)
}

// Receive accepts raw bytes from any channel and any goroutine. The message
// is decoded here and applied on the owner. Undecodable messages are logged
// and dropped.
func (b *Bridge) Receive(raw []byte) {
	m, ok := b.decode(raw)
	if !ok {
		return
	}
	if err := b.post.Post(func() { b.handle(m) }); err != nil {
		b.dropped.Add(1)
		b.logger.Warn("inbound message dropped", "component", "sync", "type", m.Type, "error", err)
	}
}

// Apply decodes and applies raw synchronously. Must be called on the owner
// loop; queued channels use it to confirm a message before deleting it.
func (b *Bridge) Apply(raw []byte) {
	if m, ok := b.decode(raw); ok {
		b.handle(m)
	}
}

func (b *Bridge) decode(raw []byte) (Message, bool) {
	m, err := Decode(raw)
	if err != nil {
		b.dropped.Add(1)
		b.logger.Warn("dropping undecodable message", "component", "sync", "error", err)
		return Message{}, false
	}
	if m.Sender == b.deviceID {
		b.logger.Debug("ignoring own message", "component", "sync", "type", m.Type, "id", m.ID)
		return Message{}, false
	}
	return m, true
}

func (b *Bridge) handle(m Message) {
	if b.markSeen(m.ID) {
		b.logger.Debug("duplicate message", "component", "sync", "type", m.Type, "id", m.ID)
		return
	}
	if err := b.apply(m); err != nil {
		b.dropped.Add(1)
		b.logger.Warn("dropping inbound message", "component", "sync", "type", m.Type, "id", m.ID, "error", err)
		return
	}
	b.received.Add(1)
	b.inbound.Publish(m)
}

func (b *Bridge) apply(m Message) error {
	switch m.Type {
	case TypeStartSession, TypeUpdateSession, TypeCompleteSession:
		var body SessionBody
		if err := DecodeBody(m, &body); err != nil {
			return err
		}
		if b.session != nil {
			b.session.ApplyRemoteSession(body.Workout, m.Timestamp, m.Type == TypeCompleteSession)
		}
	case TypeSyncRequest:
		var body SyncRequestBody
		if err := DecodeBody(m, &body); err != nil {
			return err
		}
		if b.session != nil {
			if w, ok := b.session.SessionSnapshot(); ok {
				b.SessionUpdated(w)
			}
		}
		if body.WithTemplates {
			b.PushTemplates()
		}
	case TypeTemplatePush:
		var body TemplatesBody
		if err := DecodeBody(m, &body); err != nil {
			return err
		}
		if b.templates != nil {
			b.applyingPeer = true
			b.templates.ReplaceFromPeer(body.Templates)
			b.applyingPeer = false
		}
	case TypeMetricsPush:
		var body MetricsBody
		if err := DecodeBody(m, &body); err != nil {
			return err
		}
		if b.session != nil {
			b.session.ApplyRemoteMetrics(body.Metrics)
		}
	case TypeSetCompleted:
		var body SetCompletedBody
		if err := DecodeBody(m, &body); err != nil {
			return err
		}
		b.logger.Debug("peer completed set", "component", "sync", "workout", body.WorkoutID, "set", body.SetID)
	default:
		return ErrUnknownType
	}
	return nil
}

// markSeen records id and reports whether it was already recorded.
func (b *Bridge) markSeen(id ulid.ULID) bool {
	if _, ok := b.seen[id]; ok {
		return true
	}
	b.seen[id] = struct{}{}
	b.seenOrder = append(b.seenOrder, id)
	if len(b.seenOrder) > seenCapacity {
		delete(b.seen, b.seenOrder[0])
		b.seenOrder = b.seenOrder[1:]
	}
	return false
}
