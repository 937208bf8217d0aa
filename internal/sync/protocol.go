// ABOUTME: Wire envelope and typed bodies exchanged with the paired device.
// ABOUTME: The envelope carries an opaque versioned body; unknown types are rejected.
package sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/fitcore/internal/models"
	"github.com/oklog/ulid/v2"
)

// BodyVersion is the only body version this build understands.
const BodyVersion = 1

var (
	ErrUnknownType        = errors.New("unknown message type")
	ErrMalformed          = errors.New("malformed message")
	ErrUnreachable        = errors.New("peer unreachable")
	ErrUnsupportedVersion = errors.New("unsupported body version")
)

// MessageType tags the body an envelope carries.
type MessageType string

const (
	TypeStartSession    MessageType = "start-session"
	TypeUpdateSession   MessageType = "update-session"
	TypeCompleteSession MessageType = "complete-session"
	TypeSyncRequest     MessageType = "sync-request"
	TypeTemplatePush    MessageType = "template-push"
	TypeMetricsPush     MessageType = "metrics-push"
	TypeSetCompleted    MessageType = "set-completed"
)

// Delivery says which channels a message type is sent on.
type Delivery struct {
	Direct bool
	Queued bool
}

var policies = map[MessageType]Delivery{
	TypeStartSession:    {Direct: true},
	TypeUpdateSession:   {Direct: true},
	TypeCompleteSession: {Direct: true, Queued: true},
	TypeSyncRequest:     {Direct: true, Queued: true},
	TypeTemplatePush:    {Direct: true, Queued: true},
	TypeMetricsPush:     {Direct: true},
	TypeSetCompleted:    {Direct: true},
}

// Known reports whether t is a recognised message type.
func (t MessageType) Known() bool {
	_, ok := policies[t]
	return ok
}

// Policy returns the delivery policy for t. Unknown types go nowhere.
func Policy(t MessageType) Delivery {
	return policies[t]
}

// Message is the wire envelope.
type Message struct {
	ID        ulid.ULID   `json:"id"`
	Type      MessageType `json:"type"`
	Sender    string      `json:"sender"`
	Timestamp time.Time   `json:"timestamp"`
	Body      []byte      `json:"body"`
}

// SessionBody carries a full Workout for start, update and complete.
type SessionBody struct {
	Version int            `json:"version"`
	Workout models.Workout `json:"workout"`
}

// TemplatesBody carries the sender's full template list.
type TemplatesBody struct {
	Version   int                      `json:"version"`
	Templates []models.WorkoutTemplate `json:"templates"`
}

// MetricsBody carries a metrics snapshot.
type MetricsBody struct {
	Version int                    `json:"version"`
	Metrics models.MetricsSnapshot `json:"metrics"`
}

// SyncRequestBody asks the receiver to push its state back.
type SyncRequestBody struct {
	Version       int  `json:"version"`
	WithTemplates bool `json:"with_templates"`
}

// SetCompletedBody names a set completed on the sender.
type SetCompletedBody struct {
	Version    int       `json:"version"`
	WorkoutID  uuid.UUID `json:"workout_id"`
	ExerciseID uuid.UUID `json:"exercise_id"`
	SetID      uuid.UUID `json:"set_id"`
}

// NewMessage builds an envelope around body, which is encoded as JSON.
func NewMessage(t MessageType, sender string, at time.Time, body any) (Message, error) {
	if !t.Known() {
		return Message{}, fmt.Errorf("new message %q: %w", t, ErrUnknownType)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s body: %w", t, err)
	}
	return Message{
		ID:        ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()),
		Type:      t,
		Sender:    sender,
		Timestamp: at,
		Body:      raw,
	}, nil
}

// Encode serialises the envelope.
func Encode(m Message) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return raw, nil
}

// Decode parses an envelope. Bodies are left opaque.
func Decode(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("decode envelope: %w: %v", ErrMalformed, err)
	}
	if !m.Type.Known() {
		return Message{}, fmt.Errorf("decode envelope %q: %w", m.Type, ErrUnknownType)
	}
	if m.Timestamp.IsZero() || len(m.Body) == 0 {
		return Message{}, fmt.Errorf("decode %s envelope: %w: missing timestamp or body", m.Type, ErrMalformed)
	}
	return m, nil
}

// DecodeBody parses m's body into v and checks its version. v must be a
// pointer to one of the body types.
func DecodeBody(m Message, v any) error {
	var probe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(m.Body, &probe); err != nil {
		return fmt.Errorf("decode %s body: %w: %v", m.Type, ErrMalformed, err)
	}
	if probe.Version != BodyVersion {
		return fmt.Errorf("decode %s body version %d: %w", m.Type, probe.Version, ErrUnsupportedVersion)
	}
	if err := json.Unmarshal(m.Body, v); err != nil {
		return fmt.Errorf("decode %s body: %w: %v", m.Type, ErrMalformed, err)
	}
	return nil
}
