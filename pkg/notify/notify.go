// Package notify delivers localized messages to subjects.
//
// The containment controller only emits message keys and parameters; turning
// them into text is the job of a Sink.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"irondiscipline/warden/pkg/subject"
)

// Message keys emitted by the containment controller.
const (
	KeyJailed       = "jail_you_jailed"
	KeyReleased     = "jail_you_released"
	KeyChatBlocked  = "jail_chat_blocked"
	KeyBackupFailed = "jail_backup_failed"
)

// Sink receives notifications. Notify must not block.
type Sink interface {
	Notify(id subject.ID, key string, params map[string]string)
}

// LogSink writes notifications to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

// Notify implements Sink.
func (s LogSink) Notify(id subject.ID, key string, params map[string]string) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []slog.Attr{
		slog.String("subject_id", id.String()),
		slog.String("key", key),
	}
	for k, v := range params {
		attrs = append(attrs, slog.String("param."+k, v))
	}
	logger.LogAttrs(context.Background(), slog.LevelInfo, "notification", attrs...)
}

// Multi fans a notification out to several sinks in order.
type Multi []Sink

// Notify implements Sink.
func (m Multi) Notify(id subject.ID, key string, params map[string]string) {
	for _, s := range m {
		s.Notify(id, key, params)
	}
}

// Message is a recorded notification.
type Message struct {
	SubjectID subject.ID
	Key       string
	Params    map[string]string
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Notify implements Sink.
func (r *Recorder) Notify(id subject.ID, key string, params map[string]string) {
	r.mu.Lock()
	r.messages = append(r.messages, Message{SubjectID: id, Key: key, Params: params})
	r.mu.Unlock()
}

// Messages returns a copy of the recorded notifications.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Count returns how many notifications with key were sent to id.
func (r *Recorder) Count(id subject.ID, key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m.SubjectID == id && m.Key == key {
			n++
		}
	}
	return n
}
