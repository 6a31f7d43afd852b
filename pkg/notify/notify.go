package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/bazarche-storefront/pkg/logger"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice is a user-visible message produced by a storefront operation.
type Notice struct {
	Level       Level     `json:"level"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	At          time.Time `json:"at"`
}

// Sink receives notices.
type Sink interface {
	Notify(ctx context.Context, notice Notice)
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(ctx context.Context, notice Notice)

func (fn SinkFunc) Notify(ctx context.Context, notice Notice) {
	fn(ctx, notice)
}

// Discard drops every notice.
var Discard Sink = SinkFunc(func(context.Context, Notice) {})

func Success(title, description string) Notice {
	return Notice{Level: LevelInfo, Title: title, Description: description}
}

func Failure(description string) Notice {
	return Notice{Level: LevelError, Title: "خطا", Description: description}
}

const defaultInboxLimit = 50

// Inbox buffers notices until the UI drains them. Oldest notices are dropped
// once the limit is reached.
type Inbox struct {
	mu      sync.Mutex
	limit   int
	notices []Notice
	now     func() time.Time
}

func NewInbox(limit int) *Inbox {
	if limit <= 0 {
		limit = defaultInboxLimit
	}
	return &Inbox{limit: limit, now: time.Now}
}

func (i *Inbox) Notify(_ context.Context, notice Notice) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if notice.At.IsZero() {
		notice.At = i.now().UTC()
	}
	i.notices = append(i.notices, notice)
	if over := len(i.notices) - i.limit; over > 0 {
		i.notices = append([]Notice(nil), i.notices[over:]...)
	}
}

// Drain returns and clears the buffered notices.
func (i *Inbox) Drain() []Notice {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.notices
	i.notices = nil
	if out == nil {
		return []Notice{}
	}
	return out
}

// Peek returns a copy of the buffered notices without clearing them.
func (i *Inbox) Peek() []Notice {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]Notice{}, i.notices...)
}

// Fanout delivers every notice to each sink in order.
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, notice Notice) {
	for _, sink := range f {
		if sink != nil {
			sink.Notify(ctx, notice)
		}
	}
}

// LogSink mirrors notices into the structured log.
type LogSink struct {
	Logger *logger.Logger
}

func (s LogSink) Notify(ctx context.Context, notice Notice) {
	if s.Logger == nil {
		return
	}
	ctx = s.Logger.WithFields(ctx, map[string]any{
		"notice_level": string(notice.Level),
		"notice_title": notice.Title,
	})
	s.Logger.Debug(ctx, notice.Description)
}

// quietError is implemented by backend errors that should be logged but never
// shown to the user.
type quietError interface {
	Quiet() bool
}

// IsQuiet reports whether err asks to be hidden from the user.
func IsQuiet(err error) bool {
	var q quietError
	return errors.As(err, &q) && q.Quiet()
}

// Reporter turns operation failures into log entries and notices.
type Reporter struct {
	Sink   Sink
	Logger *logger.Logger
}

// Failure logs err and, unless it is quiet, notifies description (or the
// error text when description is empty).
func (r Reporter) Failure(ctx context.Context, op string, err error, description string) {
	if r.Logger != nil {
		logCtx := r.Logger.WithOperation(ctx, op)
		if IsQuiet(err) {
			r.Logger.Info(logCtx, "authentication required; notice suppressed")
			return
		}
		r.Logger.Error(logCtx, "storefront operation failed", err)
	} else if IsQuiet(err) {
		return
	}
	if description == "" && err != nil {
		description = err.Error()
	}
	r.notify(ctx, Failure(description))
}

// Rejected notifies a validation failure; nothing is logged at error level.
func (r Reporter) Rejected(ctx context.Context, description string) {
	r.notify(ctx, Failure(description))
}

// Success notifies a completed operation.
func (r Reporter) Success(ctx context.Context, title, description string) {
	r.notify(ctx, Success(title, description))
}

func (r Reporter) notify(ctx context.Context, notice Notice) {
	if r.Sink == nil {
		return
	}
	r.Sink.Notify(ctx, notice)
}
