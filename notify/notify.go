// Package notify detaches outbound notifications from the request path. A
// Dispatcher queues messages and hands them to a Sender from its own workers,
// so a slow or failing backend never delays or fails the caller.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Logger matches the key/value logger used by the rest of the module
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

func defaultLogger() Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("module", "iam.notify")
}

// Message is a single outbound notification
type Message struct {
	Kind      string            `json:"kind"`
	To        string            `json:"to"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Sender delivers a message to a backend
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender
type SenderFunc func(ctx context.Context, msg Message) error

// Send implements Sender
func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// LogSender writes messages to a logger. It is the development backend, the
// message body is not logged.
type LogSender struct {
	Logger Logger
}

// Send implements Sender
func (s LogSender) Send(_ context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = defaultLogger()
	}
	logger.Info("notification", "kind", msg.Kind, "to", msg.To, "subject", msg.Subject)
	return nil
}

// ListPusher is the subset of the redis client used by RedisOutbox.
// *redis.Client satisfies it through NewRedisOutbox.
type ListPusher interface {
	LPush(ctx context.Context, key string, values ...any) error
}

// RedisOutbox pushes JSON encoded messages onto a redis list consumed by the
// mail worker.
type RedisOutbox struct {
	client ListPusher
	key    string
}

// NewRedisOutboxWithPusher creates an outbox over any ListPusher
func NewRedisOutboxWithPusher(client ListPusher, key string) *RedisOutbox {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisOutbox{client: client, key: key}
}

// DefaultRedisKey is the list used when none is configured
const DefaultRedisKey = "iam:notifications"

// Send implements Sender
func (o *RedisOutbox) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode notification")
	}

	if err := o.client.LPush(ctx, o.key, payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to enqueue notification").
			WithMetadata(map[string]any{"key": o.key})
	}
	return nil
}
