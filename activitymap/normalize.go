package activitymap

import (
	"context"
	"maps"
	"strconv"
	"strings"
	"time"

	iam "github.com/goliatone/go-iam"
)

const (
	defaultChannel    = "iam"
	defaultObjectType = "account"
	anonymousActorID  = "anonymous"
)

// Normalized is a transport agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel    string
	objectType string
}

// WithChannel sets the channel for normalized records.
func WithChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithObjectType sets the object type for normalized records.
func WithObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// Normalize converts an iam.ActivityEvent into the normalized shape. Events
// without an account, failed logins for unknown emails, are attributed to
// an anonymous actor.
func Normalize(event iam.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{
		channel:    defaultChannel,
		objectType: defaultObjectType,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := anonymousActorID
	var objectID string
	if event.AccountID > 0 {
		actorID = strconv.FormatInt(event.AccountID, 10)
		objectID = actorID
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	var metadata map[string]any
	if len(event.Metadata) > 0 {
		metadata = maps.Clone(event.Metadata)
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   objectID,
		Channel:    options.channel,
		Metadata:   metadata,
		OccurredAt: occurredAt,
	}
}

// Publisher receives normalized records
type Publisher func(ctx context.Context, record Normalized) error

// Sink returns an iam.ActivitySink that normalizes every event before
// handing it to publish.
func Sink(publish Publisher, opts ...Option) iam.ActivitySink {
	return iam.ActivitySinkFunc(func(ctx context.Context, event iam.ActivityEvent) error {
		if publish == nil {
			return nil
		}
		return publish(ctx, Normalize(event, opts...))
	})
}

// LogPublisher writes normalized records to logger at info level
func LogPublisher(logger iam.Logger) Publisher {
	if logger == nil {
		logger = iam.DefaultLogger()
	}
	return func(_ context.Context, record Normalized) error {
		logger.Info("activity",
			"actor_id", record.ActorID,
			"verb", record.Verb,
			"object_type", record.ObjectType,
			"object_id", record.ObjectID,
			"channel", record.Channel,
			"metadata", record.Metadata,
			"occurred_at", record.OccurredAt,
		)
		return nil
	}
}
