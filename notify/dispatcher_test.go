package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-iam/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type recordingSender struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (s *recordingSender) Send(ctx context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("send context has no deadline")
	}
	s.msgs = append(s.msgs, msg)
	return s.err
}

func (s *recordingSender) sent() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Message(nil), s.msgs...)
}

func TestDispatcherDelivers(t *testing.T) {
	sender := &recordingSender{}
	d := notify.NewDispatcher(sender, notify.WithLogger(nopLogger{}), notify.WithWorkers(2))
	d.Start()

	for i := 0; i < 5; i++ {
		assert.True(t, d.Dispatch(notify.Message{Kind: "welcome", To: "a@example.com"}))
	}

	require.NoError(t, d.Close(context.Background()))

	msgs := sender.sent()
	require.Len(t, msgs, 5)
	for _, msg := range msgs {
		assert.False(t, msg.CreatedAt.IsZero())
	}
}

func TestDispatcherFullQueueNeverBlocks(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	sender := notify.SenderFunc(func(ctx context.Context, _ notify.Message) error {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})

	d := notify.NewDispatcher(sender,
		notify.WithLogger(nopLogger{}),
		notify.WithWorkers(1),
		notify.WithQueueSize(1),
	)
	d.Start()

	require.True(t, d.Dispatch(notify.Message{To: "first"}))
	<-started
	require.True(t, d.Dispatch(notify.Message{To: "queued"}))

	done := make(chan bool, 1)
	go func() {
		done <- d.Dispatch(notify.Message{To: "dropped"})
	}()

	select {
	case accepted := <-done:
		assert.False(t, accepted)
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}

	close(release)
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcherSenderFailureIsContained(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	d := notify.NewDispatcher(sender, notify.WithLogger(nopLogger{}))
	d.Start()

	assert.True(t, d.Dispatch(notify.Message{To: "a@example.com"}))
	require.NoError(t, d.Close(context.Background()))
	assert.Len(t, sender.sent(), 1)
}

func TestDispatcherPanicIsContained(t *testing.T) {
	var calls int
	var mu sync.Mutex
	sender := notify.SenderFunc(func(context.Context, notify.Message) error {
		mu.Lock()
		calls++
		mu.Unlock()
		panic("boom")
	})

	d := notify.NewDispatcher(sender, notify.WithLogger(nopLogger{}), notify.WithWorkers(1))
	d.Start()

	d.Dispatch(notify.Message{To: "a"})
	d.Dispatch(notify.Message{To: "b"})
	require.NoError(t, d.Close(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
}

func TestDispatcherClosed(t *testing.T) {
	d := notify.NewDispatcher(&recordingSender{}, notify.WithLogger(nopLogger{}))
	d.Start()
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))

	assert.False(t, d.Dispatch(notify.Message{To: "late"}))
}

type fakePusher struct {
	key    string
	values []any
	err    error
}

func (p *fakePusher) LPush(_ context.Context, key string, values ...any) error {
	p.key = key
	p.values = append(p.values, values...)
	return p.err
}

func TestRedisOutbox(t *testing.T) {
	pusher := &fakePusher{}
	outbox := notify.NewRedisOutboxWithPusher(pusher, "")

	msg := notify.Message{Kind: "welcome", To: "a@example.com", Subject: "Welcome", Body: "hi"}
	require.NoError(t, outbox.Send(context.Background(), msg))

	assert.Equal(t, notify.DefaultRedisKey, pusher.key)
	require.Len(t, pusher.values, 1)

	var decoded notify.Message
	require.NoError(t, json.Unmarshal(pusher.values[0].([]byte), &decoded))
	assert.Equal(t, msg.To, decoded.To)
	assert.Equal(t, msg.Body, decoded.Body)

	pusher.err = errors.New("redis down")
	assert.Error(t, outbox.Send(context.Background(), msg))
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, notify.LogSender{Logger: nopLogger{}}.Send(context.Background(), notify.Message{To: "a"}))
}
