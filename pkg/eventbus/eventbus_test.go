package eventbus

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type createdEvent struct {
	name string
}

type deletedEvent struct {
	name string
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(&bytes.Buffer{})
	return log
}

func TestPublisher_Subscribe(t *testing.T) {
	t.Parallel()
	publisher := NewEventPublisher(testLogger())

	var got string
	publisher.Subscribe(func(e *createdEvent) {
		got = e.name
	})
	publisher.Publish(&createdEvent{name: "audit"})

	require.Equal(t, "audit", got)
}

func TestPublisher_OnlyMatchingHandlersRun(t *testing.T) {
	t.Parallel()
	publisher := NewEventPublisher(testLogger())

	created := 0
	deleted := 0
	publisher.Subscribe(func(e *createdEvent) { created++ })
	publisher.Subscribe(func(e *deletedEvent) { deleted++ })

	publisher.Publish(&createdEvent{name: "one"})
	publisher.Publish(&createdEvent{name: "two"})
	publisher.Publish(&deletedEvent{name: "one"})

	require.Equal(t, 2, created)
	require.Equal(t, 1, deleted)
}

func TestPublisher_Unsubscribe(t *testing.T) {
	t.Parallel()
	publisher := NewEventPublisher(testLogger())

	calls := 0
	handler := func(e *createdEvent) { calls++ }
	publisher.Subscribe(handler)
	require.Equal(t, 1, publisher.SubscribersCount())

	publisher.Unsubscribe(handler)
	require.Equal(t, 0, publisher.SubscribersCount())

	publisher.Publish(&createdEvent{})
	require.Equal(t, 0, calls)
}

func TestPublisher_PanicRecovered(t *testing.T) {
	t.Parallel()
	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)
	publisher := NewEventPublisher(log)

	after := false
	publisher.Subscribe(func(e *createdEvent) { panic("boom") })
	publisher.Subscribe(func(e *createdEvent) { after = true })

	publisher.Publish(&createdEvent{})

	require.True(t, after)
	require.Contains(t, logBuffer.String(), "handler panicked")
}

func TestPublisher_NonFunctionSubscriberPanics(t *testing.T) {
	t.Parallel()
	publisher := NewEventPublisher(testLogger())
	require.Panics(t, func() { publisher.Subscribe("not a function") })
}

func TestMatchSignature(t *testing.T) {
	t.Parallel()
	handlerType := reflect.TypeOf(func(e *createdEvent) {})

	require.True(t, matchSignature(handlerType, []any{&createdEvent{}}))
	require.False(t, matchSignature(handlerType, []any{&deletedEvent{}}))
	require.False(t, matchSignature(handlerType, []any{}))
	require.False(t, matchSignature(handlerType, []any{&createdEvent{}, &createdEvent{}}))
}
