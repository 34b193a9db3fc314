package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscriber) *Event {
	t.Helper()
	select {
	case event := <-sub:
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBroker_PublishSubscribe(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(NewEvent(EventOverrideApplied, "applied", map[string]string{"mode": "temporary"}))

	event := receive(t, sub)
	assert.Equal(t, EventOverrideApplied, event.Type)
	assert.Equal(t, "temporary", event.Metadata["mode"])
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())
}

func TestBroker_MultipleSubscribers(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	first := broker.Subscribe()
	second := broker.Subscribe()
	require.Equal(t, 2, broker.SubscriberCount())

	broker.Publish(&Event{Type: EventSourceFallback, Message: "builtin"})

	assert.Equal(t, EventSourceFallback, receive(t, first).Type)
	assert.Equal(t, EventSourceFallback, receive(t, second).Type)
}

func TestBroker_FillsIDAndTimestamp(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	broker.Publish(&Event{Type: EventOverrideRestored})

	event := receive(t, sub)
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())
}

func TestBroker_Unsubscribe(t *testing.T) {
	broker := NewBroker()
	sub := broker.Subscribe()

	broker.Unsubscribe(sub)
	broker.Unsubscribe(sub)

	assert.Equal(t, 0, broker.SubscriberCount())
	_, open := <-sub
	assert.False(t, open)
}

func TestBroker_PublishNeverBlocks(t *testing.T) {
	broker := NewBroker() // not started, nobody drains the buffer

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			broker.Publish(NewEvent(EventOverrideApplied, "applied", nil))
		}
		broker.Stop()
		broker.Stop()
		broker.Publish(NewEvent(EventOverrideRestored, "after stop", nil))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked")
	}
}

func TestBroker_NilIsNoop(t *testing.T) {
	var broker *Broker
	assert.NotPanics(t, func() {
		broker.Publish(NewEvent(EventRemediationFailed, "no candidates", nil))
	})
}
