package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	messages []Message
	err      error
}

func (p *recordingPublisher) Publish(msg Message) error {
	p.messages = append(p.messages, msg)
	return p.err
}

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus(nil)
	ch, cancel := bus.Subscribe()
	defer cancel()

	msg := Message{Type: TypeWhaleAlert, Instrument: "SOL/USDC", Timestamp: time.Now()}
	bus.Publish(msg)

	select {
	case got := <-ch:
		assert.Equal(t, TypeWhaleAlert, got.Type)
		assert.Equal(t, "SOL/USDC", got.Instrument)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the message")
	}
}

func TestBusSlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus(nil)
	_, cancel := bus.Subscribe() // never drained
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			bus.Publish(Message{Type: TypeSignal})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestBusCancelClosesChannel(t *testing.T) {
	bus := NewBus(nil)
	ch, cancel := bus.Subscribe()

	cancel()
	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel must not panic on the removed channel.
	bus.Publish(Message{Type: TypePressure})

	// A second cancel is a no-op.
	cancel()
}

func TestBusForwardsToExternalPublisher(t *testing.T) {
	external := &recordingPublisher{}
	bus := NewBus(external)

	bus.Publish(Message{Type: TypeRegimeChange, Instrument: "ETH/USDC"})
	require.Len(t, external.messages, 1)
	assert.Equal(t, TypeRegimeChange, external.messages[0].Type)
}

func TestBusExternalFailureDoesNotPropagate(t *testing.T) {
	external := &recordingPublisher{err: errors.New("sink down")}
	bus := NewBus(external)
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(Message{Type: TypeSignal})

	// In-process delivery is unaffected by the external failure.
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("subscriber starved by external publisher failure")
	}
}
