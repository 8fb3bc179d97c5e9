package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribeDelivers(t *testing.T) {
	b := NewBroker(4)
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(&Frame{JobID: "j1", ItemsFound: 10, Status: "running"})

	select {
	case f := <-sub:
		assert.Equal(t, "j1", f.JobID)
		assert.Equal(t, int64(10), f.ItemsFound)
		assert.False(t, f.Lagged)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

// spec.md §8 scenario 5: a subscriber that falls behind a full buffer
// window receives a Lagged marker on its next delivery instead of
// blocking the publisher or silently dropping updates forever.
func TestSlowSubscriberGetsLaggedMarker(t *testing.T) {
	b := NewBroker(1)
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	for i := 0; i < 5; i++ {
		b.Publish(&Frame{JobID: "j1", ItemsFound: int64(i), Status: "running"})
		time.Sleep(5 * time.Millisecond)
	}

	// Drain the one buffered frame, then publish again: that next
	// delivery is the one that carries the Lagged marker.
	select {
	case <-sub:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for buffered frame")
	}
	b.Publish(&Frame{JobID: "j1", ItemsFound: 5, Status: "running"})

	var sawLagged bool
	var last *Frame
	for {
		select {
		case f := <-sub:
			last = f
			if f.Lagged {
				sawLagged = true
			}
		case <-time.After(100 * time.Millisecond):
			require.True(t, sawLagged, "expected at least one frame marked lagged")
			require.NotNil(t, last)
			return
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker(2)
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	assert.Equal(t, 1, b.SubscriberCount())
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	_, ok := <-sub
	assert.False(t, ok)
}
