package emitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	e := New()
	ch := e.Subscribe("tenant-1", "sub-1")

	e.Publish(Event{TenantID: "tenant-1", CampaignID: "camp-1", Type: EventItemSent})

	select {
	case ev := <-ch:
		assert.Equal(t, EventItemSent, ev.Type)
	default:
		t.Fatal("expected event on subscriber channel")
	}
}

func TestPublishScopedToTenant(t *testing.T) {
	e := New()
	chA := e.Subscribe("tenant-a", "sub-1")
	chB := e.Subscribe("tenant-b", "sub-1")

	e.Publish(Event{TenantID: "tenant-a", Type: EventItemSent})

	select {
	case <-chA:
	default:
		t.Fatal("tenant-a subscriber should have received event")
	}
	select {
	case <-chB:
		t.Fatal("tenant-b subscriber must not receive tenant-a's event")
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	e := New()
	ch := e.Subscribe("tenant-1", "sub-1")
	e.Unsubscribe("tenant-1", "sub-1")

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after Unsubscribe")
	assert.Equal(t, 0, e.SubscriberCount("tenant-1"))
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	e := New()
	ch := e.Subscribe("tenant-1", "sub-1")

	for i := 0; i < 500; i++ {
		e.Publish(Event{TenantID: "tenant-1", Type: EventItemSent})
	}

	require.NotNil(t, ch)
	assert.Equal(t, 1, e.SubscriberCount("tenant-1"))
}
