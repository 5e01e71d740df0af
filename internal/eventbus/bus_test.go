package eventbus

import (
	"testing"
	"time"

	"github.com/arclight-ai/sentinel/pkg/models"
)

func TestPublishDeliversInOrder(t *testing.T) {
	b := New(10, nil)
	sub := b.Subscribe()
	defer sub.Close()

	for i := 0; i < 5; i++ {
		b.Publish(models.NewEvent(models.EventStepStarted, "s1", i))
	}

	for i := 0; i < 5; i++ {
		select {
		case e := <-sub.Events():
			if e.Data.(int) != i {
				t.Fatalf("expected event %d in order, got %v", i, e.Data)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestTerminalEventClosesSubscription(t *testing.T) {
	b := New(10, nil)
	sub := b.Subscribe()

	b.Publish(models.NewEvent(models.EventCompleted, "s1", nil))

	select {
	case e, ok := <-sub.Events():
		if !ok {
			t.Fatal("expected terminal event before close")
		}
		if e.Type != models.EventCompleted {
			t.Fatalf("expected completed event, got %s", e.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatal("expected channel closed after terminal event")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestFullQueueDropsOnlyThatSubscriber(t *testing.T) {
	b := New(1, nil)
	slow := b.Subscribe() // never drained, so its queue fills up
	fast := b.Subscribe()
	defer fast.Close()

	b.Publish(models.NewEvent(models.EventStepStarted, "s1", 1))
	<-fast.Events() // keep fast's queue empty between publishes

	b.Publish(models.NewEvent(models.EventStepStarted, "s1", 2)) // slow's queue (size 1) is now full
	<-fast.Events()

	if b.SubscriberCount() != 1 {
		t.Fatalf("expected slow subscriber to be dropped, count=%d", b.SubscriberCount())
	}

	if _, ok := <-slow.Events(); !ok {
		t.Fatal("expected slow's one buffered event to still be readable")
	}
	if _, ok := <-slow.Events(); ok {
		t.Fatal("expected slow's channel closed after its buffered event")
	}
}
