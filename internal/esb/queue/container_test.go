package queue

import (
	"testing"
	"time"

	"github.com/riverbus/envelope/internal/esb/message"
)

func TestFIFOContainerOrderPreserved(t *testing.T) {
	c := newFIFOContainer()
	m1 := message.NewMessage("p", nil)
	m2 := message.NewMessage("p", nil)
	c.Enqueue(m1, m2)

	head, err := c.TryPeek(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if head.MessageID != m1.MessageID {
		t.Fatalf("expected m1 at head, got %v", head.MessageID)
	}
}

func TestFIFODoesNotSkipDelayedHead(t *testing.T) {
	c := newFIFOContainer()
	future := time.Now().Add(time.Hour)
	m1 := message.NewMessage("p", nil)
	m1.DelayedToUTC = &future
	m2 := message.NewMessage("p", nil)
	c.Enqueue(m1, m2)

	head, err := c.TryPeek(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if head.MessageID != m1.MessageID {
		t.Fatal("FIFO must return the delayed head, not skip past it")
	}
}

func TestDelayableContainerSkipsDelayedMessages(t *testing.T) {
	c := newDelayableContainer()
	future := time.Now().Add(time.Hour)
	m1 := message.NewMessage("p", nil)
	m1.DelayedToUTC = &future
	m2 := message.NewMessage("p", nil)
	c.Enqueue(m1, m2)

	head, err := c.TryPeek(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if head.MessageID != m2.MessageID {
		t.Fatalf("expected m2 (not yet delayed) at head, got %v", head.MessageID)
	}
}

func TestContainerRemoveAndUpdate(t *testing.T) {
	c := newFIFOContainer()
	m1 := message.NewMessage("p", nil)
	c.Enqueue(m1)

	if err := c.Update(m1.MessageID, message.Completed()); err != nil {
		t.Fatal(err)
	}
	if c.Count() != 1 {
		t.Fatal("update must not remove the message")
	}

	if err := c.TryRemove(m1.MessageID); err != nil {
		t.Fatal(err)
	}
	if c.Count() != 0 {
		t.Fatal("expected queue to be empty after remove")
	}

	if err := c.TryRemove(m1.MessageID); err == nil {
		t.Fatal("expected error removing an absent message")
	}
}
