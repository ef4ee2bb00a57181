package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New(nil)
	ch, unsub := b.Subscribe("puppet.", 10)
	defer unsub()

	b.Emit("puppet.message", "m1")

	select {
	case evt := <-ch:
		if evt.Kind != "puppet.message" {
			t.Errorf("got kind %q, want puppet.message", evt.Kind)
		}
		if evt.Payload != "m1" {
			t.Errorf("got payload %v, want m1", evt.Payload)
		}
		if evt.Timestamp.IsZero() {
			t.Error("Emit must stamp the event")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New(nil)
	ch, unsub := b.Subscribe("puppet.", 10)
	defer unsub()

	b.Publish(Event{Kind: "session.status_changed"})
	b.Publish(Event{Kind: "puppet.login"})

	select {
	case evt := <-ch:
		if evt.Kind != "puppet.login" {
			t.Errorf("got kind %q, want puppet.login", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New(nil)
	ch, unsub := b.Subscribe("session.", 10)
	unsub()

	b.Publish(Event{Kind: "session.status_changed"})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New(nil)
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	b.Publish(Event{Kind: "test.one"})
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
	if b.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", b.Dropped())
	}
}

func TestSubscribeFuncIsSynchronous(t *testing.T) {
	b := New(nil)
	var got []string
	unsub := b.SubscribeFunc("puppet.", func(evt Event) {
		got = append(got, evt.Kind)
	})

	b.Emit("puppet.scan", nil)
	b.Emit("wa.incoming_call", nil)
	b.Emit("puppet.ready", nil)
	unsub()
	b.Emit("puppet.logout", nil)

	if len(got) != 2 || got[0] != "puppet.scan" || got[1] != "puppet.ready" {
		t.Errorf("got %v, want [puppet.scan puppet.ready]", got)
	}
}

func TestEventIn(t *testing.T) {
	evt := Event{Kind: "puppet.message"}
	if !evt.In(NamespacePuppet) {
		t.Error("puppet.message should be in the puppet namespace")
	}
	if evt.In(NamespaceWA) {
		t.Error("puppet.message should not be in the wa namespace")
	}
}
