package pubsub_test

import (
	"testing"
	"time"

	"github.com/sishi44/locator-ros-bridge/pubsub"
)

func TestPub(t *testing.T) {
	ps := pubsub.New()
	wait := make(chan interface{}, 1)

	if _, err := ps.Sub("t1", func(i interface{}) {
		wait <- i
	}); err != nil {
		t.Fatal(err)
	}

	ps.Pub("fakedata", "t1")

	select {
	case i := <-wait:
		if i != "fakedata" {
			t.Fatalf("unexpected data: %v", i)
		}
	case <-time.After(time.Second):
		t.Fatal("t1 not responding")
	}
}

func TestPubWithoutSubscribers(t *testing.T) {
	ps := pubsub.New()
	// must simply drop the message
	ps.Pub("fakedata", "nobody")
}

func TestUnsub(t *testing.T) {
	ps := pubsub.New()
	recv := make(chan interface{}, 8)

	index, err := ps.Sub("t1", func(i interface{}) {
		recv <- i
	})
	if err != nil {
		t.Fatal(err)
	}

	ps.Pub("one", "t1")
	select {
	case <-recv:
	case <-time.After(time.Second):
		t.Fatal("t1 not responding")
	}

	if err := ps.Unsub(index, "t1"); err != nil {
		t.Fatal(err)
	}
	if err := ps.Unsub(index, "t1"); err == nil {
		t.Fatal("unsubscribed twice without error")
	}

	ps.Pub("two", "t1")
	select {
	case i := <-recv:
		t.Fatalf("received %v after unsubscribe", i)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClose(t *testing.T) {
	ps := pubsub.New()
	if _, err := ps.Sub("t1", func(interface{}) {}); err != nil {
		t.Fatal(err)
	}

	ps.Close("t1")
	ps.Close("t1") // idempotent
}
