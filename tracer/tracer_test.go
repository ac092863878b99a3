package tracer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sishi44/locator-ros-bridge/tracer"
)

// flakyPinger fails a fixed number of pings before recovering.
type flakyPinger struct {
	id string

	sync.Mutex
	failures int
}

func (p *flakyPinger) ID() string { return p.id }

func (p *flakyPinger) Ping(ctx context.Context) error {
	p.Lock()
	defer p.Unlock()

	if p.failures > 0 {
		p.failures--
		return errors.New("offline")
	}

	return nil
}

func TestTraceUntilAlive(t *testing.T) {
	tr := tracer.New()
	tr.RefreshRate = 10 * time.Millisecond

	alive := make(chan string, 1)
	if _, err := tr.Notify(func(i interface{}) {
		m, ok := i.(tracer.Message)
		if !ok {
			t.Errorf("unexpected message type %T", i)
			return
		}
		if m.Err == nil {
			select {
			case alive <- m.ID:
			default:
			}
		}
	}); err != nil {
		t.Fatal(err)
	}

	if err := tr.Run(); err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	tr.Trace(&flakyPinger{id: "pose", failures: 2})

	select {
	case id := <-alive:
		if id != "pose" {
			t.Fatalf("wanted pose, found %v", id)
		}
	case <-time.After(time.Second):
		t.Fatal("endpoint never reported alive")
	}

	tr.Untrace("pose")
}

func TestRunTwice(t *testing.T) {
	tr := tracer.New()
	if err := tr.Run(); err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	if err := tr.Run(); err == nil {
		t.Fatal("second Run did not fail")
	}
}

func TestCloseIdempotent(t *testing.T) {
	tr := tracer.New()
	if err := tr.Run(); err != nil {
		t.Fatal(err)
	}

	tr.Close()
	tr.Close()
}

func TestCloseBusyTracer(t *testing.T) {
	tr := tracer.New()
	// refresh constantly so the run loop is rarely idle
	tr.RefreshRate = time.Microsecond
	if err := tr.Run(); err != nil {
		t.Fatal(err)
	}

	tr.Trace(&flakyPinger{id: "pose", failures: 1 << 30})
	tr.Close()

	deadline := time.Now().Add(time.Second)
	for tr.Status() != tracer.StatusStopped {
		if time.Now().After(deadline) {
			t.Fatal("tracer never stopped")
		}
		time.Sleep(time.Millisecond)
	}
}
