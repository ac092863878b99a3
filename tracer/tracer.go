/*
Copyright (C) 2024 The locator-ros-bridge Authors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as
published by the Free Software Foundation, either version 3 of the
License, or (at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package tracer monitors lost channel endpoints until they answer
// again, so the bridge can bring the affected channel back up.
package tracer

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/sishi44/locator-ros-bridge/pubsub"
)

// Topic used to publish endpoint discovery messages.
const TopicEndpointAlive = "topic_endpoint_alive"

// Possible Tracer status values.
const (
	StatusRunning = iota
	StatusStopped
)

// Pinger wraps the basic Ping function.
type Pinger interface {
	ID() string
	Ping(ctx context.Context) error
}

// Message is published for every ping performed. Err is nil once the
// endpoint answers again.
type Message struct {
	ID  string
	Err error
}

// Tracer monitors lost endpoints on a fixed cadence.
type Tracer struct {
	PubSub *pubsub.PubSub

	RefreshRate time.Duration

	refreshc chan struct{}
	stopc    chan struct{}
	stopOnce sync.Once

	sync.Mutex
	status int
	conns  map[string]Pinger
}

// New returns a new instance of Tracer.
func New() *Tracer {
	return &Tracer{
		PubSub:      pubsub.New(),
		RefreshRate: 4 * time.Second,
		refreshc:    make(chan struct{}),
		stopc:       make(chan struct{}),
		status:      StatusStopped,
		conns:       make(map[string]Pinger),
	}
}

// Run makes the tracer ping every traced endpoint on each refresh,
// publishing a Message per attempt. Runs in its own goroutine; quits
// when Close is called.
func (t *Tracer) Run() error {
	if t.Status() == StatusRunning {
		return errors.New("tracer: already running")
	}
	t.setStatus(StatusRunning)

	ping := func() context.CancelFunc {
		ctx, cancel := context.WithCancel(context.Background())

		t.Lock()
		conns := make([]Pinger, 0, len(t.conns))
		for _, c := range t.conns {
			conns = append(conns, c)
		}
		t.Unlock()

		for _, c := range conns {
			go func(c Pinger) {
				err := c.Ping(ctx)
				t.PubSub.Pub(Message{ID: c.ID(), Err: err}, TopicEndpointAlive)
			}(c)
		}

		return cancel
	}

	go func() {
		var cancel context.CancelFunc
		for {
			refresh := func() {
				if cancel != nil {
					cancel()
				}
				cancel = ping()
			}

			select {
			case <-t.refreshc:
				refresh()
			case <-t.stopc:
				if cancel != nil {
					cancel()
				}
				t.setStatus(StatusStopped)
				return
			case <-time.After(t.RefreshRate):
				refresh()
			}
		}
	}()

	return nil
}

// Trace starts monitoring p and triggers a refresh.
func (t *Tracer) Trace(p Pinger) {
	t.Lock()
	t.conns[p.ID()] = p
	t.Unlock()

	select {
	case t.refreshc <- struct{}{}:
	default:
	}
}

// Untrace stops monitoring the endpoint labeled with id.
func (t *Tracer) Untrace(id string) {
	t.Lock()
	delete(t.conns, id)
	t.Unlock()
}

// Notify subscribes f to endpoint discovery messages.
func (t *Tracer) Notify(f func(interface{})) (int, error) {
	return t.PubSub.Sub(TopicEndpointAlive, f)
}

// StopNotifying unsubscribes index from endpoint discovery messages.
func (t *Tracer) StopNotifying(index int) {
	t.PubSub.Unsub(index, TopicEndpointAlive)
}

// Close makes the tracer quit its run loop. Safe to call more than
// once. Closing the channel instead of sending on it guarantees the
// run loop observes the stop even when it is busy refreshing.
func (t *Tracer) Close() {
	t.stopOnce.Do(func() {
		close(t.stopc)
	})
}

// Status returns the tracer's current running state.
func (t *Tracer) Status() int {
	t.Lock()
	defer t.Unlock()

	return t.status
}

func (t *Tracer) setStatus(s int) {
	t.Lock()
	t.status = s
	t.Unlock()
}

// Endpoint is a Pinger probing a TCP address.
type Endpoint struct {
	Name string
	Addr string

	// Timeout bounds one dial attempt.
	Timeout time.Duration
}

func (e Endpoint) ID() string {
	return e.Name
}

// Ping dials the endpoint once, closing the probe connection right
// away.
func (e Endpoint) Ping(ctx context.Context) error {
	d := net.Dialer{Timeout: e.Timeout}
	conn, err := d.DialContext(ctx, "tcp", e.Addr)
	if err != nil {
		return err
	}

	return conn.Close()
}
