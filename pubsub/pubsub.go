// Package pubsub provides the publication/subscription hand-off
// between the channel workers and the consumers of decoded records.
package pubsub

import (
	"fmt"
	"sync"
)

// PubSub wraps the core pubsub functionalities. Safe for concurrent
// use from multiple channel workers.
type PubSub struct {
	sync.Mutex
	registry map[string]*topic
}

// New returns a new PubSub instance.
func New() *PubSub {
	return &PubSub{
		registry: make(map[string]*topic),
	}
}

// Sub subscribes f to tname, creating the topic if needed. f runs on
// its own goroutine, fed in publication order. Returns the index to
// Unsub with.
func (ps *PubSub) Sub(tname string, f func(interface{})) (int, error) {
	if f == nil {
		return 0, fmt.Errorf("pubsub: nil subscriber for topic %v", tname)
	}

	t := ps.topic(tname)

	t.Lock()
	defer t.Unlock()

	index := t.next
	t.next++

	ch := make(chan interface{}, 32)
	t.chs[index] = ch

	go func() {
		for d := range ch {
			f(d)
		}
	}()

	return index, nil
}

// Unsub removes the subscription index from topic, closing its
// channel. Returns an error if no such subscription is present.
func (ps *PubSub) Unsub(index int, tname string) error {
	t := ps.topic(tname)

	t.Lock()
	defer t.Unlock()

	ch, ok := t.chs[index]
	if !ok {
		return fmt.Errorf("pubsub: no subscription %v on topic %v", index, tname)
	}

	close(ch)
	delete(t.chs, index)

	return nil
}

// Pub broadcasts the message to the subscribers of topic. Messages
// published to a topic without subscribers are dropped. A slow
// subscriber whose buffer is full loses the message instead of
// stalling the publishing channel worker.
func (ps *PubSub) Pub(message interface{}, tname string) {
	t := ps.topic(tname)

	t.Lock()
	defer t.Unlock()

	for _, ch := range t.chs {
		select {
		case ch <- message:
		default:
		}
	}
}

// Close removes a topic and closes its subscriber channels.
func (ps *PubSub) Close(tname string) {
	ps.Lock()
	t, ok := ps.registry[tname]
	delete(ps.registry, tname)
	ps.Unlock()

	if !ok {
		return
	}

	t.Lock()
	defer t.Unlock()
	for index, ch := range t.chs {
		close(ch)
		delete(t.chs, index)
	}
}

func (ps *PubSub) topic(name string) *topic {
	ps.Lock()
	defer ps.Unlock()

	t, ok := ps.registry[name]
	if !ok {
		t = &topic{
			name: name,
			chs:  make(map[int]chan interface{}),
		}
		ps.registry[name] = t
	}

	return t
}

type topic struct {
	name string

	sync.Mutex
	next int
	chs  map[int]chan interface{}
}
