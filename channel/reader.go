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

// Package channel implements the binary stream endpoints of the
// bridge: readers for the locator's inbound channels and writers for
// the host's outbound sensor channels. Each endpoint owns exactly one
// worker, so a stall on one channel cannot starve another.
package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/sishi44/locator-ros-bridge/datagram"
	"github.com/sishi44/locator-ros-bridge/log"
)

// Handler receives each decoded record, synchronously and in arrival
// order. It must be safe for concurrent use across channels.
type Handler func(rec datagram.Record)

// Reader consumes one inbound channel, decoding a stream of frames and
// forwarding each record to its handler.
type Reader struct {
	name    string
	codec   datagram.Codec
	handler Handler

	conn net.Conn
	buf  []byte

	mutex  sync.Mutex
	closed bool
}

// Open wraps an established connection into a Reader. Used mainly for
// testing outside of the package; usually readers are created with
// Dial.
func Open(name string, conn net.Conn, codec datagram.Codec, handler Handler) *Reader {
	return &Reader{
		name:    name,
		codec:   codec,
		handler: handler,
		conn:    conn,
	}
}

// Dial connects to the channel's endpoint and returns a Reader ready
// to Run.
func Dial(ctx context.Context, name, addr string, codec datagram.Codec, handler Handler) (*Reader, error) {
	d := new(net.Dialer)
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("channel: %v: dial %v: %v", name, addr, err)
	}

	return Open(name, conn, codec, handler), nil
}

// Name returns the channel name.
func (r *Reader) Name() string {
	return r.name
}

// Run reads the connection until it is closed, draining every chunk of
// bytes into the frame buffer and decoding as many complete frames as
// it holds. A truncated tail stays in the buffer untouched and is
// retried once more data arrives. Blocks; returns nil after Stop, the
// transport error on disconnect, or the decode error on a corrupt
// frame (the socket is closed and the channel is lost, no
// resynchronization is attempted).
func (r *Reader) Run() error {
	chunk := make([]byte, 4096)

	for {
		n, err := r.conn.Read(chunk)
		if n > 0 {
			r.buf = append(r.buf, chunk[:n]...)
			if err := r.drain(); err != nil {
				r.Stop()
				return fmt.Errorf("channel: %v: %v", r.name, err)
			}
		}
		if err != nil {
			if r.isClosed() {
				return nil
			}
			if errors.Is(err, io.EOF) {
				// not an error by itself, the locator closed its end
				log.Printf("channel: %v: connection closed by peer", r.name)
			}
			r.Stop()
			return fmt.Errorf("channel: %v: read: %w", r.name, err)
		}
		if n == 0 {
			log.Printf("channel: %v: received msg of length 0, connection closed?", r.name)
		}
	}
}

// drain decodes frames from the buffer front until it runs out of
// complete frames.
func (r *Reader) drain() error {
	for len(r.buf) > 0 {
		rec, n, err := r.codec.Decode(r.buf)
		if errors.Is(err, datagram.ErrTruncated) {
			// expected steady state, retried on the next read
			return nil
		}
		if err != nil {
			return fmt.Errorf("corrupt frame: %v", err)
		}

		r.buf = r.buf[n:]
		r.handler(rec)
	}

	return nil
}

// Stop closes the connection, making Run return on its next wake.
// Safe to call more than once.
func (r *Reader) Stop() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	return r.conn.Close()
}

func (r *Reader) isClosed() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.closed
}
