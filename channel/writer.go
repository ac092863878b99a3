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

package channel

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sishi44/locator-ros-bridge/log"
)

// SendStatus is the outcome of one Send call.
type SendStatus int

const (
	// SendOK means the datagram was fully written.
	SendOK SendStatus = iota
	// SendIOError means the write failed: the peer likely
	// disconnected, never connected, or its buffer is full. The
	// caller decides on recovery; Send never retries.
	SendIOError
)

// writeTimeout bounds a single datagram write so a dead peer cannot
// stall the sending worker forever.
const writeTimeout = 5 * time.Second

// Writer serves one outbound channel. The locator dials in; every
// datagram sent is written to each currently connected peer socket.
type Writer struct {
	name string
	ln   net.Listener

	mutex  sync.Mutex
	conns  map[net.Conn]struct{}
	seq    uint32
	closed bool
}

// Listen announces the outbound channel on the local port.
func Listen(name string, port int) (*Writer, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("channel: %v: listen: %v", name, err)
	}

	return &Writer{
		name:  name,
		ln:    ln,
		conns: make(map[net.Conn]struct{}),
	}, nil
}

// Name returns the channel name.
func (w *Writer) Name() string {
	return w.name
}

// Addr returns the listener address.
func (w *Writer) Addr() net.Addr {
	return w.ln.Addr()
}

// Run accepts connections from the locator until the writer is
// stopped. Blocks; runs as the writer's dedicated worker.
func (w *Writer) Run() error {
	for {
		conn, err := w.ln.Accept()
		if err != nil {
			if w.isClosed() {
				return nil
			}
			return fmt.Errorf("channel: %v: accept: %v", w.name, err)
		}

		log.Printf("channel: %v: peer connected from %v", w.name, conn.RemoteAddr())
		w.mutex.Lock()
		w.conns[conn] = struct{}{}
		w.mutex.Unlock()
	}
}

// NextSeq returns the next per-channel sequence number, starting at 1.
// It advances exactly once per call, so calling it once per send
// attempt lets the locator detect gaps even across failed sends.
func (w *Writer) NextSeq() uint32 {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.seq++
	return w.seq
}

// Send writes exactly p to every connected peer socket. It never
// retries; a peer that fails the write is dropped and the failure is
// surfaced to the caller immediately.
func (w *Writer) Send(p []byte) SendStatus {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed || len(w.conns) == 0 {
		return SendIOError
	}

	status := SendOK
	for conn := range w.conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := conn.Write(p); err != nil {
			log.Error.Printf("channel: %v: write to %v: %v", w.name, conn.RemoteAddr(), err)
			conn.Close()
			delete(w.conns, conn)
			status = SendIOError
		}
	}

	return status
}

// Stop closes the listener and every peer connection, making Run
// return. Safe to call more than once.
func (w *Writer) Stop() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	for conn := range w.conns {
		conn.Close()
		delete(w.conns, conn)
	}

	return w.ln.Close()
}

func (w *Writer) isClosed() bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	return w.closed
}
