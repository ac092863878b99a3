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

// Package datagram implements the binary frame layouts of the
// locator's channels.
//
// Frames arrive on a TCP stream at arbitrary chunk boundaries, so
// every codec decodes incrementally: offered a buffer that does not
// yet hold a complete frame it returns ErrTruncated without consuming
// anything, and the caller retries with the very same buffer once more
// bytes have arrived. Any other decode error means the frame is
// corrupt and the stream cannot be trusted anymore.
package datagram

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrTruncated reports that the buffer does not yet contain a complete
// frame. It is the expected steady state while a frame is in flight
// and must never be treated as a failure.
var ErrTruncated = errors.New("datagram: truncated frame")

// Record is one decoded frame.
type Record interface {
	Kind() string
}

// Codec converts between a contiguous byte buffer and a typed record.
type Codec interface {
	Kind() string

	// Decode reads one frame from the front of buf. It returns the
	// record together with the number of bytes consumed, ErrTruncated
	// if buf is still incomplete (no bytes consumed), or any other
	// error if the data is corrupt.
	Decode(buf []byte) (Record, int, error)

	// Encode serializes rec into one self-delimited frame.
	Encode(rec Record) ([]byte, error)
}

// reader walks a byte buffer front to back. The first out-of-bounds
// read latches ErrTruncated; every read after an error returns the
// zero value so decode bodies can stay linear.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) ensure(n int) bool {
	if r.err != nil {
		return false
	}
	if r.off+n > len(r.buf) {
		r.err = ErrTruncated
		return false
	}

	return true
}

func (r *reader) u8() uint8 {
	if !r.ensure(1) {
		return 0
	}

	v := r.buf[r.off]
	r.off++
	return v
}

func (r *reader) u32() uint32 {
	if !r.ensure(4) {
		return 0
	}

	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *reader) i32() int32 {
	return int32(r.u32())
}

func (r *reader) i64() int64 {
	if !r.ensure(8) {
		return 0
	}

	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return int64(v)
}

func (r *reader) f32() float32 {
	return math.Float32frombits(r.u32())
}

func (r *reader) f64() float64 {
	if !r.ensure(8) {
		return 0
	}

	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return math.Float64frombits(v)
}

// appender builds a frame front to back, little-endian throughout,
// mirroring reader.
type appender struct {
	buf []byte
}

func (a *appender) u8(v uint8)   { a.buf = append(a.buf, v) }
func (a *appender) u32(v uint32) { a.buf = binary.LittleEndian.AppendUint32(a.buf, v) }
func (a *appender) i32(v int32)  { a.u32(uint32(v)) }
func (a *appender) i64(v int64)  { a.buf = binary.LittleEndian.AppendUint64(a.buf, uint64(v)) }
func (a *appender) f32(v float32) {
	a.u32(math.Float32bits(v))
}
func (a *appender) f64(v float64) {
	a.buf = binary.LittleEndian.AppendUint64(a.buf, math.Float64bits(v))
}
