/*
 * Copyright 2024 caiflower Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package netio provides the buffered, mark/reset-capable byte stream that
// the connection protocol engine reads from and writes to. It is the
// zero-copy boundary between a net.Conn and the HTTP/WebSocket parsers: the
// parsers only ever Peek and Skip, never allocate their own read buffers.
package netio

import (
	"errors"
	"io"
)

// DefaultReadBufferSize is the minimum buffer size mandated by the wire
// protocol: it must be able to hold the largest request-line/header limits
// in one Peek without a resize.
const DefaultReadBufferSize = 8 * 1024

var ErrNegativeCount = errors.New("netio: negative count")

// Reader is a buffered reader over a net.Conn that supports look-ahead
// (Peek) without consuming, explicit consumption (Skip), a 2-byte pushback
// (Unread) and buffer compaction (Release). Every parser in this module
// reads through this interface instead of touching the socket directly.
type Reader interface {
	// Peek returns the next n bytes without advancing the read position.
	// It blocks reading from the underlying source until n bytes are
	// available or an error/EOF occurs. The returned slice is only valid
	// until the next call to Peek, Skip or Release.
	Peek(n int) ([]byte, error)

	// Skip discards the next n bytes. Usually they were made available by
	// a prior Peek; if fewer than n are buffered, Skip reads from the
	// source until they are (or an error occurs).
	Skip(n int) error

	// ReadByte consumes and returns one byte, filling the buffer if empty.
	ReadByte() (byte, error)

	// Unread pushes back up to 2 previously-read bytes so the next Peek/
	// ReadByte observes them again. Used by the request-line scanner to
	// look one byte past a CRLF/LF boundary.
	Unread(n int) error

	// Release compacts the buffer, discarding bytes already consumed by
	// Skip/ReadByte and freeing their space for reuse. Call it between
	// pipelined requests.
	Release() error

	// Len reports the number of buffered, unconsumed bytes.
	Len() int
}

type reader struct {
	src  io.Reader
	buf  []byte
	r, w int // buf[r:w] is the unconsumed, already-filled region
}

// NewReader wraps src with a buffer of at least DefaultReadBufferSize bytes.
func NewReader(src io.Reader) Reader {
	return NewReaderSize(src, DefaultReadBufferSize)
}

func NewReaderSize(src io.Reader, size int) Reader {
	if size < DefaultReadBufferSize {
		size = DefaultReadBufferSize
	}
	return &reader{src: src, buf: make([]byte, size)}
}

func (r *reader) Len() int {
	return r.w - r.r
}

func (r *reader) Peek(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeCount
	}
	if n > cap(r.buf) {
		r.grow(n)
	}
	for r.w-r.r < n {
		if err := r.fill(); err != nil {
			return r.buf[r.r:r.w], err
		}
	}
	return r.buf[r.r : r.r+n], nil
}

func (r *reader) grow(n int) {
	need := n
	nbuf := make([]byte, need)
	copy(nbuf, r.buf[r.r:r.w])
	r.w -= r.r
	r.r = 0
	r.buf = nbuf
}

// fill compacts the buffer if there's no room left at the tail, then reads
// once from the underlying source.
func (r *reader) fill() error {
	if r.w == len(r.buf) {
		if r.r > 0 {
			copy(r.buf, r.buf[r.r:r.w])
			r.w -= r.r
			r.r = 0
		} else {
			// buffer full of unconsumed bytes wider than caller peeked for
			nbuf := make([]byte, len(r.buf)*2)
			copy(nbuf, r.buf[r.r:r.w])
			r.w -= r.r
			r.r = 0
			r.buf = nbuf
		}
	}
	n, err := r.src.Read(r.buf[r.w:])
	r.w += n
	if n > 0 {
		return nil
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	return err
}

func (r *reader) Skip(n int) error {
	if n < 0 {
		return ErrNegativeCount
	}
	for r.w-r.r < n {
		if err := r.fill(); err != nil {
			return err
		}
	}
	r.r += n
	return nil
}

func (r *reader) ReadByte() (byte, error) {
	if r.r == r.w {
		if err := r.fill(); err != nil {
			return 0, err
		}
	}
	b := r.buf[r.r]
	r.r++
	return b, nil
}

func (r *reader) Unread(n int) error {
	if n < 0 || n > 2 {
		return errors.New("netio: unread supports at most 2 bytes")
	}
	if r.r < n {
		return errors.New("netio: unread past buffer start")
	}
	r.r -= n
	return nil
}

func (r *reader) Release() error {
	if r.r == 0 {
		return nil
	}
	copy(r.buf, r.buf[r.r:r.w])
	r.w -= r.r
	r.r = 0
	return nil
}
