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

package netio

import "io"

// DefaultWriteBufferSize is the minimum pooled-buffer size for the output
// side of a connection.
const DefaultWriteBufferSize = 64 * 1024

// Writer is a pooled-buffer writer: callers either Malloc a slice and fill
// it in place (zero-copy composition of status line, headers and body) or
// hand over an already-built slice via WriteBinary. Nothing reaches the
// underlying io.Writer until Flush.
type Writer interface {
	// Malloc returns a slice of length n appended to the pending buffer.
	// The caller writes into the returned slice directly.
	Malloc(n int) ([]byte, error)

	// WriteBinary copies b into the pending buffer.
	WriteBinary(b []byte) (int, error)

	// Flush writes all pending bytes to the underlying writer and resets
	// the pending buffer (retaining its capacity for reuse).
	Flush() error

	// Buffered reports the number of bytes pending flush.
	Buffered() int
}

type cache struct {
	data []byte
}

type writer struct {
	dst    io.Writer
	caches []*cache
	pool   []*cache // freed caches available for reuse after Flush
}

func NewWriter(dst io.Writer) Writer {
	return &writer{dst: dst}
}

func (w *writer) Malloc(n int) ([]byte, error) {
	if n < 0 {
		return nil, ErrNegativeCount
	}
	if len(w.caches) == 0 {
		w.caches = append(w.caches, w.acquire(n))
		c := w.caches[0]
		c.data = c.data[:n]
		return c.data, nil
	}

	last := w.caches[len(w.caches)-1]
	if len(last.data)+n <= cap(last.data) {
		start := len(last.data)
		last.data = last.data[:start+n]
		return last.data[start:], nil
	}

	// current block can't fit n more bytes: start a fresh block (a pooled
	// one, or a new one of at least DefaultWriteBufferSize) that holds n.
	nc := w.acquire(n)
	nc.data = nc.data[:n]
	w.caches = append(w.caches, nc)
	return nc.data, nil
}

func (w *writer) acquire(minSize int) *cache {
	if len(w.pool) > 0 {
		c := w.pool[len(w.pool)-1]
		w.pool = w.pool[:len(w.pool)-1]
		if cap(c.data) >= minSize {
			c.data = c.data[:0]
			return c
		}
	}
	size := DefaultWriteBufferSize
	for size < minSize {
		size *= 2
	}
	return &cache{data: make([]byte, 0, size)}
}

func (w *writer) WriteBinary(b []byte) (int, error) {
	dst, err := w.Malloc(len(b))
	if err != nil {
		return 0, err
	}
	copy(dst, b)
	return len(b), nil
}

func (w *writer) Buffered() int {
	n := 0
	for _, c := range w.caches {
		n += len(c.data)
	}
	return n
}

func (w *writer) Flush() error {
	for _, c := range w.caches {
		if len(c.data) == 0 {
			continue
		}
		if _, err := w.dst.Write(c.data); err != nil {
			return err
		}
	}
	w.pool = append(w.pool, w.caches...)
	w.caches = w.caches[:0]
	return nil
}
