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

package protocol

import "io"

// Body is the readable adapter a handler consumes. Both implementations
// leave the underlying connection stream open; Close drains whatever is
// left unread so the next pipelined request parses cleanly.
type Body interface {
	io.Reader
	io.Closer
}

func translateBodyReadErr(err error) error {
	if err == io.EOF {
		return NewBadRequest("unexpected EOF in request body")
	}
	return err
}

// FixedBody reads at most N bytes declared by Content-Length.
type FixedBody struct {
	in        *Input
	remaining int64
}

func NewFixedBody(in *Input, length int64) *FixedBody {
	return &FixedBody{in: in, remaining: length}
}

func (b *FixedBody) Read(p []byte) (int, error) {
	if b.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	peek, err := b.in.r.Peek(len(p))
	n := copy(p, peek)
	if n > 0 {
		if skipErr := b.in.r.Skip(n); skipErr != nil {
			return n, skipErr
		}
		b.remaining -= int64(n)
	}
	if err != nil {
		return n, translateBodyReadErr(err)
	}
	return n, nil
}

// Close drains any unread remainder without closing the connection.
func (b *FixedBody) Close() error {
	for b.remaining > 0 {
		chunkLen := b.remaining
		const drainChunk = 64 * 1024
		if chunkLen > drainChunk {
			chunkLen = drainChunk
		}
		buf := make([]byte, chunkLen)
		n, err := b.Read(buf)
		if n == 0 && err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
	}
	return nil
}

// ChunkedBody presents the concatenation of chunk-datas from a
// transfer-encoding: chunked request as a contiguous byte stream.
type ChunkedBody struct {
	in       *Input
	pending  []byte
	done     bool
	trailers []Header
}

func NewChunkedBody(in *Input) *ChunkedBody {
	return &ChunkedBody{in: in}
}

func (b *ChunkedBody) Trailers() []Header {
	return b.trailers
}

func (b *ChunkedBody) Read(p []byte) (int, error) {
	for len(b.pending) == 0 {
		if b.done {
			return 0, io.EOF
		}
		chunk, err := b.in.ReadChunk()
		if err != nil {
			return 0, err
		}
		if chunk.IsLast {
			b.done = true
			b.trailers = chunk.Trailers
			return 0, io.EOF
		}
		b.pending = chunk.Data
	}
	n := copy(p, b.pending)
	b.pending = b.pending[n:]
	return n, nil
}

// Close drains any remaining chunks without closing the connection.
func (b *ChunkedBody) Close() error {
	buf := make([]byte, 64*1024)
	for !b.done {
		if _, err := b.Read(buf); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
	}
	return nil
}
