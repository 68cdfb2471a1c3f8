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

import (
	"compress/gzip"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
)

// flusher is implemented by closeInterceptor so chunkedEncoder can push a
// chunk to the socket immediately without completing the response.
type flusher interface {
	Flush() error
}

// chunkedEncoder frames each Write as its own `hex-size CRLF data CRLF`
// chunk - it never coalesces across calls, so a handler streaming one
// event per Write (an SSE loop) gets one chunk on the wire per event, in
// flushEach mode flushed through to the socket before Write returns.
// Close emits the terminal `0 CRLF CRLF`.
//
// A single-byte chunk is never framed: some intermediaries mishandle a
// 1-octet chunk body, so a Write of exactly one byte is rejected outright
// rather than silently held back - a caller that needs a 1-byte payload
// on the wire (e.g. a bare keep-alive comment) must write it together
// with at least one more byte in the same call.
type chunkedEncoder struct {
	inner     io.WriteCloser
	flushEach bool
}

func newChunkedEncoder(inner io.WriteCloser, flushEach bool) *chunkedEncoder {
	return &chunkedEncoder{inner: inner, flushEach: flushEach}
}

func (c *chunkedEncoder) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(p) == 1 {
		return 0, errors.New("httpengine: chunked output does not support single-byte writes; pair it with more data")
	}
	if err := c.writeChunk(p); err != nil {
		return 0, err
	}
	if c.flushEach {
		if f, ok := c.inner.(flusher); ok {
			if err := f.Flush(); err != nil {
				return 0, err
			}
		}
	}
	return len(p), nil
}

func (c *chunkedEncoder) writeChunk(p []byte) error {
	size := strconv.FormatInt(int64(len(p)), 16)
	if _, err := c.inner.Write([]byte(size + "\r\n")); err != nil {
		return err
	}
	if _, err := c.inner.Write(p); err != nil {
		return err
	}
	_, err := c.inner.Write([]byte("\r\n"))
	return err
}

func (c *chunkedEncoder) Close() error {
	if _, err := c.inner.Write([]byte("0\r\n\r\n")); err != nil {
		return err
	}
	return c.inner.Close()
}

// gzipCompressor and brotliCompressor adapt the stdlib/ecosystem streaming
// compressors to the io.WriteCloser sink contract: Close finishes the
// compressed stream, then closes the inner sink so the close-interceptor
// still sees exactly one terminal Close.
type gzipCompressor struct {
	gz    *gzip.Writer
	inner io.WriteCloser
}

func newGzipCompressor(inner io.WriteCloser) *gzipCompressor {
	return &gzipCompressor{gz: gzip.NewWriter(inner), inner: inner}
}

func (g *gzipCompressor) Write(p []byte) (int, error) { return g.gz.Write(p) }

func (g *gzipCompressor) Close() error {
	if err := g.gz.Close(); err != nil {
		return err
	}
	return g.inner.Close()
}

type brotliCompressor struct {
	bw    *brotli.Writer
	inner io.WriteCloser
}

func newBrotliCompressor(inner io.WriteCloser) *brotliCompressor {
	return &brotliCompressor{bw: brotli.NewWriter(inner), inner: inner}
}

func (b *brotliCompressor) Write(p []byte) (int, error) { return b.bw.Write(p) }

func (b *brotliCompressor) Close() error {
	if err := b.bw.Close(); err != nil {
		return err
	}
	return b.inner.Close()
}

func wrapCompressor(inner io.WriteCloser, encoding string) io.WriteCloser {
	switch encoding {
	case "br":
		return newBrotliCompressor(inner)
	default:
		return newGzipCompressor(inner)
	}
}

// chooseContentEncoding applies simple quality negotiation over
// Accept-Encoding: the highest-q coding wins, and gzip wins a tie since
// it's the baseline every HTTP/1.1 client is expected to support. Absent
// header or "identity"-only means no compression.
func chooseContentEncoding(acceptEncoding string) string {
	if acceptEncoding == "" {
		return ""
	}
	type candidate struct {
		name string
		q    float64
	}
	var candidates []candidate
	for _, part := range strings.Split(acceptEncoding, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name := part
		q := 1.0
		if semi := strings.IndexByte(part, ';'); semi >= 0 {
			name = strings.TrimSpace(part[:semi])
			params := part[semi+1:]
			for _, p := range strings.Split(params, ";") {
				p = strings.TrimSpace(p)
				if strings.HasPrefix(p, "q=") {
					if v, err := strconv.ParseFloat(strings.TrimPrefix(p, "q="), 64); err == nil {
						q = v
					}
				}
			}
		}
		name = strings.ToLower(name)
		if name == "gzip" || name == "br" {
			candidates = append(candidates, candidate{name, q})
		}
	}

	best := ""
	bestQ := 0.0
	for _, c := range candidates {
		if c.q <= 0 {
			continue
		}
		if c.q > bestQ || (c.q == bestQ && c.name == "gzip") {
			best = c.name
			bestQ = c.q
		}
	}
	return best
}
