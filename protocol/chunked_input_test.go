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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/caiflower/httpengine/netio"
)

func newChunkedInput(raw string) *Input {
	return NewInput(netio.NewReader(strings.NewReader(raw)), DefaultLimits())
}

func TestReadChunkBasic(t *testing.T) {
	in := newChunkedInput("5\r\nhello\r\n0\r\n\r\n")
	chunk, err := in.ReadChunk()
	assert.NoError(t, err)
	assert.False(t, chunk.IsLast)
	assert.Equal(t, "hello", string(chunk.Data))

	last, err := in.ReadChunk()
	assert.NoError(t, err)
	assert.True(t, last.IsLast)
}

func TestReadChunkWithExtension(t *testing.T) {
	in := newChunkedInput("5;foo=bar\r\nhello\r\n0\r\n\r\n")
	chunk, err := in.ReadChunk()
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(chunk.Data))
	assert.Len(t, chunk.Extensions, 1)
	assert.Equal(t, "foo", chunk.Extensions[0].Name)
	assert.Equal(t, "bar", chunk.Extensions[0].Value)
}

func TestReadChunkWithQuotedExtension(t *testing.T) {
	in := newChunkedInput("5;foo=\"b a r\"\r\nhello\r\n0\r\n\r\n")
	chunk, err := in.ReadChunk()
	assert.NoError(t, err)
	assert.Equal(t, "b a r", chunk.Extensions[0].Value)
}

func TestReadChunkTrailers(t *testing.T) {
	in := newChunkedInput("0\r\nX-Trailer: done\r\n\r\n")
	chunk, err := in.ReadChunk()
	assert.NoError(t, err)
	assert.True(t, chunk.IsLast)
	assert.Len(t, chunk.Trailers, 1)
	assert.Equal(t, "done", chunk.Trailers[0].Value)
}

func TestReadChunkOversizeSizeRejected(t *testing.T) {
	in := newChunkedInput("ffffffffffffffff\r\n")
	_, err := in.ReadChunk()
	_, ok := AsBadRequest(err)
	assert.True(t, ok)
}

func TestReadChunkMalformedTerminator(t *testing.T) {
	in := newChunkedInput("5\r\nhelloXX0\r\n\r\n")
	_, err := in.ReadChunk()
	_, ok := AsBadRequest(err)
	assert.True(t, ok)
}

func TestChunkedBodyConcatenatesMultipleChunks(t *testing.T) {
	in := newChunkedInput("3\r\nhel\r\n2\r\nlo\r\n0\r\n\r\n")
	body := NewChunkedBody(in)
	buf := make([]byte, 16)
	n, err := body.Read(buf)
	total := string(buf[:n])
	for err == nil {
		n, err = body.Read(buf)
		total += string(buf[:n])
	}
	assert.Equal(t, "hello", total)
}
