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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/caiflower/httpengine/netio"
)

func newTestRequest(t *testing.T, raw string) *Request {
	t.Helper()
	in := newInput(raw)
	req, err := in.ReadRequest()
	assert.NoError(t, err)
	return req
}

func TestResponseHelloWorldScenario(t *testing.T) {
	req := newTestRequest(t, "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")
	var out bytes.Buffer
	w := netio.NewWriter(&out)

	resp := NewResponse(w, req)
	assert.NoError(t, resp.WriteString("Hello World!"))
	assert.Equal(t, StateComplete, resp.State())
	assert.Equal(t, "HTTP/1.1 200 \r\ncontent-length: 12\r\nconnection: keep-alive\r\n\r\nHello World!", out.String())
}

func TestResponseKeepAliveTwice(t *testing.T) {
	var out bytes.Buffer
	w := netio.NewWriter(&out)

	for i := 0; i < 2; i++ {
		req := newTestRequest(t, "GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")
		resp := NewResponse(w, req)
		assert.NoError(t, resp.WriteString("Hello World!"))
	}

	expected := "HTTP/1.1 200 \r\ncontent-length: 12\r\nconnection: keep-alive\r\n\r\nHello World!"
	assert.Equal(t, expected+expected, out.String())
}

func TestResponseEchoScenario(t *testing.T) {
	req := newTestRequest(t, "POST /submit HTTP/1.1\r\nHost: example.com\r\nContent-Length: 11\r\n\r\nhello=world")
	var out bytes.Buffer
	w := netio.NewWriter(&out)

	resp := NewResponse(w, req)
	assert.NoError(t, resp.WriteString("Echo: hello=world"))
	assert.Contains(t, out.String(), "content-length: 17\r\n")
	assert.Contains(t, out.String(), "Echo: hello=world")
}

func TestResponseCloseAfterOnConnectionClose(t *testing.T) {
	req := newTestRequest(t, "GET / HTTP/1.1\r\nHost: h\r\nConnection: close\r\n\r\n")
	var out bytes.Buffer
	w := netio.NewWriter(&out)

	resp := NewResponse(w, req)
	assert.NoError(t, resp.WriteString("hi"))
	assert.Contains(t, out.String(), "connection: close\r\n")
}

func TestResponseNoBody(t *testing.T) {
	req := newTestRequest(t, "GET / HTTP/1.1\r\nHost: h\r\n\r\n")
	var out bytes.Buffer
	w := netio.NewWriter(&out)

	resp := NewResponse(w, req).Status(204, "No Content")
	assert.NoError(t, resp.NoBody())
	assert.Equal(t, StateComplete, resp.State())
	assert.NotContains(t, out.String(), "content-length")
}

func TestResponseChunkedEndsWithTerminator(t *testing.T) {
	req := newTestRequest(t, "GET / HTTP/1.1\r\nHost: h\r\n\r\n")
	var out bytes.Buffer
	w := netio.NewWriter(&out)

	resp := NewResponse(w, req).Chunked(true)
	sink, err := resp.BodySink()
	assert.NoError(t, err)
	_, err = sink.Write(bytes.Repeat([]byte("x"), 2000)) // above CompressThreshold to keep chunking
	assert.NoError(t, err)
	assert.NoError(t, sink.Close())

	assert.Contains(t, out.String(), "transfer-encoding: chunked\r\n")
	assert.True(t, bytes.HasSuffix(out.Bytes(), []byte("0\r\n\r\n")))
}

func TestResponseSecondWriteAfterCompleteErrors(t *testing.T) {
	req := newTestRequest(t, "GET / HTTP/1.1\r\nHost: h\r\n\r\n")
	var out bytes.Buffer
	w := netio.NewWriter(&out)

	resp := NewResponse(w, req)
	assert.NoError(t, resp.WriteString("hi"))
	assert.ErrorIs(t, resp.WriteString("again"), ErrResponseComplete)
}

func TestChooseContentEncodingPrefersGzipOnTie(t *testing.T) {
	assert.Equal(t, "gzip", chooseContentEncoding("gzip, br"))
	assert.Equal(t, "gzip", chooseContentEncoding("br, gzip"))
	assert.Equal(t, "gzip", chooseContentEncoding("gzip;q=1.0, br;q=0.5"))
	assert.Equal(t, "br", chooseContentEncoding("gzip;q=0.5, br;q=1.0"))
	assert.Equal(t, "", chooseContentEncoding("identity"))
}
