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
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/caiflower/httpengine/netio"
)

// CompressThreshold is the minimum body length auto-compression bothers
// with; smaller bodies would only grow under gzip/brotli framing overhead.
const CompressThreshold = 850

type State int

const (
	StatePending State = iota
	StateBody
	StateComplete
)

var ErrResponseComplete = errors.New("protocol: response already complete")

// Response is the status-line/header emitter plus the output-wrapper
// stack. One is created per request; it moves PENDING -> BODY on the first
// commit and BODY -> COMPLETE when the body sink is closed.
type Response struct {
	w       netio.Writer
	request *Request

	status  int
	reason  string
	headers []Header

	noBody         bool
	chunked        bool
	compress       bool
	flushEachChunk bool
	contentLength  int64
	closeAfter     bool
	closeExplicit  bool
	encodingInUse  string
	connectionHdr  string

	state State
	sink  io.WriteCloser
}

func NewResponse(w netio.Writer, request *Request) *Response {
	return &Response{
		w:             w,
		request:       request,
		status:        200,
		contentLength: -1,
		chunked:       true,
	}
}

func (r *Response) Status(code int, reason string) *Response {
	r.status = code
	r.reason = reason
	return r
}

func (r *Response) ContentType(ct string) *Response {
	return r.SetHeader("content-type", ct)
}

func (r *Response) ContentLength(n int64) *Response {
	r.contentLength = n
	r.chunked = false
	return r
}

func (r *Response) Chunked(on bool) *Response {
	r.chunked = on
	return r
}

func (r *Response) FlushEachChunk(on bool) *Response {
	r.flushEachChunk = on
	return r
}

func (r *Response) Compress(on bool) *Response {
	r.compress = on
	return r
}

func (r *Response) CloseAfter(on bool) *Response {
	r.closeAfter = on
	r.closeExplicit = on
	return r
}

// ConnectionOverride replaces the auto-computed keep-alive/close value of
// the "connection" header with an explicit one (e.g. "Upgrade"). Used by
// the WebSocket upgrade response, which must not carry "keep-alive".
func (r *Response) ConnectionOverride(value string) *Response {
	r.connectionHdr = value
	return r
}

// ClosedConnection reports whether the committed response decided the
// connection closes after this exchange; the exchange loop reads it after
// the handler chain returns, together with Responded, State and StatusCode.
func (r *Response) ClosedConnection() bool {
	return r.closeAfter
}

func (r *Response) SetHeader(name, value string) *Response {
	r.headers = append(r.headers, NewHeader(name, value))
	return r
}

func (r *Response) State() State {
	return r.state
}

// StatusCode returns the status code the response committed (or will
// commit) with.
func (r *Response) StatusCode() int {
	return r.status
}

// Responded reports whether beginResponse has already committed headers -
// the handler-chain test for "did a prior handler already act".
func (r *Response) Responded() bool {
	return r.state != StatePending
}

// WriteString commits the response and writes a complete string body in
// one call. Bodies below CompressThreshold disable auto-compression and
// switch to a fixed Content-Length, overriding chunked framing.
func (r *Response) WriteString(body string) error {
	data := []byte(body)
	if len(data) < CompressThreshold {
		r.compress = false
		r.chunked = false
		r.contentLength = int64(len(data))
	}
	sink, err := r.beginResponse()
	if err != nil {
		return err
	}
	if sink == nil {
		return nil
	}
	if _, err := sink.Write(data); err != nil {
		return err
	}
	return sink.Close()
}

// WriteFrom commits the response and streams src to completion.
func (r *Response) WriteFrom(src io.Reader) error {
	sink, err := r.beginResponse()
	if err != nil {
		return err
	}
	if sink == nil {
		return nil
	}
	if _, err := io.Copy(sink, src); err != nil {
		return err
	}
	return sink.Close()
}

// BodySink commits the response and returns the raw body sink; the caller
// is responsible for closing it to reach COMPLETE.
func (r *Response) BodySink() (io.WriteCloser, error) {
	return r.beginResponse()
}

// NoBody commits a response with no body at all.
func (r *Response) NoBody() error {
	r.noBody = true
	_, err := r.beginResponse()
	return err
}

func (r *Response) beginResponse() (io.WriteCloser, error) {
	if r.state == StateComplete {
		return nil, ErrResponseComplete
	}
	if r.state == StateBody {
		return r.sink, nil
	}

	var head bytes.Buffer
	fmt.Fprintf(&head, "HTTP/1.1 %d %s\r\n", r.status, r.reason)

	bodyAllowed := !r.noBody
	if bodyAllowed && r.compress {
		enc := chooseContentEncoding(r.acceptEncoding())
		if enc == "" {
			r.compress = false
		} else {
			head.WriteString("content-encoding: " + enc + "\r\n")
			r.encodingInUse = enc
		}
	} else {
		r.compress = false
	}

	for _, h := range r.headers {
		fmt.Fprintf(&head, "%s: %s\r\n", h.Name, h.Value)
	}

	if bodyAllowed && r.chunked {
		head.WriteString("transfer-encoding: chunked\r\n")
	} else if r.contentLength >= 0 {
		fmt.Fprintf(&head, "content-length: %d\r\n", r.contentLength)
	}

	if r.connectionHdr != "" {
		head.WriteString("connection: " + r.connectionHdr + "\r\n")
	} else {
		r.resolveCloseAfter()
		if r.closeAfter {
			head.WriteString("connection: close\r\n")
		} else {
			head.WriteString("connection: keep-alive\r\n")
		}
	}
	head.WriteString("\r\n")

	if _, err := r.w.WriteBinary(head.Bytes()); err != nil {
		return nil, err
	}

	if !bodyAllowed {
		if err := r.w.Flush(); err != nil {
			return nil, err
		}
		r.state = StateComplete
		return nil, nil
	}

	r.state = StateBody
	var sink io.WriteCloser = newCloseInterceptor(r.w, r)
	if r.chunked {
		sink = newChunkedEncoder(sink, r.flushEachChunk)
	}
	if r.compress {
		sink = wrapCompressor(sink, r.encodingInUse)
	}
	r.sink = sink
	return sink, nil
}

func (r *Response) acceptEncoding() string {
	if r.request == nil {
		return ""
	}
	v, _ := r.request.Header("accept-encoding")
	return v
}

func (r *Response) resolveCloseAfter() {
	if r.closeExplicit {
		return
	}
	if r.request == nil {
		return
	}
	if conn, ok := r.request.Header("connection"); ok && containsToken(strings.ToLower(conn), "close") {
		r.closeAfter = true
		return
	}
	if r.request.Version == "HTTP/1.0" && r.request.CloseAfter {
		r.closeAfter = true
	}
}

// closeInterceptor is the innermost wrapper: its Close flushes the
// underlying connection writer and transitions the response to COMPLETE,
// but never closes the connection itself.
type closeInterceptor struct {
	w    netio.Writer
	resp *Response
}

func newCloseInterceptor(w netio.Writer, resp *Response) *closeInterceptor {
	return &closeInterceptor{w: w, resp: resp}
}

func (c *closeInterceptor) Write(p []byte) (int, error) {
	return c.w.WriteBinary(p)
}

// Flush pushes buffered bytes to the socket without completing the
// response, so chunkedEncoder's flushEach mode can put a chunk on the wire
// immediately (SSE, long-lived streams) without going through Close.
func (c *closeInterceptor) Flush() error {
	return c.w.Flush()
}

func (c *closeInterceptor) Close() error {
	if err := c.w.Flush(); err != nil {
		return err
	}
	c.resp.state = StateComplete
	return nil
}
