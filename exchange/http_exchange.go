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

package exchange

import (
	"fmt"
	"io"
	"net"
	"time"

	golocalv1 "github.com/caiflower/httpengine/pkg/golocal/v1"
	"github.com/caiflower/httpengine/netio"
	"github.com/caiflower/httpengine/pkg/logger"
	"github.com/caiflower/httpengine/pkg/tools"
	"github.com/caiflower/httpengine/protocol"
)

// HTTPExchange runs the strict keep-alive loop: read request, dispatch to
// the handler chain, ensure the response reached COMPLETE, drain any
// unconsumed body, then either loop for the next pipelined request or
// return to the connection (clean close, upgrade, or fatal error).
type HTTPExchange struct {
	netConn net.Conn
	r       netio.Reader
	w       netio.Writer
	in      *protocol.Input
	cfg     Config
	metrics *Metrics

	handlers []Handler

	requestNum  uint64
	currentBody protocol.Body
	upgraded    Exchange
}

func NewHTTPExchange(netConn net.Conn, r netio.Reader, w netio.Writer, in *protocol.Input, handlers []Handler, cfg Config, metrics *Metrics) *HTTPExchange {
	return &HTTPExchange{netConn: netConn, r: r, w: w, in: in, handlers: handlers, cfg: cfg, metrics: metrics}
}

func (ex *HTTPExchange) Process() (Exchange, error) {
	for {
		if ex.requestNum > 0 && ex.cfg.IdleTimeout > 0 {
			_ = ex.netConn.SetReadDeadline(time.Now().Add(ex.cfg.IdleTimeout))
			if _, err := ex.r.Peek(1); err != nil {
				// Not the first request and not a single byte of the next
				// one yet: either the peer went away or we hit the idle
				// deadline. Either way this is a clean keep-alive end, not
				// an error.
				return nil, nil
			}
			if ex.cfg.ReadTimeout > 0 {
				_ = ex.netConn.SetReadDeadline(time.Now().Add(ex.cfg.ReadTimeout))
			}
		}
		ex.requestNum++
		golocalv1.PutTraceID(tools.UUID())

		start := time.Now()
		req, err := ex.in.ReadRequest()
		if err == io.EOF {
			return nil, nil
		}
		if bad, ok := protocol.AsBadRequest(err); ok {
			ex.writeBadRequest(bad)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		ex.currentBody = newBody(ex.in, req)

		resp := protocol.NewResponse(ex.w, req).SetHeader(golocalv1.RequestID, golocalv1.GetTraceID())
		if err := ex.dispatch(req, resp); err != nil {
			logger.Error("[HTTPExchange] handler chain error. method=%s target=%s error=%s", req.Method, req.Target, err.Error())
		}

		if !resp.Responded() {
			_ = resp.Status(404, "").ContentType("text/plain; charset=utf-8").WriteString("Not found.")
		}

		if resp.State() != protocol.StateComplete {
			// Programmer error: a handler marked the exchange responded
			// without ever driving the response to completion.
			panic(fmt.Sprintf("httpengine: response for %s %s left in state %d, not COMPLETE", req.Method, req.Target, resp.State()))
		}

		if err := ex.currentBody.Close(); err != nil {
			logger.Warn("[HTTPExchange] draining request body failed. error=%s", err.Error())
		}
		ex.currentBody = nil

		ex.metrics.recordRequest(req.Method, resp.StatusCode(), time.Since(start))

		if ex.upgraded != nil {
			next := ex.upgraded
			ex.upgraded = nil
			return next, nil
		}

		if req.CloseAfter || resp.ClosedConnection() {
			return nil, nil
		}
	}
}

func (ex *HTTPExchange) dispatch(req *protocol.Request, resp *protocol.Response) error {
	for _, h := range ex.handlers {
		if err := h.Serve(ex, req, resp); err != nil {
			return err
		}
		if resp.Responded() {
			return nil
		}
	}
	return nil
}

// Body returns the readable request body for the request currently being
// handled. It is safe to call at most once per request; the exchange loop
// drains and closes it after every iteration regardless.
func (ex *HTTPExchange) Body() protocol.Body {
	return ex.currentBody
}

func newBody(in *protocol.Input, req *protocol.Request) protocol.Body {
	switch req.BodyMode {
	case protocol.BodyFixedLength:
		return protocol.NewFixedBody(in, req.ContentLength)
	case protocol.BodyChunked:
		return protocol.NewChunkedBody(in)
	default:
		return protocol.NewFixedBody(in, 0)
	}
}

// writeBadRequest emits the minimal canonical 400 form directly, bypassing
// Response's negotiation entirely - the wire bytes here are exactly
// specified and must not pick up chunking or compression.
func (ex *HTTPExchange) writeBadRequest(bad *protocol.BadRequest) {
	msg := bad.Error()
	head := fmt.Sprintf("HTTP/1.1 400 \r\ncontent-type: text/plain\r\ncontent-length: %d\r\nconnection: close\r\n\r\n%s", len(msg), msg)
	if _, err := ex.w.WriteBinary([]byte(head)); err != nil {
		logger.Warn("[HTTPExchange] writing 400 response failed. error=%s", err.Error())
		return
	}
	if err := ex.w.Flush(); err != nil {
		logger.Warn("[HTTPExchange] flushing 400 response failed. error=%s", err.Error())
	}
}
