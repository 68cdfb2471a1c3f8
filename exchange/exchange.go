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

// Package exchange holds the two things that run on a connection's
// goroutine once a socket is accepted: the HTTP/1.1 keep-alive loop and
// the WebSocket session loop that replaces it after a successful upgrade.
package exchange

import (
	"time"

	"github.com/caiflower/httpengine/protocol"
)

// Exchange is whatever currently owns a connection's request/response (or
// frame) loop. Process runs until the connection should close (returning
// nil, nil), hits a fatal I/O error (non-nil error), or the connection was
// upgraded to a different protocol (returning the replacement Exchange).
type Exchange interface {
	Process() (Exchange, error)
}

// Config is the subset of server.Options an Exchange needs, passed down
// rather than imported directly so this package never depends on server
// (server depends on exchange, not the other way around).
type Config struct {
	Limits             protocol.Limits
	ReadTimeout        time.Duration
	IdleTimeout        time.Duration
	MaxFramePayload    int64
	EnablePermessageDeflate bool
}

// Handler is the chain element the keep-alive loop dispatches each parsed
// request to. A handler signals "I handled this" by committing a response
// (resp.Responded() becomes true); otherwise the next handler in the chain
// runs. A handler invokes the WebSocket upgrade via (*HTTPExchange).Upgrade.
type Handler interface {
	Serve(ex *HTTPExchange, req *protocol.Request, resp *protocol.Response) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ex *HTTPExchange, req *protocol.Request, resp *protocol.Response) error

func (f HandlerFunc) Serve(ex *HTTPExchange, req *protocol.Request, resp *protocol.Response) error {
	return f(ex, req, resp)
}

// Lifecycle is an optional capability a Handler may implement: AddedToServer
// runs once when the handler chain is installed, Cleanup when the chain is
// replaced or the server stops. Both are free functions on the interface
// rather than a base class per the "prefer interface over inheritance"
// design note - a handler that needs neither simply doesn't implement this.
type Lifecycle interface {
	AddedToServer()
	Cleanup()
}
