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

// Package conn owns one accepted socket end to end: the buffered streams
// read from and written to it, and whichever Exchange currently drives it
// (HTTP keep-alive, or a WebSocket session after an upgrade).
package conn

import (
	"errors"
	"net"

	"github.com/caiflower/httpengine/exchange"
	"github.com/caiflower/httpengine/netio"
	"github.com/caiflower/httpengine/pkg/logger"
	"github.com/caiflower/httpengine/protocol"
)

// Connection is created once per accepted socket and runs entirely on the
// goroutine that calls Run. Only the active Exchange, swapped on that same
// goroutine during an upgrade, ever changes after construction.
type Connection struct {
	netConn net.Conn
	r       netio.Reader
	w       netio.Writer
	initial exchange.Exchange
}

// New constructs the buffered streams for netConn and installs the initial
// HTTPExchange. handlers and cfg are immutable snapshots handed down from
// the server for the lifetime of this connection.
func New(netConn net.Conn, inputBufferSize, outputBufferSize int, handlers []exchange.Handler, cfg exchange.Config, metrics *exchange.Metrics) *Connection {
	r := netio.NewReaderSize(netConn, inputBufferSize)
	w := netio.NewWriter(netConn)
	in := protocol.NewInput(r, cfg.Limits)

	return &Connection{
		netConn: netConn,
		r:       r,
		w:       w,
		initial: exchange.NewHTTPExchange(netConn, r, w, in, handlers, cfg, metrics),
	}
}

// Run drives the connection until the exchange chain terminates, then
// closes the socket. It never returns early: a swapped exchange (HTTP ->
// WebSocket) is looped into immediately on the same goroutine.
func (c *Connection) Run() {
	defer func() {
		if err := c.netConn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Warn("[Connection] closing socket failed. remote=%s error=%s", c.netConn.RemoteAddr(), err.Error())
		}
	}()

	current := c.initial
	for current != nil {
		next, err := current.Process()
		if err != nil {
			logger.Warn("[Connection] exchange terminated with error. remote=%s error=%s", c.netConn.RemoteAddr(), err.Error())
			return
		}
		current = next
	}
}
