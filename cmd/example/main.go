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

// Command example wires an httpengine server with a small handler chain: a
// JSON echo endpoint and a WebSocket echo endpoint, registered with
// global.DefaultResourceManger so Ctrl-C shuts the listener down cleanly.
package main

import (
	"strings"

	"github.com/caiflower/httpengine/exchange"
	"github.com/caiflower/httpengine/global"
	"github.com/caiflower/httpengine/internal/apierr"
	"github.com/caiflower/httpengine/pkg/logger"
	"github.com/caiflower/httpengine/pkg/tools"
	"github.com/caiflower/httpengine/protocol"
	"github.com/caiflower/httpengine/server"
	"github.com/caiflower/httpengine/ws"
)

type echoRequest struct {
	Message string `json:"message"`
}

type echoResponse struct {
	Echo string `json:"echo"`
}

// jsonHandler answers POST /echo with the decoded body reflected back as
// JSON, GET /health with a static 200, and upgrades GET /ws... to a
// WebSocket echo session. Any other path falls through to the next handler
// (here, none - the exchange loop's default 404 applies).
var jsonHandler = server.HandlerFunc(func(ex *exchange.HTTPExchange, req *protocol.Request, resp *protocol.Response) error {
	switch {
	case req.Method == "GET" && req.Target == "/health":
		return resp.Status(200, "OK").ContentType("text/plain; charset=utf-8").WriteString("ok")

	case req.Method == "POST" && req.Target == "/echo":
		body := ex.Body()
		buf := make([]byte, 0, 1024)
		chunk := make([]byte, 512)
		for {
			n, err := body.Read(chunk)
			if n > 0 {
				buf = append(buf, chunk[:n]...)
			}
			if err != nil {
				break
			}
		}

		var in echoRequest
		if err := tools.Unmarshal(buf, &in); err != nil {
			apiErr := apierr.New(apierr.InvalidArgument, "body is not valid JSON", err)
			return resp.Status(apiErr.Status, "Bad Request").ContentType("application/json; charset=utf-8").WriteString(apiErr.Error())
		}

		out, err := tools.ToByte(echoResponse{Echo: in.Message})
		if err != nil {
			return err
		}
		return resp.Status(200, "OK").ContentType("application/json; charset=utf-8").WriteString(string(out))

	case req.Method == "GET" && strings.HasPrefix(req.Target, "/ws"):
		return ex.Upgrade(req, resp, echoWSHandler{}, "")
	}
	return nil
})

// echoWSHandler mirrors every text and binary message back to the sender
// and logs the session close; pings and pongs use ws.BaseHandler's
// defaults (a ping is answered with a pong, a pong is ignored).
type echoWSHandler struct {
	ws.BaseHandler
}

func (echoWSHandler) OnText(s ws.Session, msg string) ws.Handler {
	if err := s.SendText(msg); err != nil {
		logger.Warn("[example] sending text echo failed. error=%s", err.Error())
	}
	return nil
}

func (echoWSHandler) OnBinary(s ws.Session, msg []byte) ws.Handler {
	if err := s.SendBinary(msg); err != nil {
		logger.Warn("[example] sending binary echo failed. error=%s", err.Error())
	}
	return nil
}

func (echoWSHandler) OnClose(s ws.Session, code int, reason string) {
	logger.Info("[example] websocket session closed. code=%d reason=%s", code, reason)
}

func main() {
	opts := server.NewOptions(
		server.WithName("example"),
		server.WithAddr(":8080"),
		server.WithMetrics(true),
	)

	srv := server.New(opts, jsonHandler)
	global.DefaultResourceManger.AddDaemon(srv)
	global.DefaultResourceManger.Signal()
}
