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
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caiflower/httpengine/protocol"
	"github.com/caiflower/httpengine/ws"
)

func TestComputeAcceptKeyMatchesRFC6455Example(t *testing.T) {
	// The worked example straight out of RFC 6455 §1.3.
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", computeAcceptKey("dGhlIHNhbXBsZSBub25jZQ=="))
}

type recordingWSHandler struct {
	ws.BaseHandler
	closed bool
}

func (h *recordingWSHandler) OnClose(s ws.Session, code int, reason string) {
	h.closed = true
}

func TestUpgradeHandshakeWritesAcceptKeyAndInstallsWSExchange(t *testing.T) {
	handler := HandlerFunc(func(ex *HTTPExchange, req *protocol.Request, resp *protocol.Response) error {
		return ex.Upgrade(req, resp, &recordingWSHandler{}, "")
	})
	ex, client := newPipeExchange(t, []Handler{handler}, Config{EnablePermessageDeflate: true})

	resultCh := make(chan struct {
		next Exchange
		err  error
	}, 1)
	go func() {
		next, err := ex.Process()
		resultCh <- struct {
			next Exchange
			err  error
		}{next, err}
	}()

	req := "GET /ws HTTP/1.1\r\nHost: example.com\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\nSec-WebSocket-Version: 13\r\n\r\n"
	_, err := client.Write([]byte(req))
	require.NoError(t, err)

	reader := bufio.NewReader(client)
	statusLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, statusLine, "101")

	var acceptLine string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		if line == "\r\n" {
			break
		}
		if acceptLine == "" && strings.HasPrefix(line, "sec-websocket-accept:") {
			acceptLine = line
		}
	}
	assert.Equal(t, "sec-websocket-accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n", acceptLine)

	result := <-resultCh
	require.NoError(t, result.err)
	require.NotNil(t, result.next)
	_, ok := result.next.(*WSExchange)
	assert.True(t, ok)
}

func TestUpgradeRejectsMissingUpgradeHeader(t *testing.T) {
	handler := HandlerFunc(func(ex *HTTPExchange, req *protocol.Request, resp *protocol.Response) error {
		err := ex.Upgrade(req, resp, &recordingWSHandler{}, "")
		if err != nil {
			_, isUpErr := err.(*UpgradeError)
			assert.True(t, isUpErr)
			return resp.Status(400, "Bad Request").WriteString("not a websocket request")
		}
		return nil
	})
	ex, client := newPipeExchange(t, []Handler{handler}, Config{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = ex.Process()
	}()

	_, err := client.Write([]byte("GET /ws HTTP/1.1\r\nHost: example.com\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(client)
	line, _ := reader.ReadString('\n')
	assert.Contains(t, line, "400")

	<-done
}

func TestNegotiatePermessageDeflateAcceptsPlainOffer(t *testing.T) {
	accepted, serverNoCtx, clientNoCtx := negotiatePermessageDeflate("permessage-deflate")
	assert.True(t, accepted)
	assert.False(t, serverNoCtx)
	assert.False(t, clientNoCtx)
}

func TestNegotiatePermessageDeflateRejectsUnknownParam(t *testing.T) {
	accepted, _, _ := negotiatePermessageDeflate("permessage-deflate; something_unknown")
	assert.False(t, accepted)
}

func TestNegotiatePermessageDeflateRejectsNon15WindowBits(t *testing.T) {
	accepted, _, _ := negotiatePermessageDeflate("permessage-deflate; server_max_window_bits=10")
	assert.False(t, accepted)
}

func TestNegotiatePermessageDeflateFallsThroughToSecondOffer(t *testing.T) {
	accepted, serverNoCtx, _ := negotiatePermessageDeflate("permessage-deflate; server_max_window_bits=10, permessage-deflate; server_no_context_takeover")
	assert.True(t, accepted)
	assert.True(t, serverNoCtx)
}
