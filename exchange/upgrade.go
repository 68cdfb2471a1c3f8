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
	"crypto/sha1"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/caiflower/httpengine/protocol"
	"github.com/caiflower/httpengine/ws"
)

const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// UpgradeError is returned by Upgrade when the request does not satisfy
// the WebSocket handshake preconditions; the caller (a Handler) is
// expected to respond 400 itself, same as any other validation failure.
type UpgradeError struct {
	Msg string
}

func (e *UpgradeError) Error() string { return e.Msg }

// computeAcceptKey implements RFC 6455 §1.3's accept-key derivation.
func computeAcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Upgrade validates the handshake, negotiates permessage-deflate, writes
// the 101 response, and installs a WSExchange as the replacement for the
// current connection loop. It must be called from a Handler, with resp not
// yet committed; on success resp is committed with no body and
// ex.Process() returns the new WSExchange once the current iteration's
// handler chain has returned.
func (ex *HTTPExchange) Upgrade(req *protocol.Request, resp *protocol.Response, handler ws.Handler, subprotocol string) error {
	if upgrade, ok := req.Header("upgrade"); !ok || !strings.EqualFold(strings.TrimSpace(upgrade), "websocket") {
		return &UpgradeError{Msg: "missing or invalid Upgrade header"}
	}
	if conn, ok := req.Header("connection"); !ok || !containsTokenCI(conn, "upgrade") {
		return &UpgradeError{Msg: "missing Connection: Upgrade token"}
	}
	key, ok := req.Header("sec-websocket-key")
	if !ok || strings.TrimSpace(key) == "" {
		return &UpgradeError{Msg: "missing Sec-WebSocket-Key"}
	}
	if version, ok := req.Header("sec-websocket-version"); !ok || strings.TrimSpace(version) != "13" {
		return &UpgradeError{Msg: "unsupported Sec-WebSocket-Version"}
	}

	acceptKey := computeAcceptKey(strings.TrimSpace(key))

	var comp *ws.Compression
	var extHeader string
	if extVal, ok := req.Header("sec-websocket-extensions"); ok && ex.cfg.EnablePermessageDeflate {
		accepted, serverNoCtx, clientNoCtx := negotiatePermessageDeflate(extVal)
		if accepted {
			var err error
			comp, err = ws.NewCompression(serverNoCtx, clientNoCtx)
			if err != nil {
				return err
			}
			extHeader = buildExtensionsResponse(serverNoCtx, clientNoCtx)
		}
	}

	resp.Status(101, "Switching Protocols").
		ConnectionOverride("Upgrade").
		SetHeader("upgrade", "websocket").
		SetHeader("sec-websocket-accept", acceptKey)
	if extHeader != "" {
		resp.SetHeader("sec-websocket-extensions", extHeader)
	}
	if subprotocol != "" {
		resp.SetHeader("sec-websocket-protocol", subprotocol)
	}
	if err := resp.NoBody(); err != nil {
		return err
	}

	wsIn := ws.NewInput(ex.r, ex.cfg.MaxFramePayload)
	ex.upgraded = NewWSExchange(ex.netConn, ex.r, ex.w, wsIn, comp, handler, ex.metrics)
	return nil
}

func containsTokenCI(value, token string) bool {
	for _, part := range strings.Split(value, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}

// negotiatePermessageDeflate parses a Sec-WebSocket-Extensions header value
// as a left-to-right list of offers and accepts the first permessage-deflate
// offer whose parameters are all recognized and, for window-bits, equal to
// 15 (the only window size this implementation supports).
func negotiatePermessageDeflate(header string) (accepted, serverNoCtx, clientNoCtx bool) {
	for _, offer := range strings.Split(header, ",") {
		tokens := strings.Split(offer, ";")
		name := strings.TrimSpace(tokens[0])
		if !strings.EqualFold(name, "permessage-deflate") {
			continue
		}

		ok := true
		wantServerNoCtx, wantClientNoCtx := false, false
		for _, tok := range tokens[1:] {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			param := tok
			value := ""
			if eq := strings.IndexByte(tok, '='); eq >= 0 {
				param = strings.TrimSpace(tok[:eq])
				value = strings.Trim(strings.TrimSpace(tok[eq+1:]), `"`)
			}
			switch strings.ToLower(param) {
			case "server_no_context_takeover":
				wantServerNoCtx = true
			case "client_no_context_takeover":
				wantClientNoCtx = true
			case "server_max_window_bits":
				if !isWindowBits15(value) {
					ok = false
				}
			case "client_max_window_bits":
				if value != "" && !isWindowBits15(value) {
					ok = false
				}
			default:
				ok = false
			}
			if !ok {
				break
			}
		}
		if ok {
			return true, wantServerNoCtx, wantClientNoCtx
		}
	}
	return false, false, false
}

func isWindowBits15(value string) bool {
	n, err := strconv.Atoi(value)
	return err == nil && n == 15
}

func buildExtensionsResponse(serverNoCtx, clientNoCtx bool) string {
	var b strings.Builder
	b.WriteString("permessage-deflate")
	if serverNoCtx {
		b.WriteString("; server_no_context_takeover")
	}
	if clientNoCtx {
		b.WriteString("; client_no_context_takeover")
	}
	return b.String()
}
