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
	"encoding/binary"
	"io"
	"net"
	"sync"
	"unicode/utf8"

	"github.com/caiflower/httpengine/netio"
	"github.com/caiflower/httpengine/pkg/logger"
	"github.com/caiflower/httpengine/ws"
)

// maxFrameSize is MAX_FRAME_SIZE from spec: sends larger than this split
// into a first frame plus continuations.
const maxFrameSize = 1 << 20

// WSExchange is the per-session frame loop installed by a successful
// upgrade. It owns the connection's reader/writer for the rest of the
// session; Process never returns a replacement Exchange, only nil (clean
// or error-terminated end) or a non-nil error on fatal I/O failure.
type WSExchange struct {
	netConn net.Conn
	r       netio.Reader
	w       netio.Writer
	in      *ws.Input
	comp    *ws.Compression
	handler ws.Handler
	metrics *Metrics

	writeLock sync.Mutex
	closeSent bool

	inFragmented      bool
	compressedOnFirst bool
	assembledOpcode   ws.Opcode
	assemblyBuf       []byte
}

func NewWSExchange(netConn net.Conn, r netio.Reader, w netio.Writer, in *ws.Input, comp *ws.Compression, handler ws.Handler, metrics *Metrics) *WSExchange {
	return &WSExchange{netConn: netConn, r: r, w: w, in: in, comp: comp, handler: handler, metrics: metrics}
}

func (ex *WSExchange) Process() (Exchange, error) {
	closeCode := ws.CloseAbnormal
	closeReason := ""

	defer func() {
		ex.handler.OnClose(ex, closeCode, closeReason)
		ex.metrics.recordSessionClosed(closeCode)
		if ex.comp != nil {
			_ = ex.comp.Close()
		}
	}()

	for {
		frame, err := ex.in.ReadFrame(ex.comp != nil)
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				closeCode = ws.CloseAbnormal
				return nil, nil
			}
			if pe, ok := ws.AsProtocolError(err); ok {
				closeCode = pe.Code
				logUnexpectedCloseErr(ex.sendClose(pe.Code, ""))
				return nil, nil
			}
			return nil, err
		}
		ex.metrics.recordFrame("in", frame.Opcode.String())

		switch frame.Opcode {
		case ws.OpClose:
			code, reason, perr := parseClosePayload(frame.Payload)
			if perr != nil {
				closeCode = ws.CloseProtocolError
				logUnexpectedCloseErr(ex.sendClose(closeCode, ""))
				return nil, nil
			}
			echoCode := code
			if code == ws.CloseNoStatus {
				echoCode = ws.CloseNormal
			}
			logUnexpectedCloseErr(ex.sendClose(echoCode, ""))
			closeCode, closeReason = code, reason
			return nil, nil

		case ws.OpPing:
			if h := ex.handler.OnPing(ex, frame.Payload); h != nil {
				ex.handler = h
			}

		case ws.OpPong:
			if h := ex.handler.OnPong(ex, frame.Payload); h != nil {
				ex.handler = h
			}

		case ws.OpText, ws.OpBinary:
			if frame.Fin {
				if err := ex.deliver(frame.Opcode, frame.Payload, frame.RSV1); err != nil {
					pe, _ := ws.AsProtocolError(err)
					closeCode = pe.Code
					logUnexpectedCloseErr(ex.sendClose(closeCode, ""))
					return nil, nil
				}
			} else {
				ex.inFragmented = true
				ex.compressedOnFirst = frame.RSV1
				ex.assembledOpcode = frame.Opcode
				ex.assemblyBuf = append([]byte(nil), frame.Payload...)
			}

		case ws.OpContinuation:
			if !ex.inFragmented {
				closeCode = ws.CloseProtocolError
				logUnexpectedCloseErr(ex.sendClose(closeCode, ""))
				return nil, nil
			}
			ex.assemblyBuf = append(ex.assemblyBuf, frame.Payload...)
			if frame.Fin {
				payload := ex.assemblyBuf
				opcode := ex.assembledOpcode
				compressed := ex.compressedOnFirst
				ex.inFragmented = false
				ex.assemblyBuf = nil

				if err := ex.deliver(opcode, payload, compressed); err != nil {
					pe, _ := ws.AsProtocolError(err)
					closeCode = pe.Code
					logUnexpectedCloseErr(ex.sendClose(closeCode, ""))
					return nil, nil
				}
			}
		}
	}
}

// deliver decompresses (if flagged) and dispatches one reassembled message
// to the handler, validating UTF-8 on TEXT per RFC 6455 §8.1.
func (ex *WSExchange) deliver(opcode ws.Opcode, payload []byte, compressed bool) error {
	if compressed {
		if ex.comp == nil {
			return ws.NewProtocolError(ws.CloseProtocolError, "RSV1 set but no compression negotiated")
		}
		decompressed, err := ex.comp.Decompress(payload)
		if err != nil {
			return ws.NewProtocolError(ws.CloseInvalidPayload, "permessage-deflate decompression failed: %s", err)
		}
		payload = decompressed
	}

	switch opcode {
	case ws.OpText:
		if !utf8.Valid(payload) {
			return ws.NewProtocolError(ws.CloseInvalidPayload, "text message is not valid UTF-8")
		}
		if h := ex.handler.OnText(ex, string(payload)); h != nil {
			ex.handler = h
		}
	case ws.OpBinary:
		if h := ex.handler.OnBinary(ex, payload); h != nil {
			ex.handler = h
		}
	}
	return nil
}

func parseClosePayload(payload []byte) (code int, reason string, err error) {
	if len(payload) == 0 {
		return ws.CloseNoStatus, "", nil
	}
	if len(payload) == 1 {
		return 0, "", ws.NewProtocolError(ws.CloseProtocolError, "close frame payload must be 0 or at least 2 bytes")
	}
	code = int(binary.BigEndian.Uint16(payload[:2]))
	reason = string(payload[2:]) // not validated as UTF-8, per design note
	return code, reason, nil
}

// SendText implements ws.Session.
func (ex *WSExchange) SendText(msg string) error {
	return ex.sendMessage(ws.OpText, []byte(msg))
}

// SendBinary implements ws.Session.
func (ex *WSExchange) SendBinary(msg []byte) error {
	return ex.sendMessage(ws.OpBinary, msg)
}

func (ex *WSExchange) sendMessage(opcode ws.Opcode, payload []byte) error {
	ex.writeLock.Lock()
	defer ex.writeLock.Unlock()

	rsv1 := false
	if ex.comp != nil && len(payload) >= 256 {
		compressed, err := ex.comp.Compress(payload)
		if err != nil {
			return err
		}
		payload = compressed
		rsv1 = true
	}

	if len(payload) <= maxFrameSize {
		return ex.writeFrameLocked(true, rsv1, opcode, payload)
	}

	if err := ex.writeFrameLocked(false, rsv1, opcode, payload[:maxFrameSize]); err != nil {
		return err
	}
	rest := payload[maxFrameSize:]
	for len(rest) > maxFrameSize {
		if err := ex.writeFrameLocked(false, false, ws.OpContinuation, rest[:maxFrameSize]); err != nil {
			return err
		}
		rest = rest[maxFrameSize:]
	}
	return ex.writeFrameLocked(true, false, ws.OpContinuation, rest)
}

// SendPing implements ws.Session.
func (ex *WSExchange) SendPing(msg []byte) error {
	ex.writeLock.Lock()
	defer ex.writeLock.Unlock()
	return ex.writeFrameLocked(true, false, ws.OpPing, msg)
}

// SendPong implements ws.Session.
func (ex *WSExchange) SendPong(msg []byte) error {
	ex.writeLock.Lock()
	defer ex.writeLock.Unlock()
	return ex.writeFrameLocked(true, false, ws.OpPong, msg)
}

// Close implements ws.Session by sending a Close frame with the given code
// and reason. It is a no-op if a Close was already sent on this session.
func (ex *WSExchange) Close(code int, reason string) error {
	return ex.sendClose(code, reason)
}

func (ex *WSExchange) sendClose(code int, reason string) error {
	ex.writeLock.Lock()
	defer ex.writeLock.Unlock()
	if ex.closeSent {
		return nil
	}
	ex.closeSent = true

	payload := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(payload, uint16(code))
	copy(payload[2:], reason)
	return ex.writeFrameLocked(true, false, ws.OpClose, payload)
}

// writeFrameLocked emits one frame. Server frames are never masked, per
// RFC 6455 §5.1. Caller must hold writeLock.
func (ex *WSExchange) writeFrameLocked(fin, rsv1 bool, opcode ws.Opcode, payload []byte) error {
	var b0 byte
	if fin {
		b0 |= 0x80
	}
	if rsv1 {
		b0 |= 0x40
	}
	b0 |= byte(opcode)

	head := make([]byte, 0, 10)
	head = append(head, b0)
	switch {
	case len(payload) <= 125:
		head = append(head, byte(len(payload)))
	case len(payload) <= 0xFFFF:
		ext := make([]byte, 2)
		binary.BigEndian.PutUint16(ext, uint16(len(payload)))
		head = append(head, 126)
		head = append(head, ext...)
	default:
		ext := make([]byte, 8)
		binary.BigEndian.PutUint64(ext, uint64(len(payload)))
		head = append(head, 127)
		head = append(head, ext...)
	}

	if _, err := ex.w.WriteBinary(head); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := ex.w.WriteBinary(payload); err != nil {
			return err
		}
	}
	if err := ex.w.Flush(); err != nil {
		return err
	}
	ex.metrics.recordFrame("out", opcode.String())
	return nil
}

var _ ws.Session = (*WSExchange)(nil)

func logUnexpectedCloseErr(err error) {
	if err != nil {
		logger.Warn("[WSExchange] sending close frame failed. error=%s", err.Error())
	}
}
