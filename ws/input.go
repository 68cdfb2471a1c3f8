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

package ws

import (
	"encoding/binary"
	"io"

	"github.com/caiflower/httpengine/netio"
)

// DefaultMaxPayload is the default limit enforced on a single frame's
// payload length; larger declared lengths are rejected with close code
// 1009 before any payload bytes are read.
const DefaultMaxPayload = 16 * 1024 * 1024

// Input is the frame decoder, RFC 6455 §5. It never buffers frames itself;
// every ReadFrame call blocks on the connection's netio.Reader.
type Input struct {
	r          netio.Reader
	maxPayload int64
}

func NewInput(r netio.Reader, maxPayload int64) *Input {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	return &Input{r: r, maxPayload: maxPayload}
}

// ReadFrame decodes one frame. io.EOF is returned verbatim only when the
// very first byte of a new frame cannot be read - a clean stream end. An
// EOF later in the frame is reported as io.ErrUnexpectedEOF; other read
// errors are returned as they are.
//
// compressionNegotiated gates whether RSV1 is acceptable on a non-
// continuation data frame (the first frame of a possibly-compressed
// message); RSV1 on a continuation frame is always a protocol error.
func (in *Input) ReadFrame(compressionNegotiated bool) (*Frame, error) {
	b0, err := in.r.ReadByte()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, err
	}

	fin := b0&0x80 != 0
	rsv1 := b0&0x40 != 0
	rsv2 := b0&0x20 != 0
	rsv3 := b0&0x10 != 0
	opcode := Opcode(b0 & 0x0F)

	if rsv2 || rsv3 {
		return nil, NewProtocolError(CloseProtocolError, "RSV2/RSV3 set without a negotiated extension")
	}
	if rsv1 && (!compressionNegotiated || opcode == OpContinuation || opcode.IsControl()) {
		return nil, NewProtocolError(CloseProtocolError, "RSV1 set without permessage-deflate on this frame")
	}
	switch opcode {
	case OpContinuation, OpText, OpBinary, OpClose, OpPing, OpPong:
	default:
		return nil, NewProtocolError(CloseProtocolError, "reserved opcode %d", opcode)
	}

	b1, err := in.readExact(1)
	if err != nil {
		return nil, err
	}
	masked := b1[0]&0x80 != 0
	if !masked {
		return nil, NewProtocolError(CloseProtocolError, "client frame must be masked")
	}

	length := int64(b1[0] & 0x7F)
	switch length {
	case 126:
		ext, err := in.readExact(2)
		if err != nil {
			return nil, err
		}
		length = int64(binary.BigEndian.Uint16(ext))
	case 127:
		ext, err := in.readExact(8)
		if err != nil {
			return nil, err
		}
		length64 := binary.BigEndian.Uint64(ext)
		if length64&0x8000000000000000 != 0 {
			return nil, NewProtocolError(CloseProtocolError, "payload length has high bit set")
		}
		length = int64(length64)
	}

	if opcode.IsControl() {
		if !fin {
			return nil, NewProtocolError(CloseProtocolError, "fragmented control frame")
		}
		if length > 125 {
			return nil, NewProtocolError(CloseProtocolError, "control frame payload too large")
		}
	}

	if length > in.maxPayload {
		return nil, NewProtocolError(CloseMessageTooBig, "payload %d exceeds configured limit %d", length, in.maxPayload)
	}

	maskKey, err := in.readExact(4)
	if err != nil {
		return nil, err
	}

	payload, err := in.readExact(int(length))
	if err != nil {
		return nil, err
	}
	for i := range payload {
		payload[i] ^= maskKey[i%4]
	}

	return &Frame{Fin: fin, RSV1: rsv1, RSV2: rsv2, RSV3: rsv3, Opcode: opcode, Payload: payload}, nil
}

func (in *Input) readExact(n int) ([]byte, error) {
	peek, err := in.r.Peek(n)
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	out := append([]byte(nil), peek...)
	if err := in.r.Skip(n); err != nil {
		return nil, err
	}
	return out, nil
}
