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
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caiflower/httpengine/netio"
)

// maskedFrame builds a client->server frame: always masked, as RFC 6455
// §5.1 requires of every frame a client sends.
func maskedFrame(fin bool, rsv1 bool, opcode Opcode, payload []byte) []byte {
	var b0 byte
	if fin {
		b0 |= 0x80
	}
	if rsv1 {
		b0 |= 0x40
	}
	b0 |= byte(opcode)

	var buf bytes.Buffer
	buf.WriteByte(b0)

	switch {
	case len(payload) <= 125:
		buf.WriteByte(0x80 | byte(len(payload)))
	case len(payload) <= 0xFFFF:
		buf.WriteByte(0x80 | 126)
		ext := []byte{byte(len(payload) >> 8), byte(len(payload))}
		buf.Write(ext)
	default:
		buf.WriteByte(0x80 | 127)
		n := uint64(len(payload))
		ext := make([]byte, 8)
		for i := 7; i >= 0; i-- {
			ext[i] = byte(n)
			n >>= 8
		}
		buf.Write(ext)
	}

	maskKey := []byte{0x12, 0x34, 0x56, 0x78}
	buf.Write(maskKey)
	masked := make([]byte, len(payload))
	for i, b := range payload {
		masked[i] = b ^ maskKey[i%4]
	}
	buf.Write(masked)
	return buf.Bytes()
}

func newTestInput(data []byte) *Input {
	return NewInput(netio.NewReader(bytes.NewReader(data)), DefaultMaxPayload)
}

func TestReadFrameUnmasksPayload(t *testing.T) {
	raw := maskedFrame(true, false, OpText, []byte("hello"))
	in := newTestInput(raw)

	frame, err := in.ReadFrame(false)
	require.NoError(t, err)
	assert.True(t, frame.Fin)
	assert.Equal(t, OpText, frame.Opcode)
	assert.Equal(t, "hello", string(frame.Payload))
}

func TestReadFrameRejectsUnmaskedClientFrame(t *testing.T) {
	raw := []byte{0x81, 0x05, 'h', 'e', 'l', 'l', 'o'} // FIN|TEXT, length 5, mask bit unset
	in := newTestInput(raw)

	_, err := in.ReadFrame(false)
	pe, ok := AsProtocolError(err)
	require.True(t, ok)
	assert.Equal(t, CloseProtocolError, pe.Code)
}

func TestReadFrameRejectsFragmentedControlFrame(t *testing.T) {
	raw := maskedFrame(false, false, OpPing, []byte("x"))
	in := newTestInput(raw)

	_, err := in.ReadFrame(false)
	pe, ok := AsProtocolError(err)
	require.True(t, ok)
	assert.Equal(t, CloseProtocolError, pe.Code)
}

func TestReadFrameRejectsOversizedPayload(t *testing.T) {
	raw := maskedFrame(true, false, OpBinary, make([]byte, 100))
	in := NewInput(netio.NewReader(bytes.NewReader(raw)), 10)

	_, err := in.ReadFrame(false)
	pe, ok := AsProtocolError(err)
	require.True(t, ok)
	assert.Equal(t, CloseMessageTooBig, pe.Code)
}

func TestReadFrameRejectsRSV1WithoutCompression(t *testing.T) {
	raw := maskedFrame(true, true, OpText, []byte("hi"))
	in := newTestInput(raw)

	_, err := in.ReadFrame(false)
	pe, ok := AsProtocolError(err)
	require.True(t, ok)
	assert.Equal(t, CloseProtocolError, pe.Code)
}

func TestReadFrameAcceptsRSV1WhenCompressionNegotiated(t *testing.T) {
	raw := maskedFrame(true, true, OpText, []byte("hi"))
	in := newTestInput(raw)

	frame, err := in.ReadFrame(true)
	require.NoError(t, err)
	assert.True(t, frame.RSV1)
}

func TestReadFrameExtended16BitLength(t *testing.T) {
	payload := bytes.Repeat([]byte("a"), 200)
	raw := maskedFrame(true, false, OpBinary, payload)
	in := newTestInput(raw)

	frame, err := in.ReadFrame(false)
	require.NoError(t, err)
	assert.Equal(t, payload, frame.Payload)
}

func TestReadFrameCleanEOFBetweenFrames(t *testing.T) {
	in := newTestInput(nil)
	_, err := in.ReadFrame(false)
	assert.Equal(t, io.EOF, err)
}
