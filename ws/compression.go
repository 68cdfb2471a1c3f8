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
	"compress/flate"
	"errors"
	"io"
)

// maxWindowBits is the only window size this implementation negotiates:
// the full RFC 7692 15-bit (32 KiB) window. Offers asking for anything
// else are rejected during negotiation (exchange package).
const maxWindowBits = 15
const maxWindowSize = 1 << maxWindowBits

// deflateTail is appended after the sender-stripped 4-byte sync-flush
// marker (0x00 0x00 0xFF 0xFF) to give compress/flate's reader a
// byte-aligned, final, empty stored block so Read reports a clean io.EOF
// instead of io.ErrUnexpectedEOF. This is the standard trick for decoding
// one sync-flushed deflate message at a time with the stdlib decompressor.
var deflateTail = []byte{0x00, 0x00, 0xFF, 0xFF, 0x01, 0x00, 0x00, 0xFF, 0xFF}

var syncFlushMarker = []byte{0x00, 0x00, 0xFF, 0xFF}

// Compression owns the negotiated permessage-deflate parameters plus the
// deflate/inflate engines for one WebSocket session. The LZ77 context is
// preserved across messages unless the corresponding *NoContextTakeover
// flag is set, in which case the relevant engine is reset before the next
// message - never via finish()+reset(), which would destroy the window.
type Compression struct {
	ServerNoContextTakeover bool
	ClientNoContextTakeover bool

	compressor  *flate.Writer
	compressBuf *bytes.Buffer

	decompressor io.ReadCloser
	decodeWindow []byte // trailing <=32KiB of decompressed history for Reset(dict)
}

func NewCompression(serverNoContextTakeover, clientNoContextTakeover bool) (*Compression, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	fr := flate.NewReader(bytes.NewReader(nil))
	return &Compression{
		ServerNoContextTakeover: serverNoContextTakeover,
		ClientNoContextTakeover: clientNoContextTakeover,
		compressor:              fw,
		compressBuf:             &buf,
		decompressor:            fr,
	}, nil
}

// Compress deflates data with a sync flush and strips the trailing
// 0x00 0x00 0xFF 0xFF empty-stored-block marker per RFC 7692 §7.2.1.
// Empty input is a no-op.
func (c *Compression) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}
	if c.ServerNoContextTakeover {
		c.compressBuf.Reset()
		c.compressor.Reset(c.compressBuf)
	}
	c.compressBuf.Reset()
	if _, err := c.compressor.Write(data); err != nil {
		return nil, err
	}
	if err := c.compressor.Flush(); err != nil {
		return nil, err
	}
	out := append([]byte(nil), c.compressBuf.Bytes()...)
	if bytes.HasSuffix(out, syncFlushMarker) {
		out = out[:len(out)-len(syncFlushMarker)]
	}
	return out, nil
}

// Decompress appends the sync-flush marker back and inflates, per RFC 7692
// §7.2.2. Empty input is a no-op.
func (c *Compression) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}

	payload := make([]byte, 0, len(data)+len(deflateTail))
	payload = append(payload, data...)
	payload = append(payload, deflateTail...)

	var dict []byte
	if !c.ClientNoContextTakeover {
		dict = c.decodeWindow
	}

	resetter, ok := c.decompressor.(flate.Resetter)
	if !ok {
		return nil, errors.New("ws: flate reader does not support Reset")
	}
	if err := resetter.Reset(bytes.NewReader(payload), dict); err != nil {
		return nil, err
	}

	out, err := io.ReadAll(c.decompressor)
	if err != nil {
		return nil, err
	}

	if c.ClientNoContextTakeover {
		c.decodeWindow = nil
	} else {
		c.decodeWindow = slideWindow(c.decodeWindow, out)
	}
	return out, nil
}

// slideWindow appends fresh to history, keeping at most the last
// maxWindowSize bytes - the full history compress/flate's Reset(dict) can
// make use of for a 15-bit window.
func slideWindow(history, fresh []byte) []byte {
	combined := append(history, fresh...)
	if len(combined) > maxWindowSize {
		combined = combined[len(combined)-maxWindowSize:]
	}
	// copy so the backing array isn't shared with caller-owned fresh slices
	out := make([]byte, len(combined))
	copy(out, combined)
	return out
}

// Close releases the owned deflate/inflate engines.
func (c *Compression) Close() error {
	return c.decompressor.Close()
}
