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

package protocol

import (
	"bytes"
	"strconv"
)

// ReadChunk decodes one `chunk-size [ chunk-ext ] CRLF chunk-data CRLF`
// unit. A zero-size chunk is the terminal chunk: it is followed by a
// (possibly empty) trailer section and IsLast is set on the returned Chunk.
func (in *Input) ReadChunk() (*Chunk, error) {
	line, err := in.readLine(16 + in.limits.MaxChunkExtSize)
	if err != nil {
		return nil, err
	}

	sizeBytes := line
	var extPart []byte
	if semi := bytes.IndexByte(line, ';'); semi >= 0 {
		sizeBytes = line[:semi]
		extPart = line[semi:]
	}

	if len(sizeBytes) == 0 || len(sizeBytes) > 16 {
		return nil, NewBadRequest("malformed chunk size")
	}
	for _, c := range sizeBytes {
		if !isHexDigit(c) {
			return nil, NewBadRequest("malformed chunk size")
		}
	}
	size, err := strconv.ParseUint(string(sizeBytes), 16, 64)
	if err != nil {
		return nil, NewBadRequest("chunk size overflow")
	}

	exts, err := parseChunkExtensions(extPart)
	if err != nil {
		return nil, err
	}

	if size == 0 {
		trailers, err := in.readTrailers()
		if err != nil {
			return nil, err
		}
		return &Chunk{IsLast: true, Extensions: exts, Trailers: trailers}, nil
	}

	if size > uint64(in.limits.MaxChunkSize) {
		return nil, NewBadRequest("chunk size exceeds maximum")
	}

	data, err := in.r.Peek(int(size))
	if err != nil {
		return nil, translateBodyReadErr(err)
	}
	data = append([]byte(nil), data...)
	if err := in.r.Skip(int(size)); err != nil {
		return nil, err
	}

	terminator, err := in.readLine(0)
	if err != nil {
		return nil, err
	}
	if len(terminator) != 0 {
		return nil, NewBadRequest("malformed chunk-data terminator")
	}

	return &Chunk{Data: data, Extensions: exts}, nil
}

func (in *Input) readTrailers() ([]Header, error) {
	var trailers []Header
	for {
		line, err := in.readLine(in.limits.MaxHeaderName + in.limits.MaxHeaderValue + 16)
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			break
		}
		h, err := parseHeaderLine(line, in.limits)
		if err != nil {
			return nil, err
		}
		trailers = append(trailers, h)
	}
	return trailers, nil
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

// parseChunkExtensions parses `*( BWS ";" BWS ext-name [ BWS "=" BWS
// ext-val ] )`, where ext-val is a token or a quoted-string. Unknown
// extensions are preserved in order and never acted upon.
func parseChunkExtensions(b []byte) ([]Extension, error) {
	var exts []Extension
	i := 0
	n := len(b)
	for i < n {
		if b[i] != ';' {
			return nil, NewBadRequest("malformed chunk extension")
		}
		i++
		i = skipOWS(b, i)
		nameStart := i
		for i < n && isTChar(b[i]) {
			i++
		}
		if i == nameStart {
			return nil, NewBadRequest("malformed chunk extension name")
		}
		ext := Extension{Name: string(b[nameStart:i])}
		i = skipOWS(b, i)
		if i < n && b[i] == '=' {
			i++
			i = skipOWS(b, i)
			if i < n && b[i] == '"' {
				val, next, err := parseQuotedString(b, i)
				if err != nil {
					return nil, err
				}
				ext.Value = val
				ext.HasValue = true
				i = next
			} else {
				valStart := i
				for i < n && isTChar(b[i]) {
					i++
				}
				if i == valStart {
					return nil, NewBadRequest("malformed chunk extension value")
				}
				ext.Value = string(b[valStart:i])
				ext.HasValue = true
			}
		}
		exts = append(exts, ext)
		i = skipOWS(b, i)
	}
	return exts, nil
}

func skipOWS(b []byte, i int) int {
	for i < len(b) && (b[i] == ' ' || b[i] == '\t') {
		i++
	}
	return i
}

// parseQuotedString parses a quoted-string starting at b[start] == '"',
// supporting quoted-pair escapes of HTAB/SP/VCHAR/obs-text only, and
// returns the unescaped value plus the index just past the closing quote.
func parseQuotedString(b []byte, start int) (string, int, error) {
	i := start + 1
	var out bytes.Buffer
	for i < len(b) {
		c := b[i]
		if c == '"' {
			return out.String(), i + 1, nil
		}
		if c == '\\' {
			if i+1 >= len(b) {
				return "", 0, NewBadRequest("malformed quoted-string escape")
			}
			next := b[i+1]
			if next != '\t' && next != ' ' && !(next >= 0x21 && next <= 0x7E) && next < 0x80 {
				return "", 0, NewBadRequest("malformed quoted-pair")
			}
			out.WriteByte(next)
			i += 2
			continue
		}
		out.WriteByte(c)
		i++
	}
	return "", 0, NewBadRequest("unterminated quoted-string")
}
