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
	"io"
	"strconv"
	"strings"

	"github.com/caiflower/httpengine/netio"
)

// Input is the pull parser over a mark/reset-capable byte stream. One Input
// is created per Connection and reused across every pipelined request.
type Input struct {
	r      netio.Reader
	limits Limits
}

func NewInput(r netio.Reader, limits Limits) *Input {
	return &Input{r: r, limits: limits}
}

// ReadRequest parses one request-line and header block and runs post-parse
// validation. io.EOF is returned verbatim when the client closes before
// sending anything, which the exchange treats as a clean session end
// rather than an error.
func (in *Input) ReadRequest() (*Request, error) {
	if err := in.skipLeadingBlankLines(); err != nil {
		return nil, err
	}

	line, err := in.readLine(in.limits.MaxRequestLine)
	if err != nil {
		return nil, err
	}
	if len(line) == 0 {
		return nil, NewBadRequest("empty request-line")
	}

	method, target, version, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	headers, err := in.readHeaders()
	if err != nil {
		return nil, err
	}

	req := newRequest(method, target, version, headers)
	if err := prepareRequest(req, in.limits); err != nil {
		return nil, err
	}
	return req, nil
}

// skipLeadingBlankLines tolerates leftover CRLFs some clients send before
// the next pipelined request (RFC 9112 §2.2). A clean EOF here - no bytes
// at all before the caller would otherwise read a request-line - is the
// normal end of a keep-alive connection, not an error.
func (in *Input) skipLeadingBlankLines() error {
	for {
		b, err := in.r.Peek(1)
		if err != nil {
			if err == io.EOF {
				return io.EOF
			}
			return err
		}
		switch b[0] {
		case '\r':
			two, err := in.r.Peek(2)
			if err != nil {
				if err == io.EOF {
					return io.EOF
				}
				return err
			}
			if len(two) == 2 && two[1] == '\n' {
				if err := in.r.Skip(2); err != nil {
					return err
				}
				continue
			}
			return nil
		case '\n':
			if err := in.r.Skip(1); err != nil {
				return err
			}
			continue
		default:
			return nil
		}
	}
}

// readLine returns one physical line with its CRLF/LF terminator consumed
// and stripped, enforcing maxLen bytes of content.
func (in *Input) readLine(maxLen int) ([]byte, error) {
	size := 1
	limit := maxLen + 2
	for {
		// Look only at what is already buffered, plus one byte when that
		// has been scanned without finding a terminator, so a short line
		// on a live connection never waits for bytes the peer won't send.
		if buffered := in.r.Len(); buffered > size {
			size = buffered
		}
		if size > limit {
			size = limit
		}
		peek, err := in.r.Peek(size)
		if idx := bytes.IndexByte(peek, '\n'); idx >= 0 {
			line := append([]byte(nil), peek[:idx]...)
			if err := in.r.Skip(idx + 1); err != nil {
				return nil, err
			}
			if len(line) > 0 && line[len(line)-1] == '\r' {
				line = line[:len(line)-1]
			}
			if len(line) > maxLen {
				return nil, NewBadRequest("line exceeds maximum length")
			}
			return line, nil
		}
		if err != nil {
			if err == io.EOF {
				if len(peek) == 0 {
					return nil, io.EOF
				}
				return nil, NewBadRequest("unexpected EOF, no line terminator")
			}
			return nil, err
		}
		if size >= limit {
			return nil, NewBadRequest("line exceeds maximum length")
		}
		size++
	}
}

const tchars = "!#$%&'*+-.^_`|~"

func isTChar(c byte) bool {
	if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
		return true
	}
	return strings.IndexByte(tchars, c) >= 0
}

func isTargetChar(c byte) bool {
	// %x21-7E excluding SP; SP itself is the token separator so it never
	// reaches here.
	return c >= 0x21 && c <= 0x7E
}

func parseRequestLine(line []byte) (method, target, version string, err error) {
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return "", "", "", NewBadRequest("malformed request-line: missing method")
	}
	methodBytes := line[:sp1]
	for _, c := range methodBytes {
		if !isTChar(c) {
			return "", "", "", NewBadRequest("malformed request-line: invalid method token")
		}
	}

	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	if sp2 <= 0 {
		return "", "", "", NewBadRequest("malformed request-line: missing target or version")
	}
	targetBytes := rest[:sp2]
	for _, c := range targetBytes {
		if !isTargetChar(c) {
			return "", "", "", NewBadRequest("malformed request-line: invalid target byte")
		}
	}

	versionBytes := rest[sp2+1:]
	if !isValidVersion(versionBytes) {
		return "", "", "", NewBadRequest("malformed request-line: invalid HTTP version")
	}

	return strings.ToUpper(string(methodBytes)), string(targetBytes), string(versionBytes), nil
}

func isValidVersion(v []byte) bool {
	// exactly "HTTP/D.D"
	if len(v) != 8 {
		return false
	}
	if string(v[:5]) != "HTTP/" {
		return false
	}
	return v[5] >= '0' && v[5] <= '9' && v[6] == '.' && v[7] >= '0' && v[7] <= '9'
}

// readHeaders reads field-lines until the terminating empty line, merges
// obs-fold continuations, and validates per-field/overall limits.
func (in *Input) readHeaders() ([]Header, error) {
	maxLineLen := in.limits.MaxHeaderName + in.limits.MaxHeaderValue + 16
	var raw [][]byte
	for {
		line, err := in.readLine(maxLineLen)
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			break
		}
		raw = append(raw, line)
	}

	folded := make([][]byte, 0, len(raw))
	for _, line := range raw {
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') && len(folded) > 0 {
			trimmed := bytes.TrimLeft(line, " \t")
			prev := folded[len(folded)-1]
			prev = append(prev, ' ')
			prev = append(prev, trimmed...)
			folded[len(folded)-1] = prev
			continue
		}
		folded = append(folded, line)
	}

	if len(folded) > in.limits.MaxHeaders {
		return nil, NewBadRequest("too many headers")
	}

	headers := make([]Header, 0, len(folded))
	for _, line := range folded {
		h, err := parseHeaderLine(line, in.limits)
		if err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return headers, nil
}

func parseHeaderLine(line []byte, limits Limits) (Header, error) {
	colon := bytes.IndexByte(line, ':')
	if colon < 0 {
		return Header{}, NewBadRequest("malformed header field: missing colon")
	}
	name := line[:colon]
	if len(name) == 0 {
		return Header{}, NewBadRequest("malformed header field: empty name")
	}
	// whitespace before the colon is rejected (RFC 9112 §5.1)
	if name[len(name)-1] == ' ' || name[len(name)-1] == '\t' {
		return Header{}, NewBadRequest("malformed header field: whitespace before colon")
	}
	for _, c := range name {
		if !isTChar(c) {
			return Header{}, NewBadRequest("malformed header field: invalid name token")
		}
	}
	if len(name) > limits.MaxHeaderName {
		return Header{}, NewBadRequest("header name exceeds maximum length")
	}

	value := line[colon+1:]
	value = bytes.ReplaceAll(value, []byte{'\r'}, []byte{' '})
	value = bytes.Trim(value, " \t")
	if len(value) > limits.MaxHeaderValue {
		return Header{}, NewBadRequest("header value exceeds maximum length")
	}

	return NewHeader(string(name), string(value)), nil
}

// prepareRequest runs the post-parse validation the spec deliberately
// separates from raw parsing: Host requirements, close-after derivation
// and body-framing mode selection.
func prepareRequest(req *Request, limits Limits) error {
	switch req.Version {
	case "HTTP/1.1":
		hosts := countHeader(req.Headers, "host")
		if hosts != 1 {
			return NewBadRequest("Missing required Host header field in HTTP/1.1 request")
		}
		if conn, ok := req.Header("connection"); ok && containsToken(conn, "close") {
			req.CloseAfter = true
		}
	case "HTTP/1.0":
		conn, ok := req.Header("connection")
		req.CloseAfter = !(ok && containsToken(conn, "keep-alive"))
	default:
		return NewBadRequest("unsupported HTTP version: %s", req.Version)
	}

	te, hasTE := req.Header("transfer-encoding")
	if hasTE && containsToken(strings.ToLower(te), "chunked") {
		req.BodyMode = BodyChunked
		return nil
	}

	if cl, ok := req.Header("content-length"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
		if err != nil || n < 0 {
			return NewBadRequest("malformed Content-Length")
		}
		if n > limits.MaxBodySize {
			return NewBadRequest("request body exceeds maximum size")
		}
		req.BodyMode = BodyFixedLength
		req.ContentLength = n
		return nil
	}

	req.BodyMode = BodyNone
	return nil
}

func countHeader(headers []Header, lower string) int {
	n := 0
	for _, h := range headers {
		if h.Lower == lower {
			n++
		}
	}
	return n
}

func containsToken(value, token string) bool {
	for _, part := range strings.Split(value, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}
