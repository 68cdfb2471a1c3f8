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

// Package ws implements the RFC 6455 WebSocket frame codec and the RFC
// 7692 permessage-deflate extension: frame decoding with strict
// validation, and the compression codec with context-takeover semantics.
package ws

import "fmt"

// Close status codes, RFC 6455 §7.4.1.
const (
	CloseNormal            = 1000
	CloseGoingAway         = 1001
	CloseProtocolError     = 1002
	CloseUnsupportedData   = 1003
	CloseNoStatus          = 1005
	CloseAbnormal          = 1006
	CloseInvalidPayload    = 1007
	ClosePolicyViolation   = 1008
	CloseMessageTooBig     = 1009
	CloseMandatoryExtension = 1010
	CloseInternalError     = 1011
)

// ProtocolError is a WebSocket protocol violation with an associated close
// code. The session loop recovers by sending a Close frame carrying Code
// and ending the session.
type ProtocolError struct {
	Code int
	Msg  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ws protocol error (code %d): %s", e.Code, e.Msg)
}

func NewProtocolError(code int, format string, a ...interface{}) *ProtocolError {
	return &ProtocolError{Code: code, Msg: fmt.Sprintf(format, a...)}
}

func AsProtocolError(err error) (*ProtocolError, bool) {
	pe, ok := err.(*ProtocolError)
	return pe, ok
}
