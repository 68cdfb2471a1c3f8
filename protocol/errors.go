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

// Package protocol implements the RFC 9112 HTTP/1.1 request parser and
// response writer: the framing primitives, the body streams, and the
// output wrapper stack (close-interceptor, chunked encoder, gzip/brotli
// encoder).
package protocol

import (
	"errors"
	"fmt"

	"github.com/caiflower/httpengine/internal/apierr"
)

// BadRequest is the single error type surfaced for any malformed byte on
// the wire. The exchange layer recovers from it by writing a minimal 400
// response and closing the connection; it is never expected to propagate
// further than that. Msg is the exact human-readable text spec.md requires
// verbatim in the 400 body; ApiError carries the same message under the
// module's general error taxonomy for callers that inspect Status/Type.
type BadRequest struct {
	Msg      string
	ApiError *apierr.ApiError
}

func (e *BadRequest) Error() string {
	return e.Msg
}

func (e *BadRequest) Unwrap() error {
	return e.ApiError
}

func NewBadRequest(format string, a ...interface{}) error {
	msg := fmt.Sprintf(format, a...)
	return &BadRequest{Msg: msg, ApiError: apierr.New(apierr.InvalidArgument, msg, nil)}
}

func AsBadRequest(err error) (*BadRequest, bool) {
	var br *BadRequest
	if errors.As(err, &br) {
		return br, true
	}
	return nil, false
}
