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

// Package apierr carries the teacher's ApiError shape (Code/Type/Message/
// Cause) for everything that is not one of the two protocol-specific error
// types (protocol.BadRequest, ws.ProtocolError). It gives an embedding
// application one consistent error shape across its whole stack.
package apierr

import "github.com/caiflower/httpengine/pkg/tools"

type Code struct {
	Status int
	Type   string
}

var (
	NotFound        = &Code{Status: 404, Type: "NotFound"}
	InvalidArgument = &Code{Status: 400, Type: "InvalidArgument"}
	Internal        = &Code{Status: 500, Type: "InternalError"}
	Unavailable     = &Code{Status: 503, Type: "Unavailable"}
)

type ApiError struct {
	Status  int    `json:"-"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func New(code *Code, message string, cause error) *ApiError {
	return &ApiError{Status: code.Status, Type: code.Type, Message: message, Cause: cause}
}

func (e *ApiError) Error() string {
	return tools.ToJson(e)
}

func (e *ApiError) Unwrap() error {
	return e.Cause
}
