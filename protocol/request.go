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

import "strings"

type BodyMode int

const (
	BodyNone BodyMode = iota
	BodyFixedLength
	BodyChunked
)

// Request is an immutable view of one parsed request. It is created fresh
// by Input.ReadRequest for every pipelined iteration and never mutated
// after that except by the body stream draining its bytes.
type Request struct {
	Method  string
	Target  string
	Version string

	Headers []Header // original order, original case, duplicates kept
	byName  map[string]string

	BodyMode      BodyMode
	ContentLength int64 // valid when BodyMode == BodyFixedLength

	CloseAfter bool
}

func newRequest(method, target, version string, headers []Header) *Request {
	byName := make(map[string]string, len(headers))
	for _, h := range headers {
		if existing, ok := byName[h.Lower]; ok {
			byName[h.Lower] = existing + ", " + h.Value
		} else {
			byName[h.Lower] = h.Value
		}
	}
	return &Request{Method: method, Target: target, Version: version, Headers: headers, byName: byName}
}

// Header returns the merged value for a case-insensitive header name and
// whether it was present at all.
func (r *Request) Header(name string) (string, bool) {
	v, ok := r.byName[strings.ToLower(name)]
	return v, ok
}

// HeaderCount reports how many distinct lowercase header names were parsed.
func (r *Request) HeaderCount() int {
	return len(r.byName)
}
