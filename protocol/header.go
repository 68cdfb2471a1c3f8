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

// Header is one field-line as it appeared on the wire: Name preserves the
// received case, Lower is the lowercased name used for lookups, Value has
// had leading/trailing OWS stripped and obs-fold already collapsed to a
// single space.
type Header struct {
	Name  string
	Lower string
	Value string
}

func NewHeader(name, value string) Header {
	return Header{Name: name, Lower: strings.ToLower(name), Value: value}
}

// Limits bounds the parser the way a production HTTP/1.1 implementation
// must: without them a single client can force unbounded memory growth.
type Limits struct {
	MaxRequestLine  int
	MaxHeaderName   int
	MaxHeaderValue  int
	MaxHeaders      int
	MaxBodySize     int64
	MaxChunkSize    int64
	MaxChunkExtSize int
}

func DefaultLimits() Limits {
	return Limits{
		MaxRequestLine:  8000,
		MaxHeaderName:   1024,
		MaxHeaderValue:  8192,
		MaxHeaders:      200,
		MaxBodySize:     10_000_000,
		MaxChunkSize:    8 * 1024 * 1024,
		MaxChunkExtSize: 1024,
	}
}
