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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressionRoundTrip(t *testing.T) {
	c, err := NewCompression(false, false)
	require.NoError(t, err)
	defer c.Close()

	messages := []string{
		"",
		"hello",
		strings.Repeat("the quick brown fox jumps over the lazy dog ", 200),
	}
	for _, msg := range messages {
		compressed, err := c.Compress([]byte(msg))
		require.NoError(t, err)
		decompressed, err := c.Decompress(compressed)
		require.NoError(t, err)
		assert.Equal(t, msg, string(decompressed))
	}
}

func TestCompressionContextTakeoverAcrossMessages(t *testing.T) {
	c, err := NewCompression(false, false)
	require.NoError(t, err)
	defer c.Close()

	other, err := NewCompression(false, false)
	require.NoError(t, err)
	defer other.Close()

	first := "repeated prefix repeated prefix repeated prefix"
	second := "repeated prefix continues the same dictionary"

	c1, err := c.Compress([]byte(first))
	require.NoError(t, err)
	d1, err := other.Decompress(c1)
	require.NoError(t, err)
	assert.Equal(t, first, string(d1))

	c2, err := c.Compress([]byte(second))
	require.NoError(t, err)
	d2, err := other.Decompress(c2)
	require.NoError(t, err)
	assert.Equal(t, second, string(d2))
}

func TestCompressionNoContextTakeoverResetsEachMessage(t *testing.T) {
	c, err := NewCompression(true, true)
	require.NoError(t, err)
	defer c.Close()

	msg := "no context takeover between these two messages at all"
	c1, err := c.Compress([]byte(msg))
	require.NoError(t, err)
	c2, err := c.Compress([]byte(msg))
	require.NoError(t, err)
	assert.Equal(t, c1, c2, "identical input must compress identically when the window resets every message")
}
