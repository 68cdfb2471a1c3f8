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

package server

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caiflower/httpengine/exchange"
	"github.com/caiflower/httpengine/protocol"
)

func TestNewOptionsAppliesTagDefaults(t *testing.T) {
	o := NewOptions()
	assert.Equal(t, "default", o.Name)
	assert.Equal(t, "tcp", o.Network)
	assert.Equal(t, ":8080", o.Addr)
	assert.Equal(t, defaultReadTimeout, o.ReadTimeout)
	assert.Equal(t, defaultIdleTimeout, o.IdleTimeout)
	assert.Equal(t, 200, o.MaxHeaders)
}

func TestWithOptionsOverrideDefaults(t *testing.T) {
	o := NewOptions(
		WithName("svc"),
		WithAddr(":9090"),
		WithReadTimeout(5*time.Second),
	)
	assert.Equal(t, "svc", o.Name)
	assert.Equal(t, ":9090", o.Addr)
	assert.Equal(t, 5*time.Second, o.ReadTimeout)
}

func TestServerNameReportsDaemonResourceIdentity(t *testing.T) {
	s := New(NewOptions(WithName("demo")))
	assert.Equal(t, "HTTP_SERVER:demo", s.Name())
}

func TestServerAcceptsAndServesOneConnection(t *testing.T) {
	handler := exchange.HandlerFunc(func(ex *exchange.HTTPExchange, req *protocol.Request, resp *protocol.Response) error {
		return resp.Status(200, "OK").WriteString("ok")
	})

	opts := NewOptions(WithName("test"), WithAddr("127.0.0.1:0"))
	s := New(opts, handler)
	require.NoError(t, s.Start())
	defer s.Close()

	addr := s.listener.Addr().String()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET / HTTP/1.1\r\nHost: example.com\r\nConnection: close\r\n\r\n"))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "200")
}

func TestServerRejectsConnectionsOverPerIPRate(t *testing.T) {
	handler := exchange.HandlerFunc(func(ex *exchange.HTTPExchange, req *protocol.Request, resp *protocol.Response) error {
		return resp.Status(200, "OK").WriteString("ok")
	})

	opts := NewOptions(
		WithName("ratelimited"),
		WithAddr("127.0.0.1:0"),
		WithMaxConnectionsPerIP(1, time.Second),
	)
	s := New(opts, handler)
	require.NoError(t, s.Start())
	defer s.Close()

	addr := s.listener.Addr().String()

	first, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer first.Close()
	_, err = first.Write([]byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	require.NoError(t, err)
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = bufio.NewReader(first).ReadString('\n')
	require.NoError(t, err)

	second, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer second.Close()

	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err = second.Read(buf)
	assert.Error(t, err, "second connection from the same IP should be closed immediately by the rate guard")
}

type lifecycleHandler struct {
	added, cleaned bool
}

func (h *lifecycleHandler) Serve(ex *exchange.HTTPExchange, req *protocol.Request, resp *protocol.Response) error {
	return nil
}
func (h *lifecycleHandler) AddedToServer() { h.added = true }
func (h *lifecycleHandler) Cleanup()       { h.cleaned = true }

func TestUseInvokesLifecycleHooks(t *testing.T) {
	first := &lifecycleHandler{}
	second := &lifecycleHandler{}

	s := New(NewOptions(WithName("lifecycle")), first)
	assert.True(t, first.added)

	s.Use(second)
	assert.True(t, first.cleaned)
	assert.True(t, second.added)
}
