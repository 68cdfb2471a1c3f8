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

// Package server wires protocol.Input/Response, the exchange loop, and
// conn.Connection into an acceptor: a TCP listener, an atomically
// swappable handler chain, and a dispatch goroutine per accepted socket.
package server

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/caiflower/httpengine/conn"
	"github.com/caiflower/httpengine/exchange"
	"github.com/caiflower/httpengine/global/env"
	"github.com/caiflower/httpengine/pkg/cache"
	"github.com/caiflower/httpengine/pkg/crontab"
	"github.com/caiflower/httpengine/pkg/logger"
	"github.com/caiflower/httpengine/pkg/safego"
	"github.com/caiflower/httpengine/protocol"
)

// Handler and HandlerFunc are the chain element type handlers are written
// against; re-exported from exchange so application code never needs to
// import that package directly.
type Handler = exchange.Handler
type HandlerFunc = exchange.HandlerFunc

// Server accepts connections on one listener and dispatches each to its
// own goroutine via pkg/safego.Go, so a handler panic tears down only that
// connection. It implements global.DaemonResource (Name/Start/Close) so an
// embedding application registers it with global.DefaultResourceManger the
// same way the teacher registers its HTTP servers and cron managers.
type Server struct {
	opts    *Options
	metrics *exchange.Metrics

	handlers atomic.Pointer[[]Handler]

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{}

	activeConns atomic.Int64
	heartbeat   *crontab.CronManger
}

func New(opts *Options, handlers ...Handler) *Server {
	s := &Server{opts: opts, done: make(chan struct{})}
	if opts.EnableMetrics {
		s.metrics = exchange.NewMetrics(opts.Name)
	}
	h := append([]Handler(nil), handlers...)
	s.handlers.Store(&h)
	for _, handler := range h {
		if lc, ok := handler.(exchange.Lifecycle); ok {
			lc.AddedToServer()
		}
	}
	return s
}

func (s *Server) Name() string {
	return fmt.Sprintf("HTTP_SERVER:%s", s.opts.Name)
}

// Use atomically replaces the handler chain. Handlers dropped from the old
// chain get their Cleanup hook invoked; handlers newly added get
// AddedToServer. In-flight connections keep running against whatever chain
// they already snapshotted.
func (s *Server) Use(handlers ...Handler) {
	old := s.handlers.Load()
	h := append([]Handler(nil), handlers...)
	s.handlers.Store(&h)

	if old != nil {
	oldLoop:
		for _, o := range *old {
			for _, n := range h {
				if o == n {
					continue oldLoop
				}
			}
			if lc, ok := o.(exchange.Lifecycle); ok {
				lc.Cleanup()
			}
		}
	}
	for _, n := range h {
		if lc, ok := n.(exchange.Lifecycle); ok {
			lc.AddedToServer()
		}
	}
}

func (s *Server) Start() error {
	ln, err := net.Listen(s.opts.Network, s.opts.Addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	logger.Info(
		"\n***************************** http engine startup ***************************************\n"+
			"************* server [name:%s] listening on %s (host %s) *********\n"+
			"*************************************************************************************************", s.opts.Name, s.opts.Addr, env.LocalhostIP)

	if s.opts.HeartbeatInterval > 0 {
		s.heartbeat = crontab.NewCronTabManger(s.Name() + ":heartbeat")
		if _, err := s.heartbeat.AddCronJob(fmt.Sprintf("@every %s", s.opts.HeartbeatInterval), heartbeatJob{s}); err != nil {
			logger.Warn("[Server] scheduling heartbeat failed. error=%s", err.Error())
		}
		s.heartbeat.Start()
	}

	safego.Go(s.acceptLoop)
	return nil
}

// heartbeatJob logs the current active connection count on a fixed
// interval, so an operator tailing logs can see the server is alive and
// how loaded it is without scraping metrics.
type heartbeatJob struct {
	s *Server
}

func (h heartbeatJob) Run() {
	logger.Info("[Server] heartbeat. name=%s activeConnections=%d", h.s.opts.Name, h.s.activeConns.Load())
}

func (s *Server) acceptLoop() {
	for {
		c, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Warn("[Server] accept failed. error=%s", err.Error())
			continue
		}

		if s.opts.MaxConnectionsPerIP > 0 && s.rateLimited(c) {
			_ = c.Close()
			continue
		}

		handlers := *s.handlers.Load()
		cfg := s.exchangeConfig()
		metrics := s.metrics
		s.activeConns.Add(1)
		safego.Go(func() {
			defer s.activeConns.Add(-1)
			conn.New(c, s.opts.InputBufferSize, s.opts.OutputBufferSize, handlers, cfg, metrics).Run()
		})
	}
}

// rateLimited is a best-effort (not perfectly atomic) per-IP connection
// counter backed by pkg/cache.LocalCache: each accepted connection bumps a
// TTL'd counter keyed by remote IP, and an IP that crosses
// MaxConnectionsPerIP within ConnectionRateWindow is rejected until the
// window expires.
func (s *Server) rateLimited(c net.Conn) bool {
	ip := c.RemoteAddr().String()
	if idx := strings.LastIndexByte(ip, ':'); idx >= 0 {
		ip = ip[:idx]
	}
	key := "httpengine:connrate:" + s.opts.Name + ":" + ip

	count := 0
	if v, ok := cache.LocalCache.Get(key); ok {
		count = v.(int)
	}
	if count >= s.opts.MaxConnectionsPerIP {
		logger.Warn("[Server] rejecting connection, rate limit exceeded. remote=%s", ip)
		return true
	}
	cache.LocalCache.Set(key, count+1, s.opts.ConnectionRateWindow)
	return false
}

func (s *Server) exchangeConfig() exchange.Config {
	return exchange.Config{
		Limits: protocol.Limits{
			MaxRequestLine:  s.opts.MaxRequestLine,
			MaxHeaderName:   s.opts.MaxHeaderName,
			MaxHeaderValue:  s.opts.MaxHeaderValue,
			MaxHeaders:      s.opts.MaxHeaders,
			MaxBodySize:     s.opts.MaxRequestBodySize,
			MaxChunkSize:    s.opts.MaxChunkSize,
			MaxChunkExtSize: s.opts.MaxChunkExtSize,
		},
		ReadTimeout:             s.opts.ReadTimeout,
		IdleTimeout:             s.opts.IdleTimeout,
		MaxFramePayload:         s.opts.MaxFramePayload,
		EnablePermessageDeflate: s.opts.EnablePermessageDeflate,
	}
}

func (s *Server) Close() {
	logger.Info("      **** http engine [name:%s] shutdown ****", s.opts.Name)
	close(s.done)

	if s.heartbeat != nil {
		s.heartbeat.Close()
	}

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		if err := ln.Close(); err != nil {
			logger.Warn("[Server] closing listener failed. error=%s", err.Error())
		}
	}

	for _, h := range *s.handlers.Load() {
		if lc, ok := h.(exchange.Lifecycle); ok {
			lc.Cleanup()
		}
	}
}
