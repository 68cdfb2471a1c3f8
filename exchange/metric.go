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

package exchange

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records per-request and per-frame counters, labeled by the
// owning server's name instead of a deployment IP: this module makes no
// assumption about being deployed across a fleet.
type Metrics struct {
	server string

	requestTotal   *prometheus.CounterVec
	requestCost    *prometheus.CounterVec
	costHistogram  prometheus.Histogram
	wsFrameTotal   *prometheus.CounterVec
	wsSessionTotal *prometheus.CounterVec
}

var (
	sharedOnce    sync.Once
	sharedMetrics Metrics
)

// NewMetrics returns a Metrics that labels what it records with server.
// The collectors are registered with the default prometheus registry once
// per process and shared, so each named server can have its own Metrics.
func NewMetrics(server string) *Metrics {
	sharedOnce.Do(func() { sharedMetrics = newSharedMetrics() })
	m := sharedMetrics
	m.server = server
	return &m
}

func newSharedMetrics() Metrics {
	buckets := []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000}
	m := Metrics{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpengine_request_total", Help: "requests served, by status code and method",
		}, []string{"server", "code", "method"}),
		requestCost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpengine_request_cost_ms_total", Help: "cumulative request handling time in milliseconds",
		}, []string{"server", "code", "method"}),
		costHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "httpengine_request_duration_ms", Help: "request handling time distribution in milliseconds", Buckets: buckets,
		}),
		wsFrameTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpengine_ws_frame_total", Help: "WebSocket frames processed, by direction and opcode",
		}, []string{"server", "direction", "opcode"}),
		wsSessionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpengine_ws_session_closed_total", Help: "WebSocket sessions closed, by close code",
		}, []string{"server", "code"}),
	}

	prometheus.MustRegister(m.requestTotal, m.requestCost, m.costHistogram, m.wsFrameTotal, m.wsSessionTotal)
	return m
}

func (m *Metrics) recordRequest(method string, status int, cost time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	ms := float64(cost.Milliseconds())
	m.requestTotal.WithLabelValues(m.server, code, method).Inc()
	m.requestCost.WithLabelValues(m.server, code, method).Add(ms)
	m.costHistogram.Observe(ms)
}

func (m *Metrics) recordFrame(direction, opcode string) {
	if m == nil {
		return
	}
	m.wsFrameTotal.WithLabelValues(m.server, direction, opcode).Inc()
}

func (m *Metrics) recordSessionClosed(code int) {
	if m == nil {
		return
	}
	m.wsSessionTotal.WithLabelValues(m.server, strconv.Itoa(code)).Inc()
}
