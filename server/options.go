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
	"reflect"
	"time"

	"github.com/caiflower/httpengine/pkg/tools"
)

// Option mutates an Options under construction; see WithXxx below. Modeled
// on web/server/config.Option - a chain of small mutators applied over a
// tag-defaulted zero value, not a struct literal the caller fills in by hand.
type Option func(*Options) *Options

// Options holds everything server.New needs that isn't handler logic.
// Immutable once passed to New. Scalar/string fields use `default:"..."`
// tags filled by pkg/tools.DoTagFunc the way web/server/config.Options
// does; time.Duration fields are defaulted directly below instead, since
// SetDefaultValueIfNil's integer branch treats a Duration as a plain int64
// and strconv.Atoi("20s") silently fails - the teacher's own tag-driven
// defaulting has this gap, so duration fields here just skip the tag.
type Options struct {
	Name    string `yaml:"name" default:"default"`
	Network string `yaml:"network" default:"tcp"`
	Addr    string `yaml:"addr" default:":8080"`

	ReadTimeout time.Duration `yaml:"readTimeout"`
	IdleTimeout time.Duration `yaml:"idleTimeout"`

	InputBufferSize    int   `yaml:"inputBufferSize" default:"8192"`
	OutputBufferSize   int   `yaml:"outputBufferSize" default:"65536"`
	MaxRequestBodySize int64 `yaml:"maxRequestBodySize" default:"10000000"`
	MaxChunkSize       int64 `yaml:"maxChunkSize" default:"8388608"`
	MaxChunkExtSize    int   `yaml:"maxChunkExtSize" default:"1024"`
	MaxHeaders         int   `yaml:"maxHeaders" default:"200"`
	MaxHeaderName      int   `yaml:"maxHeaderName" default:"1024"`
	MaxHeaderValue     int   `yaml:"maxHeaderValue" default:"8192"`
	MaxRequestLine     int   `yaml:"maxRequestLine" default:"8000"`

	MaxFramePayload         int64 `yaml:"maxFramePayload" default:"16777216"`
	EnablePermessageDeflate bool  `yaml:"enablePermessageDeflate"`
	EnableMetrics           bool  `yaml:"enableMetrics"`

	// MaxConnectionsPerIP caps new connections accepted from one remote IP
	// within ConnectionRateWindow, tracked in pkg/cache.LocalCache. Zero
	// disables the guard entirely.
	MaxConnectionsPerIP  int `yaml:"maxConnectionsPerIP" default:"0"`
	ConnectionRateWindow time.Duration `yaml:"connectionRateWindow"`

	// HeartbeatInterval controls how often the background cron job logs
	// the active connection count. Zero disables the heartbeat.
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
}

const (
	defaultReadTimeout       = 20 * time.Second
	defaultIdleTimeout       = 60 * time.Second
	defaultConnectionRateWindow = 10 * time.Second
	defaultHeartbeatInterval = 30 * time.Second
)

// NewOptions builds an Options from its tag defaults, then applies opts in
// order - the same two-step construction as config.NewOptions in the
// teacher's web/server/config package.
func NewOptions(opts ...Option) *Options {
	options := &Options{
		ReadTimeout:             defaultReadTimeout,
		IdleTimeout:             defaultIdleTimeout,
		EnablePermessageDeflate: true,
		ConnectionRateWindow:    defaultConnectionRateWindow,
		HeartbeatInterval:       defaultHeartbeatInterval,
	}
	tools.DoTagFunc(options, []func(reflect.StructField, reflect.Value){tools.SetDefaultValueIfNil})

	for _, opt := range opts {
		options = opt(options)
	}
	return options
}

// LoadOptions reads YAML from filename into the tag-defaulted Options
// before opts are applied, mirroring pkg/tools.LoadConfig's
// unmarshal-then-default order.
func LoadOptions(filename string, opts ...Option) (*Options, error) {
	options := NewOptions()
	if err := tools.UnmarshalFileYaml(filename, options); err != nil {
		return nil, err
	}
	tools.DoTagFunc(options, []func(reflect.StructField, reflect.Value){tools.SetDefaultValueIfNil})
	for _, opt := range opts {
		options = opt(options)
	}
	return options, nil
}

func WithName(name string) Option {
	return func(o *Options) *Options { o.Name = name; return o }
}

func WithAddr(addr string) Option {
	return func(o *Options) *Options { o.Addr = addr; return o }
}

func WithNetwork(network string) Option {
	return func(o *Options) *Options { o.Network = network; return o }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *Options) *Options { o.ReadTimeout = d; return o }
}

func WithIdleTimeout(d time.Duration) Option {
	return func(o *Options) *Options { o.IdleTimeout = d; return o }
}

func WithInputBufferSize(n int) Option {
	return func(o *Options) *Options { o.InputBufferSize = n; return o }
}

func WithOutputBufferSize(n int) Option {
	return func(o *Options) *Options { o.OutputBufferSize = n; return o }
}

func WithMaxRequestBodySize(n int64) Option {
	return func(o *Options) *Options { o.MaxRequestBodySize = n; return o }
}

func WithMaxFramePayload(n int64) Option {
	return func(o *Options) *Options { o.MaxFramePayload = n; return o }
}

func WithPermessageDeflate(enable bool) Option {
	return func(o *Options) *Options { o.EnablePermessageDeflate = enable; return o }
}

func WithMetrics(enable bool) Option {
	return func(o *Options) *Options { o.EnableMetrics = enable; return o }
}

func WithMaxConnectionsPerIP(n int, window time.Duration) Option {
	return func(o *Options) *Options { o.MaxConnectionsPerIP = n; o.ConnectionRateWindow = window; return o }
}

func WithHeartbeatInterval(d time.Duration) Option {
	return func(o *Options) *Options { o.HeartbeatInterval = d; return o }
}
