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

// Session is the sender half handed to a Handler callback: everything a
// callback needs to talk back on the same connection without reaching
// into the exchange loop that invoked it.
type Session interface {
	SendText(msg string) error
	SendBinary(msg []byte) error
	SendPing(msg []byte) error
	SendPong(msg []byte) error
	Close(code int, reason string) error
}

// Handler reacts to decoded WebSocket messages. Each callback except
// OnClose (which ends the session and returns nothing) returns the
// Handler that should field the next message on the same session - usually
// itself, but a callback is free to return a different Handler to switch
// session behavior mid-stream (for example, a login handler handing off to
// an authenticated handler after a valid credentials message). Returning
// nil is equivalent to returning the same Handler unchanged.
type Handler interface {
	OnText(s Session, msg string) Handler
	OnBinary(s Session, msg []byte) Handler
	OnPing(s Session, msg []byte) Handler
	OnPong(s Session, msg []byte) Handler
	OnClose(s Session, code int, reason string)
}

// BaseHandler answers pings with a pong carrying the same payload and
// otherwise no-ops, so a real Handler can embed it and only override the
// callbacks it cares about.
type BaseHandler struct{}

func (BaseHandler) OnText(s Session, msg string) Handler { return nil }

func (BaseHandler) OnBinary(s Session, msg []byte) Handler { return nil }

func (BaseHandler) OnPing(s Session, msg []byte) Handler {
	_ = s.SendPong(msg)
	return nil
}

func (BaseHandler) OnPong(s Session, msg []byte) Handler { return nil }

func (BaseHandler) OnClose(s Session, code int, reason string) {}
