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

package e

import (
	"runtime/debug"

	"github.com/caiflower/httpengine/pkg/logger"
)

// OnError is meant to be deferred at the top of a goroutine (see
// pkg/safego.Go): it turns a panic into a logged error with a stack trace
// instead of crashing the process, since one connection's handler panic
// must not take the whole server down.
func OnError(txt string) {
	if r := recover(); r != nil {
		logger.Error("[%s] Got a runtime error %v.\n%s", txt, r, string(debug.Stack()))
	}
}
