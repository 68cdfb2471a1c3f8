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

package logger

import (
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/caiflower/httpengine/pkg/syncx"
)

// Appender is the sink a LoggerHandler drains its async queue into.
// httpengine never persists a request/response payload to disk, so the
// only implementation writes to stdout - no rolling/compressing file
// appender here.
type Appender interface {
	write(data data)
	close()
}

type consoleAppender struct {
	timeFormat  string
	enableTrace bool
	enableColor bool

	bufPool   sync.Pool
	log       *log.Logger
	writeLock sync.Locker
}

func newLogAppender(timeFormat string, enableTrace, enableColor bool) Appender {
	return &consoleAppender{
		timeFormat:  timeFormat,
		enableTrace: enableTrace,
		enableColor: enableColor,
		bufPool: sync.Pool{
			New: func() interface{} {
				return new(strings.Builder)
			},
		},
		log:       log.New(os.Stdout, "", 0),
		writeLock: syncx.NewSpinLock(),
	}
}

func (a *consoleAppender) write(data data) {
	defer onError("[logger appender]")

	timeFormat := data.timestamp.Format(a.timeFormat)
	level := data.level
	if a.enableColor {
		level = getLevelColor(level)
	}

	buf := a.bufPool.Get().(*strings.Builder)
	buf.Reset()
	buf.WriteString(timeFormat)
	buf.WriteString(" [")
	buf.WriteString(level)
	buf.WriteString("] ")
	if a.enableTrace && data.traceID != "" {
		traceID := data.traceID
		if a.enableColor {
			traceID = fmt.Sprintf("\033[1;35m%s\033[0m", traceID)
		}
		buf.WriteString("[")
		buf.WriteString(traceID)
		buf.WriteString("] ")
	}
	buf.WriteString(data.position)
	buf.WriteString(" - ")
	buf.WriteString(data.content)

	a.writeLock.Lock()
	defer func() {
		a.writeLock.Unlock()
		buf.Reset()
		a.bufPool.Put(buf)
	}()

	a.log.Println(buf.String())
}

func (a *consoleAppender) close() {}

func onError(txt string) {
	if r := recover(); r != nil {
		fmt.Println(time.Now().Format(_timeFormat), "[ERROR] -", "Got a runtime error", txt, r, string(debug.Stack()))
	}
}
