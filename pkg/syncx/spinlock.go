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

package syncx

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// backOffSpinLock is a spinlock that backs off with runtime.Gosched between
// failed CAS attempts; it never sleeps. Not reentrant: a second Lock from the same goroutine deadlocks, same as
// sync.Mutex.
type backOffSpinLock uint32

const maxBackoffSpins = 4

func (sl *backOffSpinLock) Lock() {
	spins := 0
	for !atomic.CompareAndSwapUint32((*uint32)(sl), 0, 1) {
		if spins < maxBackoffSpins {
			runtime.Gosched()
			spins++
		} else {
			runtime.Gosched()
		}
	}
}

func (sl *backOffSpinLock) Unlock() {
	atomic.StoreUint32((*uint32)(sl), 0)
}

// NewSpinLock returns a sync.Locker cheaper than sync.Mutex under light,
// short-held contention (connection registries, resource manager
// bookkeeping). It does not support reentrant locking.
func NewSpinLock() sync.Locker {
	return new(backOffSpinLock)
}
