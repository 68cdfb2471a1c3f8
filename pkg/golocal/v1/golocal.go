//go:build go1.4
// +build go1.4

package v1

import (
	"context"
	"sync"

	"github.com/modern-go/gls"
)

const (
	RequestID = "X-Request-ID"
	GoContext = "Go-Context"
)

var localMap sync.Map

func getGoID() int64 {
	return gls.GoID()
}

func getMapByGoID(goID int64) *sync.Map {
	value, _ := localMap.Load(goID)
	if value == nil {
		_tmp := &sync.Map{}
		localMap.Store(goID, _tmp)
		return _tmp
	}
	return value.(*sync.Map)
}

// PutTraceID and GetTraceID carry the per-request trace id: HTTPExchange
// stores one at the top of every keep-alive iteration, and the logger
// reads it back on every log line so a request's log lines can be
// correlated without threading a context.Context through every call.
func PutTraceID(value string) {
	m := getMapByGoID(getGoID())
	m.Store(RequestID, value)
}

func GetTraceID() string {
	m := getMapByGoID(getGoID())
	if v, ok := m.Load(RequestID); ok {
		return v.(string)
	} else {
		return ""
	}
}

// Clean drops the current goroutine's local map, so a pooled/reused
// goroutine (or a test) doesn't leak a stale trace id into whatever runs
// next on the same goroutine id.
func Clean() {
	id := getGoID()
	if v := getMapByGoID(id); v != nil {
		localMap.Delete(id)
	}
}

func PutContext(ctx context.Context) {
	m := getMapByGoID(getGoID())
	m.Store(GoContext, ctx)
}

func GetContext() context.Context {
	m := getMapByGoID(getGoID())
	if v, ok := m.Load(GoContext); ok {
		return v.(context.Context)
	} else {
		background := context.Background()
		PutContext(background)
		return background
	}
}
