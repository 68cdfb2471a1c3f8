package safego

import (
	"github.com/caiflower/httpengine/pkg/e"
	golocalv1 "github.com/caiflower/httpengine/pkg/golocal/v1"
)

func Go(fn func()) {
	traceID := golocalv1.GetTraceID()
	ctx := golocalv1.GetContext()
	go func() {
		defer golocalv1.Clean()
		defer e.OnError("safeGo")

		golocalv1.PutTraceID(traceID)
		golocalv1.PutContext(ctx)
		fn()
	}()
}
