package cache

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// LocalCache is a process-local cache backed by github.com/patrickmn/go-cache.
// Entries have no default expiration; server.Server's per-IP connection-rate
// guard sets an explicit TTL per key. Expired keys are swept every minute.
var LocalCache = cache.New(cache.NoExpiration, 1*time.Minute)
