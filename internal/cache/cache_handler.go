package cache

import (
	"sync"
	"time"
)

// Parameters set from configuration before the first GetCacheInstance call.
var Size = 100
var CleanupInterval = 60 * time.Second
var DefaultExp = 60 * time.Second

var instance *Cache
var lock = &sync.Mutex{}

// GetCacheInstance returns the process-wide cache, creating it on first use.
func GetCacheInstance() *Cache {
	lock.Lock()
	defer lock.Unlock()

	if instance == nil {
		instance = New(DefaultExp, CleanupInterval, Size)
	}

	return instance
}
