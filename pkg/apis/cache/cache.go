package cache

import "time"

// Cache stores fetched external content (exported documents, web pages)
// keyed by URL so repeated turns against the same source do not refetch.
type Cache interface {
	Get(key string) ([]byte, error)
	Set(key string, content []byte, duration time.Duration) error
}
