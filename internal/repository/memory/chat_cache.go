package memory

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// ChatCache remembers which chat ids are known to exist so the relay path
// doesn't pay a DB round trip per request just to check referential
// integrity. Deletion is out of scope, so a positive hit never goes stale
// within the TTL.
type ChatCache struct {
	cache *cache.Cache
}

func NewChatCache() *ChatCache {
	// Default expiration of 1 hour, purge sweep every 10 minutes
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &ChatCache{
		cache: c,
	}
}

func (r *ChatCache) MarkExists(chatId uuid.UUID) {
	r.cache.Set(chatId.String(), true, cache.DefaultExpiration)
}

func (r *ChatCache) Exists(chatId uuid.UUID) bool {
	_, found := r.cache.Get(chatId.String())
	return found
}

func (r *ChatCache) Forget(chatId uuid.UUID) {
	r.cache.Delete(chatId.String())
}
