package memory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestChatCacheRoundTrip(t *testing.T) {
	c := NewChatCache()
	id := uuid.New()

	assert.False(t, c.Exists(id))

	c.MarkExists(id)
	assert.True(t, c.Exists(id))

	c.Forget(id)
	assert.False(t, c.Exists(id))
}

func TestChatCacheIsolatesIds(t *testing.T) {
	c := NewChatCache()
	a, b := uuid.New(), uuid.New()

	c.MarkExists(a)
	assert.True(t, c.Exists(a))
	assert.False(t, c.Exists(b))
}
