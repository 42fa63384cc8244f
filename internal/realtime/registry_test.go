package realtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRegistryTracksSessionSets(t *testing.T) {
	registry := NewRegistry()
	userID := uuid.New()

	assert.False(t, registry.IsUserConnected(userID))
	assert.Empty(t, registry.SessionsFor(userID))

	// two tabs for the same user
	first := &Session{id: uuid.New(), userID: userID}
	second := &Session{id: uuid.New(), userID: userID}
	registry.add(first)
	registry.add(second)

	assert.True(t, registry.IsUserConnected(userID))
	assert.Len(t, registry.SessionsFor(userID), 2)
	assert.Equal(t, 2, registry.ConnectionCount())

	registry.remove(first)
	assert.True(t, registry.IsUserConnected(userID))
	assert.Len(t, registry.SessionsFor(userID), 1)

	registry.remove(second)
	assert.False(t, registry.IsUserConnected(userID))
	assert.Equal(t, 0, registry.ConnectionCount())

	// removing an unknown session is harmless
	registry.remove(first)
	assert.Equal(t, 0, registry.ConnectionCount())
}
