package event

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oms/backend/internal/domain/inventory"
)

func TestHandlerRegistry_RegisterAndGet(t *testing.T) {
	registry := NewHandlerRegistry()

	handler := newTestHandler(inventory.EventTypeLotActivated)
	registry.Register(handler, inventory.EventTypeLotActivated)

	handlers := registry.GetHandlers(inventory.EventTypeLotActivated)
	assert.Len(t, handlers, 1)

	assert.Empty(t, registry.GetHandlers("SomethingElse"))
}

func TestHandlerRegistry_WildcardReceivesEveryType(t *testing.T) {
	registry := NewHandlerRegistry()

	wildcard := newTestHandler()
	registry.Register(wildcard)

	assert.Len(t, registry.GetHandlers(inventory.EventTypeLotActivated), 1)
	assert.Len(t, registry.GetHandlers("SomethingElse"), 1)
}

func TestHandlerRegistry_TypedAndWildcardCombined(t *testing.T) {
	registry := NewHandlerRegistry()

	typed := newTestHandler(inventory.EventTypeLotActivated)
	wildcard := newTestHandler()
	registry.Register(typed, inventory.EventTypeLotActivated)
	registry.Register(wildcard)

	handlers := registry.GetHandlers(inventory.EventTypeLotActivated)
	assert.Len(t, handlers, 2)
}

func TestHandlerRegistry_Unregister(t *testing.T) {
	registry := NewHandlerRegistry()

	handler := newTestHandler(inventory.EventTypeLotActivated)
	other := newTestHandler(inventory.EventTypeLotActivated)
	registry.Register(handler, inventory.EventTypeLotActivated)
	registry.Register(other, inventory.EventTypeLotActivated)

	registry.Unregister(handler)

	handlers := registry.GetHandlers(inventory.EventTypeLotActivated)
	assert.Len(t, handlers, 1)
}

func TestHandlerRegistry_UnregisterWildcard(t *testing.T) {
	registry := NewHandlerRegistry()

	wildcard := newTestHandler()
	registry.Register(wildcard)
	registry.Unregister(wildcard)

	assert.Empty(t, registry.GetHandlers(inventory.EventTypeLotActivated))
}
