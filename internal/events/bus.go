package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler is a subscriber callback. Handlers must not block: they are
// invoked asynchronously but one slow handler still delays delivery to
// its own queue.
type Handler func(*Event)

// Bus is a simple publish/subscribe event bus. Subscriptions are
// per-event-type; publishing never blocks the publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for an event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish delivers an event to all handlers subscribed to its type.
// Delivery is asynchronous; a panicking handler is logged and dropped
// rather than taking the process down.
func (b *Bus) Publish(event *Event) {
	if event == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.Type]...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		h := handler
		go func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Error().
						Str("event_type", string(event.Type)).
						Interface("panic", r).
						Msg("Event handler panicked")
				}
			}()
			h(event)
		}()
	}
}

// Manager is the emit-side facade handed to services. It stamps module
// and timestamp and forwards to the bus.
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates an event manager backed by the given bus
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("component", "event_manager").Logger(),
	}
}

// Emit publishes an event with the given type, source module and payload
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	m.log.Debug().
		Str("event_type", string(eventType)).
		Str("module", module).
		Msg("Emitting event")

	m.bus.Publish(&Event{
		Type:      eventType,
		Module:    module,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// EmitTyped publishes an event carrying a typed payload. The payload is
// flattened into the event's data map via its JSON representation by the
// SSE encoder; subscribers that want the typed value can use EventWithData.
func (m *Manager) EmitTyped(module string, data EventData) {
	m.Emit(data.EventType(), module, map[string]interface{}{"payload": data})
}

// Bus returns the underlying bus, for subscribers
func (m *Manager) Bus() *Bus {
	return m.bus
}
