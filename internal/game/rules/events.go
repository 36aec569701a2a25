package rules

import (
	"sync"
	"time"
)

// EventType indicates the category of a rules event.
type EventType string

const (
	EventGameCreated    EventType = "GAME_CREATED"
	EventCardPlayed     EventType = "CARD_PLAYED"
	EventManaSpent      EventType = "MANA_SPENT"
	EventTurnEnded      EventType = "TURN_ENDED"
	EventUnitsReadied   EventType = "UNITS_READIED"
	EventAttackDeclared EventType = "ATTACK_DECLARED"
	EventUnitDamaged    EventType = "UNIT_DAMAGED"
	EventUnitDestroyed  EventType = "UNIT_DESTROYED"
	EventHeroDamaged    EventType = "HERO_DAMAGED"
	EventPlayerConceded EventType = "PLAYER_CONCEDED"
	EventGameOver       EventType = "GAME_OVER"
)

// IsTerminal returns true for events that can only be emitted once per game.
func (et EventType) IsTerminal() bool {
	return et == EventGameOver
}

// NoColumn marks events that do not refer to a board slot (hero damage,
// turn bookkeeping, concessions).
const NoColumn = -1

// Event represents a state change that other subsystems may react to.
// Resolvers fill in the game-level fields; ID and Timestamp are stamped by
// whoever publishes the event.
type Event struct {
	Type        EventType         `json:"type"`
	ID          string            `json:"id,omitempty"`
	GameID      string            `json:"game_id,omitempty"`
	PlayerID    string            `json:"player_id,omitempty"`
	Side        Side              `json:"side"`
	Column      int               `json:"column"`
	Amount      int               `json:"amount"`
	Turn        int               `json:"turn"`
	Timestamp   time.Time         `json:"timestamp"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Description string            `json:"description,omitempty"`
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle,
// whether it was registered with Subscribe or SubscribeTyped.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}

	if typedListeners, ok := bus.typedListeners[event.Type]; ok {
		for _, listener := range typedListeners {
			listener.Callback(event)
		}
	}
}

// PublishBatch publishes events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}

// NewEvent creates an event for a side's action that does not touch a board slot.
func NewEvent(eventType EventType, side Side, turn int) Event {
	return Event{
		Type:   eventType,
		Side:   side,
		Column: NoColumn,
		Turn:   turn,
	}
}

// NewSlotEvent creates an event about the unit in a specific board slot.
func NewSlotEvent(eventType EventType, side Side, column, turn int) Event {
	evt := NewEvent(eventType, side, turn)
	evt.Column = column
	return evt
}

// NewEventWithAmount creates a new event with an amount value.
func NewEventWithAmount(eventType EventType, side Side, column, turn, amount int) Event {
	evt := NewSlotEvent(eventType, side, column, turn)
	evt.Amount = amount
	return evt
}
