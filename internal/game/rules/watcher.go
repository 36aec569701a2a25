package rules

import (
	"sync"
)

// Watcher observes published events and keeps whatever it derives from them.
// Watch is called synchronously on the publishing goroutine.
type Watcher interface {
	// Key identifies the watcher within a registry.
	Key() string
	Watch(event Event)
}

// WatcherRegistry fans events out to its watchers in registration order.
type WatcherRegistry struct {
	mu       sync.RWMutex
	watchers map[string]Watcher
	order    []string

	bus    *EventBus
	handle int
}

// NewWatcherRegistry creates an empty registry.
func NewWatcherRegistry() *WatcherRegistry {
	return &WatcherRegistry{
		watchers: make(map[string]Watcher),
		handle:   -1,
	}
}

// AddWatcher registers watcher, replacing any watcher with the same key.
func (wr *WatcherRegistry) AddWatcher(watcher Watcher) {
	if watcher == nil {
		return
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	key := watcher.Key()
	if _, exists := wr.watchers[key]; !exists {
		wr.order = append(wr.order, key)
	}
	wr.watchers[key] = watcher
}

// RemoveWatcher removes the watcher registered under key.
func (wr *WatcherRegistry) RemoveWatcher(key string) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	if _, ok := wr.watchers[key]; !ok {
		return
	}
	delete(wr.watchers, key)
	for i, k := range wr.order {
		if k == key {
			wr.order = append(wr.order[:i], wr.order[i+1:]...)
			break
		}
	}
}

// GetWatcher retrieves a watcher by key, or nil.
func (wr *WatcherRegistry) GetWatcher(key string) Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	return wr.watchers[key]
}

// Watchers returns the registered watchers in registration order.
func (wr *WatcherRegistry) Watchers() []Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	result := make([]Watcher, 0, len(wr.order))
	for _, key := range wr.order {
		result = append(result, wr.watchers[key])
	}
	return result
}

// NotifyWatchers delivers event to every watcher.
func (wr *WatcherRegistry) NotifyWatchers(event Event) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	for _, key := range wr.order {
		wr.watchers[key].Watch(event)
	}
}

// Attach subscribes the registry to bus. A registry follows at most one bus;
// attaching again moves it.
func (wr *WatcherRegistry) Attach(bus *EventBus) {
	wr.Detach()

	handle := bus.Subscribe(wr.NotifyWatchers)

	wr.mu.Lock()
	wr.bus = bus
	wr.handle = handle
	wr.mu.Unlock()
}

// Detach stops following the bus the registry is attached to.
func (wr *WatcherRegistry) Detach() {
	wr.mu.Lock()
	bus, handle := wr.bus, wr.handle
	wr.bus, wr.handle = nil, -1
	wr.mu.Unlock()

	if bus != nil {
		bus.Unsubscribe(handle)
	}
}
