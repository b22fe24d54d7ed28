// internal/events/event_bus.go
package events

import (
	"sync"

	"go.uber.org/zap"

	"servo-bridge/internal/model"
)

// EventBus manages event distribution
type EventBus struct {
	subscribers map[model.EventType][]chan model.BridgeEvent
	all         []chan model.BridgeEvent
	events      chan model.BridgeEvent
	mutex       sync.RWMutex
	closed      bool
	done        chan struct{}
	logger      *zap.Logger
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[model.EventType][]chan model.BridgeEvent),
		events:      make(chan model.BridgeEvent, 1000),
		done:        make(chan struct{}),
		logger:      logger.With(zap.String("component", "event-bus")),
	}
}

// Start distributes events until Stop is called
func (eb *EventBus) Start() {
	defer close(eb.done)

	for event := range eb.events {
		eb.distributeEvent(event)
	}

	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	for _, sub := range eb.all {
		close(sub)
	}
	eb.all = nil
	eb.subscribers = nil
}

// Stop stops accepting events and waits for pending ones to be distributed.
// Subscriber channels are closed afterwards.
func (eb *EventBus) Stop() {
	eb.mutex.Lock()
	if eb.closed {
		eb.mutex.Unlock()
		return
	}
	eb.closed = true
	close(eb.events)
	eb.mutex.Unlock()

	<-eb.done
}

// Publish publishes an event. Events are dropped when the bus is full or stopped.
func (eb *EventBus) Publish(event model.BridgeEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	if eb.closed {
		return
	}

	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.Type)),
		)
	}
}

// Subscribe subscribes to events of the given types
func (eb *EventBus) Subscribe(eventTypes ...model.EventType) <-chan model.BridgeEvent {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan model.BridgeEvent, 100)
	if eb.closed {
		close(subscriber)
		return subscriber
	}
	for _, eventType := range eventTypes {
		eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
	}
	eb.all = append(eb.all, subscriber)
	return subscriber
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event model.BridgeEvent) {
	eb.mutex.RLock()
	subscribers := eb.subscribers[event.Type]
	eb.mutex.RUnlock()

	for _, subscriber := range subscribers {
		select {
		case subscriber <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
