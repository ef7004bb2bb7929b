// Package router dispatches classified messages to the handlers registered
// for their type. Handler failures are isolated; per-connection ordering is
// guaranteed by the connection's single inbound goroutine, not by locking
// here.
package router

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/domain"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/metrics"
)

// Handler consumes one dispatched message. A returned error is logged and
// counted but never propagates to other handlers or later messages.
type Handler func(ctx context.Context, msg *domain.Message) error

// HistoryNotifier receives a fire-and-forget notification for every
// dispatched message. Implementations must not block.
type HistoryNotifier interface {
	MessageDispatched(ctx context.Context, endpoint string, msg *domain.Message)
}

// SubscriptionID identifies one registered handler for later removal.
type SubscriptionID string

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Router maps (endpoint, message type) to an ordered list of handlers.
type Router struct {
	mu      sync.RWMutex
	byType  map[string]map[string][]subscription // endpoint -> type -> handlers
	history HistoryNotifier
}

func New(history HistoryNotifier) *Router {
	return &Router{
		byType:  make(map[string]map[string][]subscription),
		history: history,
	}
}

// Subscribe registers a handler for a message type on one endpoint.
// Handlers run in registration order.
func (r *Router) Subscribe(endpoint, msgType string, handler Handler) SubscriptionID {
	id := SubscriptionID(uuid.NewString())

	r.mu.Lock()
	defer r.mu.Unlock()

	types, ok := r.byType[endpoint]
	if !ok {
		types = make(map[string][]subscription)
		r.byType[endpoint] = types
	}
	types[msgType] = append(types[msgType], subscription{id: id, handler: handler})

	return id
}

// Unsubscribe removes a previously registered handler. Unknown IDs are a
// no-op.
func (r *Router) Unsubscribe(endpoint, msgType string, id SubscriptionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	types, ok := r.byType[endpoint]
	if !ok {
		return
	}
	subs := types[msgType]
	for i, sub := range subs {
		if sub.id == id {
			types[msgType] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(types[msgType]) == 0 {
		delete(types, msgType)
	}
	if len(types) == 0 {
		delete(r.byType, endpoint)
	}
}

// DropEndpoint removes every handler for an endpoint. Called when the handle
// is destroyed.
func (r *Router) DropEndpoint(endpoint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byType, endpoint)
}

// Dispatch delivers a message to every handler registered for its type on
// the endpoint. Absence of a handler is not an error. Each handler is
// invoked in isolation: a panic or error is logged and counted, and the
// remaining handlers still run.
func (r *Router) Dispatch(ctx context.Context, endpoint string, msg *domain.Message) {
	r.mu.RLock()
	var subs []subscription
	if types, ok := r.byType[endpoint]; ok {
		subs = types[msg.Type]
	}
	r.mu.RUnlock()

	if len(subs) == 0 {
		metrics.UnroutedMessages.Inc()
		slog.Debug("No handler registered, dropping message",
			"endpoint", endpoint,
			"type", msg.Type,
			"message_id", msg.ID,
		)
		return
	}

	for _, sub := range subs {
		r.invoke(ctx, endpoint, msg, sub)
	}

	if r.history != nil {
		r.history.MessageDispatched(ctx, endpoint, msg)
	}
}

func (r *Router) invoke(ctx context.Context, endpoint string, msg *domain.Message, sub subscription) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.HandlerErrors.WithLabelValues(msg.Type).Inc()
			slog.Error("Handler panicked",
				"endpoint", endpoint,
				"type", msg.Type,
				"message_id", msg.ID,
				"panic", rec,
			)
		}
	}()

	if err := sub.handler(ctx, msg); err != nil {
		metrics.HandlerErrors.WithLabelValues(msg.Type).Inc()
		slog.Warn("Handler failed",
			"endpoint", endpoint,
			"type", msg.Type,
			"message_id", msg.ID,
			"error", err,
		)
	}
}
