package webhooks

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"paypal-gateway/internal/common/errors"
)

// EventHandler performs the local effect of one event type
type EventHandler interface {
	EventType() string
	Handle(ctx context.Context, event *InboundEvent) error
}

// HandlerFunc adapts a function to EventHandler
type HandlerFunc struct {
	Type string
	Fn   func(ctx context.Context, event *InboundEvent) error
}

// EventType returns Type
func (h HandlerFunc) EventType() string { return h.Type }

// Handle calls Fn
func (h HandlerFunc) Handle(ctx context.Context, event *InboundEvent) error {
	return h.Fn(ctx, event)
}

// HandlerSet maps each event type to exactly one handler. When several
// handlers declare the same type the one registered first wins; the others
// are kept as shadowed and never invoked.
type HandlerSet struct {
	ordered  []EventHandler
	byType   map[string]EventHandler
	shadowed []EventHandler
}

// NewHandlerSet resolves handlers in registration order
func NewHandlerSet(handlers ...EventHandler) (*HandlerSet, error) {
	set := &HandlerSet{
		ordered: make([]EventHandler, 0, len(handlers)),
		byType:  make(map[string]EventHandler, len(handlers)),
	}
	for i, h := range handlers {
		if h == nil {
			return nil, errors.ValidationError(fmt.Sprintf("handler %d is nil", i))
		}
		eventType := strings.TrimSpace(h.EventType())
		if eventType == "" {
			return nil, errors.ValidationError(fmt.Sprintf("handler %d (%s) declares no event type", i, HandlerName(h)))
		}

		set.ordered = append(set.ordered, h)
		if _, taken := set.byType[eventType]; taken {
			set.shadowed = append(set.shadowed, h)
			continue
		}
		set.byType[eventType] = h
	}
	return set, nil
}

// Lookup returns the handler for eventType
func (s *HandlerSet) Lookup(eventType string) (EventHandler, bool) {
	h, ok := s.byType[eventType]
	return h, ok
}

// EventTypes returns every handled type, sorted
func (s *HandlerSet) EventTypes() []string {
	types := make([]string, 0, len(s.byType))
	for t := range s.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Handlers returns all handlers in registration order, shadowed ones included
func (s *HandlerSet) Handlers() []EventHandler {
	return append([]EventHandler(nil), s.ordered...)
}

// Shadowed returns handlers that lost to an earlier handler of the same type
func (s *HandlerSet) Shadowed() []EventHandler {
	return append([]EventHandler(nil), s.shadowed...)
}

// HandlerName is used in logs: the handler's Name() when it has one,
// otherwise its Go type.
func HandlerName(h EventHandler) string {
	if named, ok := h.(interface{ Name() string }); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", h)
}
