package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/softeno/permission-template/internal/core/events"
)

// Sender is satisfied by *Producer.
type Sender interface {
	Send(ctx context.Context, key string, msg Message) error
}

// RegisterEventHandlers forwards domain events from the in-process bus to
// the outbound topic.
func RegisterEventHandlers(bus *events.EventBus, sender Sender) {
	bus.Subscribe(events.EventTypePermissionCreated, PermissionCreatedHandler(sender))
}

func PermissionCreatedHandler(sender Sender) events.Handler {
	return func(ctx context.Context, event events.Event) error {
		created, ok := event.(*events.PermissionCreatedEvent)
		if !ok {
			return fmt.Errorf("unexpected event payload %T", event)
		}
		// the request context may already be gone when the bus runs us
		return sender.Send(context.WithoutCancel(ctx), created.UUID, Message{
			Content: fmt.Sprintf("CREATED_PERMISSION: %d", created.PermissionID),
			TraceID: created.TraceID,
		})
	}
}

// ForwardEventType relays any event of eventType as "<TYPE>: <event id>".
func ForwardEventType(bus *events.EventBus, sender Sender, eventType string) {
	label := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(eventType))
	bus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
		return sender.Send(context.WithoutCancel(ctx), event.EventID(), Message{
			Content: fmt.Sprintf("%s: %s", label, event.EventID()),
		})
	})
}
