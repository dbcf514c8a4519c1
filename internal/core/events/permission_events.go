package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePermissionCreated = "permission.created"
)

type PermissionCreatedEvent struct {
	BaseEvent
	PermissionID int64  `json:"permission_id"`
	UUID         string `json:"uuid"`
	Name         string `json:"name"`
	CreatedBy    string `json:"created_by"`
	TraceID      string `json:"trace_id,omitempty"`
}

func NewPermissionCreatedEvent(permissionID int64, permissionUUID, name, createdBy, traceID string) *PermissionCreatedEvent {
	return &PermissionCreatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePermissionCreated,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"permission_id": permissionID,
				"uuid":          permissionUUID,
				"name":          name,
				"created_by":    createdBy,
				"trace_id":      traceID,
			},
		},
		PermissionID: permissionID,
		UUID:         permissionUUID,
		Name:         name,
		CreatedBy:    createdBy,
		TraceID:      traceID,
	}
}

// NewGenericEvent builds an event of an arbitrary type. Used by the CLI to
// push ad-hoc events through the bus.
func NewGenericEvent(eventType string, data map[string]interface{}) BaseEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}
