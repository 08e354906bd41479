// Package notify emits participant-facing notifications. Delivery mechanics
// live behind the Notifier boundary; the core fires and forgets.
package notify

import (
	"context"
	"database/sql"
	"log"
	"time"

	"clubrun/internal/events"
)

// Notification audiences.
const (
	AudienceCurator = "curator"
	AudienceRunner  = "runner"
)

// Notifier delivers a payload to one side of a mission. Errors are logged by
// implementations, never returned to the worker.
type Notifier interface {
	Notify(ctx context.Context, audience, recipientID, kind string, payload map[string]any)
}

// EventNotifier records notifications in the event log, where the webhook
// forwarder picks them up for outbound delivery.
type EventNotifier struct {
	Events events.Writer
}

func NewEventNotifier(db *sql.DB, now func() time.Time) EventNotifier {
	return EventNotifier{Events: events.Writer{DB: db, Now: now}}
}

func (n EventNotifier) Notify(ctx context.Context, audience, recipientID, kind string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["audience"] = audience
	err := n.Events.Append(ctx, nil, "notify."+kind, "notification", recipientID, "system", events.EventPayload(payload))
	if err != nil {
		log.Printf("notify: append %s for %s failed: %v", kind, recipientID, err)
	}
}

// NopNotifier drops everything. Used by tests and CLI paths that do not care
// about delivery.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string, string, map[string]any) {}
