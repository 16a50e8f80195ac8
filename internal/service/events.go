package service

import "encoding/json"

// Workflow event names pushed to connected clients.
const (
	EventRequestCreated  = "request.created"
	EventRequestUpdated  = "request.updated"
	EventLevelApproved   = "request.level_approved"
	EventRequestApproved = "request.approved"
	EventRequestRejected = "request.rejected"
	EventReceiptUploaded = "request.receipt_uploaded"
)

// EventPublisher pushes workflow events to connected clients. The websocket
// hub implements it; services treat a nil publisher as a no-op.
type EventPublisher interface {
	PublishEvent(event string, payload interface{})
}

// publishEvent is the nil-safe helper services use to emit events.
func publishEvent(p EventPublisher, event string, payload interface{}) {
	if p == nil {
		return
	}
	p.PublishEvent(event, payload)
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
