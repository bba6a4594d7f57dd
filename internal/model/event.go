package model

// WebhookEvent is an inbound event delivered by the upstream webhook API.
// EventID is the identity used for de-duplication.
type WebhookEvent struct {
	EventID   string                 `json:"eventId"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}
