// Package mqtt implements the status surface on an MQTT broker.
//
// A channel is a topic under a configured prefix. A message is the retained
// JSON document on that topic, identified by the message id it carries.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/door-monitor/internal/surface"
)

// DefaultTopicPrefix is the topic prefix used when none is configured.
const DefaultTopicPrefix = "door/status"

// Payload is the retained document published on a channel topic.
type Payload struct {
	Status StatusPayload `json:"status"`
}

// StatusPayload contains the rendered door status.
type StatusPayload struct {
	MessageID string `json:"message_id"`
	Title     string `json:"title"`
	State     string `json:"state"`
	Open      bool   `json:"open"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// FormatPayload creates the JSON payload for message id showing d.
func FormatPayload(id string, d surface.Display) ([]byte, error) {
	payload := Payload{
		Status: StatusPayload{
			MessageID: id,
			Title:     d.Title,
			State:     d.StateText(),
			Open:      d.Open,
			Text:      d.Text(),
			Timestamp: d.At.UTC().Format(time.RFC3339),
		},
	}
	return json.Marshal(payload)
}

// ParsePayload decodes a retained document.
func ParsePayload(b []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return Payload{}, fmt.Errorf("decode status payload: %w", err)
	}
	return p, nil
}

// Topic joins prefix and channel id.
func Topic(prefix, channelID string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + channelID
}

// validChannelID rejects ids that would not map to a single publishable topic.
func validChannelID(id string) bool {
	if id == "" {
		return false
	}
	return !strings.ContainsAny(id, "+#\x00")
}
