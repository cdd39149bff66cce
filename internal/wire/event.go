package wire

import (
	"encoding/json"
)

// EventType tags an inbound frame.
type EventType string

const (
	EventResponse EventType = "response"
	EventThinking EventType = "thinking"
	EventSystem   EventType = "system"
	EventError    EventType = "error"
	EventLoading  EventType = "loading"
)

// Event is a decoded inbound frame.
type Event struct {
	Type    EventType
	Content string
	Model   string // response only
	Loading bool   // loading only

	// Legacy is set when the payload did not match the frame schema. Such
	// payloads are delivered as a response whose Content is the raw text.
	Legacy bool
	// Unknown is set for well-formed frames with a type this client does
	// not handle. They carry no content and should be ignored.
	Unknown bool
}

type inboundFrame struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

type contentData struct {
	Content *string `json:"content"`
	Model   string  `json:"model"`
}

type loadingData struct {
	IsLoading bool `json:"is_loading"`
}

// Decode parses one inbound frame. It never fails: payloads that are not a
// valid frame come back as a legacy response carrying the raw text.
func Decode(raw []byte) Event {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Type == "" {
		return legacy(raw)
	}

	switch frame.Type {
	case EventResponse, EventThinking, EventSystem, EventError:
		var d contentData
		if len(frame.Data) == 0 || json.Unmarshal(frame.Data, &d) != nil || d.Content == nil {
			return legacy(raw)
		}
		ev := Event{Type: frame.Type, Content: *d.Content}
		if frame.Type == EventResponse {
			ev.Model = d.Model
		}
		return ev
	case EventLoading:
		var d loadingData
		if len(frame.Data) == 0 || json.Unmarshal(frame.Data, &d) != nil {
			return legacy(raw)
		}
		return Event{Type: EventLoading, Loading: d.IsLoading}
	default:
		return Event{Type: frame.Type, Unknown: true}
	}
}

func legacy(raw []byte) Event {
	return Event{Type: EventResponse, Content: string(raw), Legacy: true}
}
