package eventbus

import "time"

// Topic represents an event topic.
type Topic string

const (
	TopicTurnReceived       Topic = "turn_received"
	TopicContextLoaded      Topic = "context_loaded"
	TopicGenerationRequest  Topic = "generation_request"
	TopicGenerationResponse Topic = "generation_response"
	TopicGenerationFallback Topic = "generation_fallback"
	TopicTurnPersisted      Topic = "turn_persisted"
	TopicError              Topic = "error"
	TopicStatusChange       Topic = "status_change"
)

// Event is a message passed through the event bus.
type Event struct {
	Topic     Topic
	Payload   any
	Timestamp time.Time
}

// Handler processes an event.
type Handler func(Event)

// TurnEvent is the payload of the per-turn pipeline topics.
type TurnEvent struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
	Stage          string `json:"stage"`
	Detail         string `json:"detail,omitempty"`
}

// StatusEvent reports a component changing state, e.g. a channel starting.
type StatusEvent struct {
	Component string `json:"component"`
	Status    string `json:"status"`
}
