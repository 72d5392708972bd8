package store

import (
	"encoding/json"
	"time"
)

// Profile is the read-only user record.
type Profile struct {
	ID           string
	FullName     string
	BusinessType string
	CreatedAt    time.Time
}

// ConversationMeta is the JSON metadata stored with a conversation.
type ConversationMeta struct {
	BusinessType string `json:"business_type"`
	Language     string `json:"language"`
}

// Conversation groups the messages of one user session.
type Conversation struct {
	ID            string
	UserID        string
	CreatedAt     time.Time
	LastMessageAt time.Time
	Metadata      ConversationMeta
}

// Message is one append-only conversation entry. ID is the ordering key.
type Message struct {
	ID             int64
	ConversationID string
	Role           string
	Content        string
	CreatedAt      time.Time
}

// Memory is a scored fact about a user.
type Memory struct {
	ID             int64
	UserID         string
	Type           string
	Content        json.RawMessage
	Importance     float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastAccessedAt time.Time
	AccessCount    int
}

// Prompt is one version of a named system template.
type Prompt struct {
	ID        int64
	Name      string
	Version   int
	Content   string
	Active    bool
	CreatedAt time.Time
}

type Campaign struct {
	ID        int64
	UserID    string
	Name      string
	Status    string
	Budget    float64
	CreatedAt time.Time
}

type Analytics struct {
	ID        int64
	UserID    string
	Metric    string
	Value     float64
	CreatedAt time.Time
}

// timeLayout is fixed width so that text comparison orders chronologically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
