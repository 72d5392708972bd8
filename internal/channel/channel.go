package channel

import (
	"context"
	"time"
)

// InboundMessage is a message received from a channel.
type InboundMessage struct {
	ChannelName string
	SenderID    string
	SenderName  string
	ChatID      string
	Text        string
	Timestamp   time.Time
}

// OutboundMessage is a message to send through a channel.
type OutboundMessage struct {
	ChatID  string
	Text    string
	ReplyTo string // optional message ID to reply to
}

// Channel is the interface for messaging integrations.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg OutboundMessage) error
	OnMessage(handler func(InboundMessage))
	IsRunning() bool
}

// userID namespaces a sender id by channel so that ids from different
// networks never collide in the store.
func userID(msg InboundMessage) string {
	return msg.ChannelName + ":" + msg.SenderID
}

// sessionKey binds a conversation to one sender in one chat, so members of
// a group chat never continue each other's conversations.
func sessionKey(msg InboundMessage) string {
	return msg.ChannelName + "/" + msg.ChatID + "/" + msg.SenderID
}
