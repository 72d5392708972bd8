package channel

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"morvo/internal/companion"
	"morvo/internal/eventbus"
	"morvo/internal/security"
)

// Responder answers one chat turn.
type Responder interface {
	Handle(ctx context.Context, req companion.Request) (companion.Response, error)
}

// Manager manages the lifecycle of all channels and routes their messages
// to the companion. It remembers the conversation of every chat so that
// follow-up messages continue the same history.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Channel
	bus      *eventbus.Bus

	sessionsMu sync.Mutex
	sessions   map[string]string // channel/chat → conversation id

	errorReply string
	auth       *security.Authorizer
}

// NewManager creates a new channel manager. bus may be nil.
func NewManager(bus *eventbus.Bus, errorReply string) *Manager {
	return &Manager{
		channels:   make(map[string]Channel),
		sessions:   make(map[string]string),
		bus:        bus,
		errorReply: errorReply,
	}
}

// Authorize restricts which users the manager answers. Messages from other
// users are dropped without a reply.
func (m *Manager) Authorize(a *security.Authorizer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auth = a
}

// Register adds a channel to the manager.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
}

// Route sends inbound messages of every registered channel to r. Call it
// before StartAll.
func (m *Manager) Route(ctx context.Context, r Responder) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ch := range m.channels {
		ch.OnMessage(func(msg InboundMessage) {
			m.handleMessage(ctx, r, msg)
		})
	}
}

// StartAll starts all registered channels.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			log.Printf("[channel] failed to start %s: %v", name, err)
			m.status(name, "failed")
			return fmt.Errorf("start %s: %w", name, err)
		}
		log.Printf("[channel] started %s", name)
		m.status(name, "running")
	}
	return nil
}

// StopAll stops all running channels.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, ch := range m.channels {
		if ch.IsRunning() {
			if err := ch.Stop(ctx); err != nil {
				log.Printf("[channel] failed to stop %s: %v", name, err)
			} else {
				log.Printf("[channel] stopped %s", name)
				m.status(name, "stopped")
			}
		}
	}
}

// Get returns a channel by name.
func (m *Manager) Get(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// List returns all channel names and their running status.
func (m *Manager) List() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]bool, len(m.channels))
	for name, ch := range m.channels {
		result[name] = ch.IsRunning()
	}
	return result
}

// Names returns the registered channel names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Conversation returns the conversation id bound to a sender in a chat, if any.
func (m *Manager) Conversation(channelName, chatID, senderID string) string {
	m.sessionsMu.Lock()
	defer m.sessionsMu.Unlock()
	return m.sessions[sessionKey(InboundMessage{ChannelName: channelName, ChatID: chatID, SenderID: senderID})]
}

// handleMessage runs one turn and sends the reply back through the
// originating channel.
func (m *Manager) handleMessage(ctx context.Context, r Responder, msg InboundMessage) {
	log.Printf("[channel] message from %s (%s): %s", msg.SenderName, msg.ChannelName, truncate(msg.Text, 100))

	m.mu.RLock()
	auth := m.auth
	m.mu.RUnlock()
	if !auth.IsAllowed(userID(msg)) {
		log.Printf("[channel] dropped message from unauthorized user %s", userID(msg))
		return
	}

	reply := m.respond(ctx, r, msg)

	ch, ok := m.Get(msg.ChannelName)
	if !ok {
		log.Printf("[channel] channel %s not found", msg.ChannelName)
		return
	}
	if err := ch.Send(ctx, OutboundMessage{ChatID: msg.ChatID, Text: reply}); err != nil {
		log.Printf("[channel] error sending response: %v", err)
	}
}

func (m *Manager) respond(ctx context.Context, r Responder, msg InboundMessage) (reply string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[channel] panic handling %s message: %v", msg.ChannelName, rec)
			reply = m.errorReply
		}
	}()

	key := sessionKey(msg)
	m.sessionsMu.Lock()
	convID := m.sessions[key]
	m.sessionsMu.Unlock()

	resp, err := r.Handle(ctx, companion.Request{
		UserID:         userID(msg),
		Message:        msg.Text,
		ConversationID: convID,
	})
	if err != nil {
		log.Printf("[channel] error processing message: %v", err)
		return m.errorReply
	}

	if resp.ConversationID != "" {
		m.sessionsMu.Lock()
		m.sessions[key] = resp.ConversationID
		m.sessionsMu.Unlock()
	}
	return resp.Reply
}

func (m *Manager) status(name, status string) {
	if m.bus != nil {
		m.bus.Publish(eventbus.TopicStatusChange, eventbus.StatusEvent{Component: "channel/" + name, Status: status})
	}
}

func truncate(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes]) + "..."
}
