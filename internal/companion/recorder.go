package companion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"morvo/internal/store"
)

const (
	defaultBusinessType = "unknown"
	defaultLanguage     = "arabic"
)

// ConversationWriter is the conversation side of the relational store.
type ConversationWriter interface {
	CreateConversation(ctx context.Context, userID string, meta store.ConversationMeta) (string, error)
	EnsureConversation(ctx context.Context, id, userID string, meta store.ConversationMeta) (bool, error)
	AppendMessage(ctx context.Context, conversationID, role, content string) (int64, error)
	TouchConversation(ctx context.Context, id string) error
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
}

// Turn is one exchange to persist.
type Turn struct {
	UserID         string
	ConversationID string
	Meta           store.ConversationMeta
	UserText       string
	ReplyText      string
}

// Receipt reports what Record managed to persist. ConversationID is empty
// only when the conversation could not be created.
type Receipt struct {
	ConversationID string
	Saved          bool
	Err            error
}

// Recorder appends turns to their conversation.
type Recorder struct {
	writer  ConversationWriter
	timeout time.Duration
}

func NewRecorder(writer ConversationWriter, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recorder{writer: writer, timeout: timeout}
}

// Claim returns conversationID if userID may continue it: it is unknown or
// owned by userID. Otherwise it returns "" and the turn starts a new
// conversation.
func (r *Recorder) Claim(ctx context.Context, userID, conversationID string) string {
	if conversationID == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	conv, err := r.writer.GetConversation(ctx, conversationID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return conversationID
	case err != nil:
		log.Printf("[companion] check conversation %s: %v, starting a new one", conversationID, err)
		return ""
	case conv.UserID != userID:
		log.Printf("[companion] conversation %s belongs to another user, starting a new one", conversationID)
		return ""
	}
	return conversationID
}

// OpenConversation returns the id the turn will be stored under, creating
// the conversation when needed. A supplied id that does not exist yet is
// created under that id. An id owned by another user is never written to;
// a new conversation is created instead.
func (r *Recorder) OpenConversation(ctx context.Context, userID, conversationID string, meta store.ConversationMeta) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	meta = withMetaDefaults(meta)
	if conversationID == "" {
		return r.writer.CreateConversation(ctx, userID, meta)
	}
	created, err := r.writer.EnsureConversation(ctx, conversationID, userID, meta)
	if err != nil {
		return "", err
	}
	if created {
		return conversationID, nil
	}
	conv, err := r.writer.GetConversation(ctx, conversationID)
	if err != nil {
		return "", err
	}
	if conv.UserID != userID {
		log.Printf("[companion] conversation %s belongs to another user, starting a new one", conversationID)
		return r.writer.CreateConversation(ctx, userID, meta)
	}
	return conversationID, nil
}

// Record opens the conversation, stores the user message, then the reply,
// then touches the conversation. Failures are logged and reported in the receipt.
func (r *Recorder) Record(ctx context.Context, t Turn) Receipt {
	rc := Receipt{ConversationID: t.ConversationID}

	id, err := r.OpenConversation(ctx, t.UserID, t.ConversationID, t.Meta)
	if err != nil {
		return r.failed(rc, "open conversation", err)
	}
	rc.ConversationID = id

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.writer.AppendMessage(ctx, rc.ConversationID, "user", t.UserText); err != nil {
		return r.failed(rc, "append user message", err)
	}
	if _, err := r.writer.AppendMessage(ctx, rc.ConversationID, "assistant", t.ReplyText); err != nil {
		return r.failed(rc, "append assistant message", err)
	}
	if err := r.writer.TouchConversation(ctx, rc.ConversationID); err != nil {
		return r.failed(rc, "touch conversation", err)
	}

	rc.Saved = true
	return rc
}

func (r *Recorder) failed(rc Receipt, step string, err error) Receipt {
	log.Printf("[companion] %s (conversation=%q): %v", step, rc.ConversationID, err)
	rc.Err = fmt.Errorf("%s: %w", step, err)
	return rc
}

func withMetaDefaults(meta store.ConversationMeta) store.ConversationMeta {
	if meta.BusinessType == "" {
		meta.BusinessType = defaultBusinessType
	}
	if meta.Language == "" {
		meta.Language = defaultLanguage
	}
	return meta
}
