// Package companion runs one chat turn: load the user's context, assemble
// the prompt, generate a reply and record the exchange.
package companion

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"morvo/internal/config"
	"morvo/internal/eventbus"
	"morvo/internal/intent"
	"morvo/internal/llm"
	"morvo/internal/security"
	"morvo/internal/store"
)

// PromptSource supplies the active system template.
type PromptSource interface {
	ActivePrompt(ctx context.Context, name string) (*store.Prompt, error)
}

// Store is everything the pipeline needs from the relational store.
type Store interface {
	ContextReader
	ConversationWriter
	PromptSource
}

// Deps are the long-lived collaborators of a Pipeline. They are built once
// by the hosting process and shared by all turns.
type Deps struct {
	Store     Store
	Provider  llm.Provider
	Bus       *eventbus.Bus       // optional
	Sanitizer *security.Sanitizer // optional
	Config    config.CompanionConfig

	Model           string
	DefaultTemplate string
	StoreTimeout    time.Duration
	GenerateTimeout time.Duration
}

// Request is one inbound chat message.
type Request struct {
	UserID         string
	Message        string
	ConversationID string
	BusinessType   string
	Language       string
}

// Response is what the caller gets back for a valid request.
type Response struct {
	Reply          string
	ConversationID string
	Saved          bool
	Intent         intent.Tag
	Fallback       bool
	Attempts       int
}

// ValidationError is returned for requests missing required input.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return "missing required field: " + e.Field
}

// Pipeline processes chat turns. It holds no per-request state.
type Pipeline struct {
	deps      Deps
	loader    *Loader
	generator *Generator
	recorder  *Recorder
}

// New wires a pipeline from its dependencies.
func New(deps Deps) *Pipeline {
	cfg := deps.Config
	if deps.DefaultTemplate == "" {
		deps.DefaultTemplate = config.DefaultSystemPrompt
	}
	if deps.GenerateTimeout <= 0 {
		deps.GenerateTimeout = 60 * time.Second
	}

	limits := Limits{
		Memories:  cfg.MemoryLimit,
		History:   cfg.HistoryLimit,
		Campaigns: cfg.CampaignLimit,
		Analytics: cfg.AnalyticsLimit,
	}
	params := Params{
		Model:            deps.Model,
		MaxTokens:        cfg.MaxTokens,
		Temperature:      cfg.Temperature,
		TopP:             cfg.TopP,
		FrequencyPenalty: cfg.FrequencyPenalty,
		PresencePenalty:  cfg.PresencePenalty,
	}

	return &Pipeline{
		deps:      deps,
		loader:    NewLoader(deps.Store, limits, deps.StoreTimeout),
		generator: NewGenerator(deps.Provider, params, deps.GenerateTimeout, cfg.FallbackReply),
		recorder:  NewRecorder(deps.Store, deps.StoreTimeout),
	}
}

// Handle runs one turn. The only error it returns is *ValidationError, in
// which case nothing was read or written.
func (p *Pipeline) Handle(ctx context.Context, req Request) (Response, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.ConversationID = strings.TrimSpace(req.ConversationID)
	if req.UserID == "" {
		return Response{}, &ValidationError{Field: "user_id"}
	}
	if strings.TrimSpace(req.Message) == "" {
		return Response{}, &ValidationError{Field: "message"}
	}

	p.publish(eventbus.TopicTurnReceived, req, "received", "")

	req.ConversationID = p.recorder.Claim(ctx, req.UserID, req.ConversationID)

	bundle := p.loader.Load(ctx, req.UserID, req.ConversationID)
	p.publish(eventbus.TopicContextLoaded, req, "context", bundleStats(bundle))

	prompt := Assemble(p.template(ctx), bundle, req.Message)

	outbound := prompt
	var redaction *security.Redaction
	if p.deps.Sanitizer.Enabled() {
		redaction = p.deps.Sanitizer.NewTurn()
		outbound = prompt.Map(redaction.Sanitize)
	}

	p.publish(eventbus.TopicGenerationRequest, req, "generate", p.deps.Provider.Name())
	result := p.generator.Generate(ctx, outbound)
	if redaction != nil && !result.Fallback {
		result.Text = redaction.Restore(result.Text)
	}
	if result.Fallback {
		p.publish(eventbus.TopicGenerationFallback, req, "fallback", errString(result.Err))
	} else {
		p.publish(eventbus.TopicGenerationResponse, req, "generated", "")
	}

	// Persistence outlives a caller that has already gone away.
	recordCtx := context.WithoutCancel(ctx)
	receipt := p.recorder.Record(recordCtx, Turn{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Meta:           store.ConversationMeta{BusinessType: req.BusinessType, Language: req.Language},
		UserText:       req.Message,
		ReplyText:      result.Text,
	})
	req.ConversationID = receipt.ConversationID
	if receipt.Saved {
		p.publish(eventbus.TopicTurnPersisted, req, "persisted", "")
	} else {
		p.publish(eventbus.TopicError, req, "record", errString(receipt.Err))
	}

	return Response{
		Reply:          result.Text,
		ConversationID: receipt.ConversationID,
		Saved:          receipt.Saved,
		Intent:         intent.Classify(req.Message),
		Fallback:       result.Fallback,
		Attempts:       result.Attempts,
	}, nil
}

// Close waits for background bookkeeping started by earlier turns.
func (p *Pipeline) Close() {
	p.loader.Wait()
}

// History returns the stored messages of a conversation, oldest first.
func (p *Pipeline) History(ctx context.Context, conversationID string, limit int) ([]store.Message, error) {
	return p.deps.Store.RecentMessages(ctx, conversationID, limit)
}

// ProviderName reports the generation backend in use.
func (p *Pipeline) ProviderName() string {
	return p.deps.Provider.Name()
}

func (p *Pipeline) template(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, p.loader.readTimeout)
	defer cancel()

	tmpl, err := p.deps.Store.ActivePrompt(ctx, p.deps.Config.PromptName)
	if err != nil {
		log.Printf("[companion] load prompt %q: %v", p.deps.Config.PromptName, err)
	}
	if tmpl == nil || strings.TrimSpace(tmpl.Content) == "" {
		return p.deps.DefaultTemplate
	}
	return tmpl.Content
}

func (p *Pipeline) publish(topic eventbus.Topic, req Request, stage, detail string) {
	if p.deps.Bus == nil {
		return
	}
	p.deps.Bus.Publish(topic, eventbus.TurnEvent{
		UserID:         req.UserID,
		ConversationID: req.ConversationID,
		Stage:          stage,
		Detail:         detail,
	})
}

func bundleStats(b Bundle) string {
	return fmt.Sprintf("memories=%d history=%d campaigns=%d analytics=%d",
		len(b.Memories), len(b.History), len(b.Campaigns), len(b.Analytics))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
