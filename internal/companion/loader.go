package companion

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"morvo/internal/store"
)

// ContextReader is the read side of the relational store.
type ContextReader interface {
	GetProfile(ctx context.Context, userID string) (*store.Profile, error)
	ListCampaigns(ctx context.Context, userID string, limit int) ([]store.Campaign, error)
	ListAnalytics(ctx context.Context, userID string, limit int) ([]store.Analytics, error)
	TopMemories(ctx context.Context, userID string, k int) ([]store.Memory, error)
	TouchMemories(ctx context.Context, ids []int64) error
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]store.Message, error)
}

// Bundle is everything retrieved for one turn. Absent data is nil, never
// an error.
type Bundle struct {
	Profile   *store.Profile
	Campaigns []store.Campaign
	Analytics []store.Analytics
	Memories  []store.Memory
	History   []store.Message
}

// Limits bounds every ordered read of the loader.
type Limits struct {
	Memories  int
	History   int
	Campaigns int
	Analytics int
}

// Loader reads the context bundle for a turn.
type Loader struct {
	reader      ContextReader
	limits      Limits
	readTimeout time.Duration

	touches sync.WaitGroup
}

// NewLoader creates a loader. readTimeout bounds each individual read and
// the detached memory bookkeeping.
func NewLoader(reader ContextReader, limits Limits, readTimeout time.Duration) *Loader {
	if readTimeout <= 0 {
		readTimeout = 5 * time.Second
	}
	return &Loader{reader: reader, limits: limits, readTimeout: readTimeout}
}

// Load runs each lookup independently. A failing lookup is logged and
// leaves its part of the bundle empty.
func (l *Loader) Load(ctx context.Context, userID, conversationID string) Bundle {
	var b Bundle

	l.read(ctx, "profile", func(ctx context.Context) error {
		p, err := l.reader.GetProfile(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		b.Profile = p
		return err
	})
	l.read(ctx, "campaigns", func(ctx context.Context) (err error) {
		b.Campaigns, err = l.reader.ListCampaigns(ctx, userID, l.limits.Campaigns)
		return err
	})
	l.read(ctx, "analytics", func(ctx context.Context) (err error) {
		b.Analytics, err = l.reader.ListAnalytics(ctx, userID, l.limits.Analytics)
		return err
	})
	l.read(ctx, "memories", func(ctx context.Context) (err error) {
		b.Memories, err = l.reader.TopMemories(ctx, userID, l.limits.Memories)
		return err
	})
	if conversationID != "" {
		l.read(ctx, "history", func(ctx context.Context) (err error) {
			b.History, err = l.reader.RecentMessages(ctx, conversationID, l.limits.History)
			return err
		})
	}

	if len(b.Memories) > 0 {
		l.touch(b.Memories)
	}
	return b
}

// Wait blocks until pending memory bookkeeping has finished.
func (l *Loader) Wait() {
	l.touches.Wait()
}

func (l *Loader) read(ctx context.Context, what string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, l.readTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Printf("[companion] load %s: %v", what, err)
	}
}

// touch updates access bookkeeping on a context detached from the request
// so that a finished request does not cancel it.
func (l *Loader) touch(memories []store.Memory) {
	ids := make([]int64, len(memories))
	for i, m := range memories {
		ids[i] = m.ID
	}

	l.touches.Add(1)
	go func() {
		defer l.touches.Done()
		ctx, cancel := context.WithTimeout(context.Background(), l.readTimeout)
		defer cancel()
		if err := l.reader.TouchMemories(ctx, ids); err != nil {
			log.Printf("[companion] touch memories: %v", err)
		}
	}()
}
