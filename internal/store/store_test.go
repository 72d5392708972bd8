package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	s, err := Open(DriverModernc, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("postgres", filepath.Join(t.TempDir(), "x.db"))
	var storeErr *Error
	if !errors.As(err, &storeErr) || storeErr.Op != "open" {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestOpenMattnDriver(t *testing.T) {
	s, err := Open(DriverMattn, filepath.Join(t.TempDir(), "cgo.db"))
	if err != nil {
		// built without cgo
		t.Skipf("sqlite3 driver unavailable: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	id, err := s.CreateConversation(ctx, "u1", ConversationMeta{Language: "arabic"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AppendMessage(ctx, id, "user", "مرحبا"); err != nil {
		t.Fatal(err)
	}
	msgs, err := s.RecentMessages(ctx, id, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].Content != "مرحبا" {
		t.Fatalf("unexpected messages %+v", msgs)
	}
}

func TestRecentMessagesChronological(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateConversation(ctx, "u1", ConversationMeta{})
	if err != nil {
		t.Fatal(err)
	}
	contents := []string{"q1", "a1", "q2", "a2", "q3", "a3"}
	for i, c := range contents {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		if _, err := s.AppendMessage(ctx, id, role, c); err != nil {
			t.Fatal(err)
		}
	}

	last, err := s.RecentMessages(ctx, id, 4)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"q2", "a2", "q3", "a3"}
	if len(last) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(last))
	}
	for i, m := range last {
		if m.Content != want[i] {
			t.Fatalf("position %d: expected %q, got %q", i, want[i], m.Content)
		}
	}

	all, err := s.RecentMessages(ctx, id, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(contents) {
		t.Fatalf("expected full history, got %d", len(all))
	}
}

func TestIsolatedConversations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c1, _ := s.CreateConversation(ctx, "u1", ConversationMeta{})
	c2, _ := s.CreateConversation(ctx, "u1", ConversationMeta{})
	s.AppendMessage(ctx, c1, "user", "one")
	s.AppendMessage(ctx, c2, "user", "two")

	h1, _ := s.RecentMessages(ctx, c1, 10)
	h2, _ := s.RecentMessages(ctx, c2, 10)
	if len(h1) != 1 || h1[0].Content != "one" {
		t.Fatal("conversation 1 history incorrect")
	}
	if len(h2) != 1 || h2[0].Content != "two" {
		t.Fatal("conversation 2 history incorrect")
	}
}

func TestEnsureConversationCreatesOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.EnsureConversation(ctx, "conv-1", "u1", ConversationMeta{BusinessType: "retail"})
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("expected first ensure to create")
	}
	created, err = s.EnsureConversation(ctx, "conv-1", "u1", ConversationMeta{})
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("expected second ensure to be a no-op")
	}

	n, err := s.CountConversations(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 conversation, got %d", n)
	}

	conv, err := s.GetConversation(ctx, "conv-1")
	if err != nil {
		t.Fatal(err)
	}
	if conv.Metadata.BusinessType != "retail" {
		t.Fatalf("metadata overwritten: %+v", conv.Metadata)
	}
}

func TestTouchConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	id, _ := s.CreateConversation(ctx, "u1", ConversationMeta{})

	s.now = func() time.Time { return base.Add(time.Hour) }
	if err := s.TouchConversation(ctx, id); err != nil {
		t.Fatal(err)
	}

	conv, err := s.GetConversation(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !conv.CreatedAt.Equal(base) {
		t.Fatalf("created_at changed: %v", conv.CreatedAt)
	}
	if !conv.LastMessageAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("last_message_at not updated: %v", conv.LastMessageAt)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetConversation(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetConversationRejectsCorruptMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id, err := s.CreateConversation(ctx, "u1", ConversationMeta{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.db.Exec(`UPDATE conversations SET metadata = '{broken' WHERE id = ?`, id); err != nil {
		t.Fatal(err)
	}

	_, err = s.GetConversation(ctx, id)
	var storeErr *Error
	if !errors.As(err, &storeErr) || storeErr.Op != "decode" {
		t.Fatalf("expected decode error, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("corrupt metadata must not look like a missing conversation")
	}
}

func TestSchemaVersionRecorded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "versioned.db")
	s, err := Open(DriverModernc, path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	v, err := s.SchemaVersion(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != len(migrations) {
		t.Fatalf("expected version %d, got %d", len(migrations), v)
	}

	// pretend the database predates the last migration
	if _, err := s.db.Exec(`DELETE FROM schema_version`); err != nil {
		t.Fatal(err)
	}
	if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, len(migrations)-1); err != nil {
		t.Fatal(err)
	}
	s.Close()

	for i := 0; i < 2; i++ {
		s, err = Open(DriverModernc, path)
		if err != nil {
			t.Fatalf("reopen %d: %v", i, err)
		}
		v, err = s.SchemaVersion(ctx)
		s.Close()
		if err != nil {
			t.Fatal(err)
		}
		if v != len(migrations) {
			t.Fatalf("reopen %d: expected version %d, got %d", i, len(migrations), v)
		}
	}
}

func TestTopMemoriesOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, imp := range []float64{1, 5, 3} {
		_, err := s.SaveMemory(ctx, Memory{
			UserID:     "u1",
			Type:       "preference",
			Content:    json.RawMessage(`{"rank":1}`),
			Importance: imp,
			UpdatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.TopMemories(ctx, "u1", 5)
	if err != nil {
		t.Fatal(err)
	}
	assertImportance(t, all, []float64{5, 3, 1})

	top2, err := s.TopMemories(ctx, "u1", 2)
	if err != nil {
		t.Fatal(err)
	}
	assertImportance(t, top2, []float64{5, 3})
}

func TestTopMemoriesRecencyTiebreak(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	older, _ := s.SaveMemory(ctx, Memory{UserID: "u1", Type: "a", Importance: 2, UpdatedAt: base.Add(time.Hour)})
	newer, _ := s.SaveMemory(ctx, Memory{UserID: "u1", Type: "b", Importance: 2, UpdatedAt: base.Add(2 * time.Hour)})

	got, err := s.TopMemories(ctx, "u1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != newer || got[1].ID != older {
		t.Fatalf("expected most recently updated first, got %+v", got)
	}
}

func TestTouchMemories(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, _ := s.SaveMemory(ctx, Memory{UserID: "u1", Type: "goal", Importance: 1})
	if err := s.TouchMemories(ctx, []int64{id}); err != nil {
		t.Fatal(err)
	}
	if err := s.TouchMemories(ctx, []int64{id}); err != nil {
		t.Fatal(err)
	}

	got, _ := s.TopMemories(ctx, "u1", 1)
	if got[0].AccessCount != 2 {
		t.Fatalf("expected access count 2, got %d", got[0].AccessCount)
	}
	if got[0].LastAccessedAt.IsZero() {
		t.Fatal("expected last_accessed_at to be set")
	}
}

func TestSaveMemoryRejectsInvalidJSON(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SaveMemory(context.Background(), Memory{UserID: "u1", Type: "x", Content: json.RawMessage(`{`)})
	if err == nil {
		t.Fatal("expected error for invalid content")
	}
}

func TestSavePromptSingleActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if p, err := s.ActivePrompt(ctx, "companion"); err != nil || p != nil {
		t.Fatalf("expected no active prompt, got %+v %v", p, err)
	}

	if _, err := s.SavePrompt(ctx, "companion", "v1"); err != nil {
		t.Fatal(err)
	}
	p2, err := s.SavePrompt(ctx, "companion", "v2")
	if err != nil {
		t.Fatal(err)
	}
	if p2.Version != 2 {
		t.Fatalf("expected version 2, got %d", p2.Version)
	}

	active, err := s.ActivePrompt(ctx, "companion")
	if err != nil {
		t.Fatal(err)
	}
	if active == nil || active.Content != "v2" {
		t.Fatalf("expected v2 active, got %+v", active)
	}

	var n int
	s.db.QueryRow(`SELECT COUNT(*) FROM prompts WHERE name = ? AND is_active = 1`, "companion").Scan(&n)
	if n != 1 {
		t.Fatalf("expected exactly one active version, got %d", n)
	}
}

func TestProfileCampaignsAnalytics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetProfile(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SaveProfile(ctx, Profile{ID: "u1", FullName: "سارة", BusinessType: "ecommerce"}); err != nil {
		t.Fatal(err)
	}
	p, err := s.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if p.FullName != "سارة" {
		t.Fatalf("unexpected profile %+v", p)
	}

	for _, name := range []string{"رمضان", "الصيف", "العودة للمدارس"} {
		if _, err := s.SaveCampaign(ctx, Campaign{UserID: "u1", Name: name, Budget: 1000}); err != nil {
			t.Fatal(err)
		}
	}
	campaigns, err := s.ListCampaigns(ctx, "u1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(campaigns) != 2 || campaigns[0].Name != "العودة للمدارس" {
		t.Fatalf("expected newest two campaigns, got %+v", campaigns)
	}
	if campaigns[0].Status != "active" {
		t.Fatalf("expected default status, got %q", campaigns[0].Status)
	}

	s.SaveAnalytics(ctx, Analytics{UserID: "u1", Metric: "ctr", Value: 0.031})
	rows, err := s.ListAnalytics(ctx, "u1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Metric != "ctr" {
		t.Fatalf("unexpected analytics %+v", rows)
	}

	other, _ := s.ListCampaigns(ctx, "u2", 20)
	if len(other) != 0 {
		t.Fatal("campaigns leaked across users")
	}
}

func assertImportance(t *testing.T, got []Memory, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d memories, got %d", len(want), len(got))
	}
	for i, m := range got {
		if m.Importance != want[i] {
			t.Fatalf("position %d: expected importance %v, got %v", i, want[i], m.Importance)
		}
	}
}
