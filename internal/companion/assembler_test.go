package companion

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"morvo/internal/store"
)

func sampleBundle() Bundle {
	return Bundle{
		Profile:   &store.Profile{ID: "u1", FullName: "ليلى"},
		Campaigns: []store.Campaign{{Name: "a"}, {Name: "b"}},
		Analytics: []store.Analytics{{Metric: "ctr"}},
		Memories: []store.Memory{
			{Type: "preference", Content: json.RawMessage(`{"tone":"formal","channel":"instagram"}`)},
			{Type: "goal", Content: json.RawMessage(`{"target": 1000, "kpi": "leads"}`)},
		},
		History: []store.Message{
			{ID: 1, Role: "user", Content: "q1"},
			{ID: 2, Role: "assistant", Content: "a1"},
		},
	}
}

func TestAssembleLayout(t *testing.T) {
	p := Assemble("TEMPLATE", sampleBundle(), "q2")

	if len(p.Segments) != 4 {
		t.Fatalf("expected 4 segments, got %d", len(p.Segments))
	}
	roles := []string{"system", "user", "assistant", "user"}
	for i, s := range p.Segments {
		if s.Role != roles[i] {
			t.Fatalf("segment %d: expected %s, got %s", i, roles[i], s.Role)
		}
	}
	if p.Segments[3].Content != "q2" {
		t.Fatalf("last segment should be the new message, got %q", p.Segments[3].Content)
	}

	want := "TEMPLATE\n\n" +
		"معلومات سابقة عن المستخدم:\n" +
		`preference: {"channel":"instagram","tone":"formal"}` + "\n" +
		`goal: {"kpi":"leads","target":1000}` + "\n\n" +
		"سياق العمل:\n" +
		"العميل: ليلى\nالحملات النشطة: 2\nنقاط البيانات: 1"
	if p.Segments[0].Content != want {
		t.Fatalf("unexpected system segment:\n%s\nwant:\n%s", p.Segments[0].Content, want)
	}
}

func TestAssembleWithoutMemories(t *testing.T) {
	p := Assemble("T", Bundle{}, "hello")

	if len(p.Segments) != 2 {
		t.Fatalf("expected system + user, got %d", len(p.Segments))
	}
	if strings.Contains(p.Segments[0].Content, "معلومات سابقة") {
		t.Fatal("memory header rendered without memories")
	}
	if p.Summary != "لا توجد بيانات إضافية متاحة" {
		t.Fatalf("unexpected empty summary %q", p.Summary)
	}
}

func TestSummarizeUnnamedProfile(t *testing.T) {
	got := Summarize(Bundle{Profile: &store.Profile{ID: "u1"}})
	if got != "العميل: غير محدد" {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestAssembleDeterministic(t *testing.T) {
	b := sampleBundle()
	first := Assemble("T", b, "m")
	for i := 0; i < 20; i++ {
		if next := Assemble("T", b, "m"); !reflect.DeepEqual(first, next) {
			t.Fatalf("run %d differs", i)
		}
	}
}

func TestAssembleDeterministicFromStore(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	st.SaveProfile(ctx, store.Profile{ID: "u1", FullName: "نورة"})
	st.SaveMemory(ctx, store.Memory{UserID: "u1", Type: "goal", Content: json.RawMessage(`{"z":1,"a":[2,1]}`), Importance: 2, UpdatedAt: base})
	st.SaveMemory(ctx, store.Memory{UserID: "u1", Type: "audience", Content: json.RawMessage(`{"age":"25-34"}`), Importance: 2, UpdatedAt: base})
	conv, _ := st.CreateConversation(ctx, "u1", store.ConversationMeta{})
	st.AppendMessage(ctx, conv, "user", "q")
	st.AppendMessage(ctx, conv, "assistant", "a")

	loader := NewLoader(st, Limits{Memories: 5, History: 10, Campaigns: 20, Analytics: 5}, time.Second)
	first := Assemble("T", loader.Load(ctx, "u1", conv), "m")
	loader.Wait()
	second := Assemble("T", loader.Load(ctx, "u1", conv), "m")
	loader.Wait()

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("assembled prompts differ:\n%+v\n%+v", first, second)
	}
}

func TestLoaderBounds(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		st.SaveMemory(ctx, store.Memory{UserID: "u1", Type: "m", Importance: float64(i)})
	}
	conv, _ := st.CreateConversation(ctx, "u1", store.ConversationMeta{})
	for i := 0; i < 15; i++ {
		st.AppendMessage(ctx, conv, "user", "x")
	}

	loader := NewLoader(st, Limits{Memories: 5, History: 10, Campaigns: 20, Analytics: 5}, time.Second)
	b := loader.Load(ctx, "u1", conv)
	loader.Wait()

	if len(b.Memories) != 5 || b.Memories[0].Importance != 7 {
		t.Fatalf("unexpected memories %+v", b.Memories)
	}
	if len(b.History) != 10 {
		t.Fatalf("expected 10 history messages, got %d", len(b.History))
	}
	if b.Profile != nil {
		t.Fatal("missing profile should be nil")
	}
}

func TestLoaderAbsorbsReadFailures(t *testing.T) {
	st := newTestStore(t)
	st.Close()

	loader := NewLoader(st, Limits{Memories: 5, History: 10, Campaigns: 20, Analytics: 5}, time.Second)
	b := loader.Load(context.Background(), "u1", "c1")
	loader.Wait()

	if b.Profile != nil || b.Campaigns != nil || b.Memories != nil || b.History != nil {
		t.Fatalf("expected empty bundle, got %+v", b)
	}
}
