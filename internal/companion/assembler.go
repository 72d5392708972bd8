package companion

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"morvo/internal/llm"
	"morvo/internal/store"
)

const (
	memoryHeader   = "معلومات سابقة عن المستخدم:"
	contextHeader  = "سياق العمل:"
	noContextLine  = "لا توجد بيانات إضافية متاحة"
	unknownName    = "غير محدد"
	customerLabel  = "العميل: "
	campaignsLabel = "الحملات النشطة: "
	analyticsLabel = "نقاط البيانات: "
)

// Segment is one role-tagged part of the prompt.
type Segment struct {
	Role    string
	Content string
}

// Prompt is the assembled, ordered input to the generator.
type Prompt struct {
	Segments []Segment
	// Summary is the business context block on its own, for template
	// responders that do not read the system segment.
	Summary string
}

// Messages converts the segments to provider messages.
func (p Prompt) Messages() []llm.Message {
	out := make([]llm.Message, len(p.Segments))
	for i, s := range p.Segments {
		out[i] = llm.Message{Role: s.Role, Content: s.Content}
	}
	return out
}

// Map returns a copy of the prompt with fn applied to every text.
func (p Prompt) Map(fn func(string) string) Prompt {
	out := Prompt{Segments: make([]Segment, len(p.Segments)), Summary: fn(p.Summary)}
	for i, s := range p.Segments {
		out.Segments[i] = Segment{Role: s.Role, Content: fn(s.Content)}
	}
	return out
}

// Assemble builds the prompt: one system segment, the history window in
// stored order, then the new user message. The output depends only on the
// arguments.
func Assemble(template string, b Bundle, message string) Prompt {
	summary := Summarize(b)

	var sys strings.Builder
	sys.WriteString(template)
	if len(b.Memories) > 0 {
		sys.WriteString("\n\n")
		sys.WriteString(renderMemories(b.Memories))
	}
	sys.WriteString("\n\n")
	sys.WriteString(contextHeader)
	sys.WriteString("\n")
	sys.WriteString(summary)

	segments := make([]Segment, 0, len(b.History)+2)
	segments = append(segments, Segment{Role: "system", Content: sys.String()})
	for _, m := range b.History {
		segments = append(segments, Segment{Role: m.Role, Content: m.Content})
	}
	segments = append(segments, Segment{Role: "user", Content: message})

	return Prompt{Segments: segments, Summary: summary}
}

// Summarize renders the business context lines for a bundle.
func Summarize(b Bundle) string {
	var lines []string
	if b.Profile != nil {
		name := b.Profile.FullName
		if name == "" {
			name = unknownName
		}
		lines = append(lines, customerLabel+name)
	}
	if len(b.Campaigns) > 0 {
		lines = append(lines, campaignsLabel+strconv.Itoa(len(b.Campaigns)))
	}
	if len(b.Analytics) > 0 {
		lines = append(lines, analyticsLabel+strconv.Itoa(len(b.Analytics)))
	}
	if len(lines) == 0 {
		return noContextLine
	}
	return strings.Join(lines, "\n")
}

func renderMemories(memories []store.Memory) string {
	var sb strings.Builder
	sb.WriteString(memoryHeader)
	for _, m := range memories {
		sb.WriteString("\n")
		sb.WriteString(m.Type)
		sb.WriteString(": ")
		sb.WriteString(canonicalJSON(m.Content))
	}
	return sb.String()
}

// canonicalJSON re-encodes raw compactly with object keys sorted. Content
// that does not parse is used verbatim.
func canonicalJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(raw)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return string(raw)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
