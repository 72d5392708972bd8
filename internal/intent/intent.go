// Package intent maps a user message to a closed set of marketing intents
// and renders the canned reply for each one.
package intent

import "strings"

// Tag identifies a detected intent.
type Tag string

const (
	Report     Tag = "report"
	Content    Tag = "content"
	Campaign   Tag = "campaign"
	SEO        Tag = "seo"
	Social     Tag = "social"
	Email      Tag = "email"
	Conversion Tag = "conversion"
	General    Tag = "general"
)

type rule struct {
	tag      Tag
	keywords []string
}

// rules are checked in order; the first rule with a matching keyword wins.
var rules = []rule{
	{Report, []string{"تقرير", "إحصائيات", "أداء"}},
	{Content, []string{"محتوى", "منشور", "كونتنت"}},
	{Campaign, []string{"حملة", "إعلان", "تسويق"}},
	{SEO, []string{"سيو", "بحث", "تحسين محركات", "seo"}},
	{Social, []string{"سوشيال", "تواصل", "انستقرام", "تويتر"}},
	{Email, []string{"إيميل", "رسائل", "newsletter"}},
	{Conversion, []string{"تحويل", "مبيعات", "عملاء"}},
}

// Classify returns the intent for a message. Messages matching no rule are
// General.
func Classify(message string) Tag {
	lower := strings.ToLower(message)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.tag
			}
		}
	}
	return General
}

// Tags returns every known tag in classification order, General last.
func Tags() []Tag {
	tags := make([]Tag, 0, len(rules)+1)
	for _, r := range rules {
		tags = append(tags, r.tag)
	}
	return append(tags, General)
}

// Render fills the reply template for tag with the context summary.
// Unknown tags render the General template.
func Render(tag Tag, context string) string {
	tmpl, ok := templates[tag]
	if !ok {
		tmpl = templates[General]
	}
	return strings.ReplaceAll(tmpl, "{{context}}", context)
}
