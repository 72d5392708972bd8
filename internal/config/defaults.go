package config

// DefaultSystemPrompt is used when the prompt store has no active template.
const DefaultSystemPrompt = `أنت «مورفو» – رفيق تسويق ذكي واحد.
• تحدّث بالعربية الفصحى بلمسة خليجية ودودة.
• وظيفتك تبسيط التسويق: تحليل SEO، أفكار محتوى، حملات، تتبّع ROI.
• لا تذكر أي لوحة تحكّم أو جداول معقّدة؛ كل شيء يتمّ داخل المحادثة.
• جمَل قصيرة، أفعال مباشرة، إيموجي واحد كحدّ أقصى.
• لا تتجاوز 300 كلمة في أي ردّ.
• اربط كل أفكارك دائما بنتائج ومؤشرات الأداء الرئيسية للأعمال.
• اجعل الجمهور المستهدف دائما في قلب استراتيجيتك.
• قدم دائما معلومات قائمة على البيانات والأدلة عند الإمكان.`

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:             ":8001",
			ReadTimeoutSecs:  15,
			WriteTimeoutSecs: 160,
		},
		Store: StoreConfig{
			Driver:      "sqlite",
			TimeoutSecs: 5,
		},
		Companion: CompanionConfig{
			Name:             "مورفو",
			PromptName:       "morvo_unified_companion",
			MemoryLimit:      5,
			HistoryLimit:     10,
			CampaignLimit:    20,
			AnalyticsLimit:   5,
			MaxTokens:        800,
			Temperature:      0.7,
			TopP:             1,
			FrequencyPenalty: 0,
			PresencePenalty:  0.6,
			FallbackReply:    "عذراً، حدث خطأ في التحليل. دعني أساعدك بطريقة أخرى! 🔧",
			ErrorReply:       "عذراً، حدث خطأ تقني. دعني أساعدك بطريقة أخرى. 🤖",
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4-turbo-preview",
			MaxRetries:  2,
			TimeoutSecs: 30,
		},
		Security: SecurityConfig{
			PIIFiltering: PIIFilterConfig{
				Enabled:      true,
				FilterEmails: true,
				FilterPhones: true,
				FilterCards:  true,
				FilterIPs:    false,
				FilterSSN:    true,
			},
		},
		Channels: ChannelsConfig{},
	}
}
