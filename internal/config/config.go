package config

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig    `json:"server" yaml:"server"`
	Store       StoreConfig     `json:"store" yaml:"store"`
	Companion   CompanionConfig `json:"companion" yaml:"companion"`
	LLM         LLMConfig       `json:"llm" yaml:"llm"`
	FallbackLLM *LLMConfig      `json:"fallback_llm,omitempty" yaml:"fallback_llm,omitempty"`
	Channels    ChannelsConfig  `json:"channels" yaml:"channels"`
	Security    SecurityConfig  `json:"security" yaml:"security"`
}

type ServerConfig struct {
	Addr             string   `json:"addr" yaml:"addr"`
	ReadTimeoutSecs  int      `json:"read_timeout_secs" yaml:"read_timeout_secs"`
	WriteTimeoutSecs int      `json:"write_timeout_secs" yaml:"write_timeout_secs"`
	AllowedUserIDs   []string `json:"allowed_user_ids,omitempty" yaml:"allowed_user_ids,omitempty"`
}

type StoreConfig struct {
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	Driver      string `json:"driver" yaml:"driver"`
	Path        string `json:"path" yaml:"path"`
	TimeoutSecs int    `json:"timeout_secs" yaml:"timeout_secs"`
}

// CompanionConfig holds the fixed pipeline bounds and generation parameters.
// None of these are controllable per request.
type CompanionConfig struct {
	Name             string  `json:"name" yaml:"name"`
	PromptName       string  `json:"prompt_name" yaml:"prompt_name"`
	MemoryLimit      int     `json:"memory_limit" yaml:"memory_limit"`
	HistoryLimit     int     `json:"history_limit" yaml:"history_limit"`
	CampaignLimit    int     `json:"campaign_limit" yaml:"campaign_limit"`
	AnalyticsLimit   int     `json:"analytics_limit" yaml:"analytics_limit"`
	MaxTokens        int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature      float64 `json:"temperature" yaml:"temperature"`
	TopP             float64 `json:"top_p" yaml:"top_p"`
	FrequencyPenalty float64 `json:"frequency_penalty" yaml:"frequency_penalty"`
	PresencePenalty  float64 `json:"presence_penalty" yaml:"presence_penalty"`
	FallbackReply    string  `json:"fallback_reply" yaml:"fallback_reply"`
	ErrorReply       string  `json:"error_reply" yaml:"error_reply"`
}

type LLMConfig struct {
	Provider    string `json:"provider" yaml:"provider"`
	Model       string `json:"model" yaml:"model"`
	APIKey      string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL     string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	MaxRetries  int    `json:"max_retries" yaml:"max_retries"`
	TimeoutSecs int    `json:"timeout_secs" yaml:"timeout_secs"`
}

type ChannelsConfig struct {
	Telegram *TelegramConfig `json:"telegram,omitempty" yaml:"telegram,omitempty"`
}

type TelegramConfig struct {
	Token      string  `json:"token" yaml:"token"`
	AllowedIDs []int64 `json:"allowed_ids,omitempty" yaml:"allowed_ids,omitempty"`
}

type SecurityConfig struct {
	PIIFiltering PIIFilterConfig `json:"pii_filtering" yaml:"pii_filtering"`
}

type PIIFilterConfig struct {
	Enabled      bool `json:"enabled" yaml:"enabled"`
	FilterEmails bool `json:"filter_emails" yaml:"filter_emails"`
	FilterPhones bool `json:"filter_phones" yaml:"filter_phones"`
	FilterCards  bool `json:"filter_cards" yaml:"filter_cards"`
	FilterIPs    bool `json:"filter_ips" yaml:"filter_ips"`
	FilterSSN    bool `json:"filter_ssn" yaml:"filter_ssn"`
}
