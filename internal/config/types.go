package config

// Config is the root configuration for meetbot.
type Config struct {
	Server    ServerConfig    `yaml:"server,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
	Schedule  ScheduleConfig  `yaml:"schedule,omitempty"`
	Ledger    LedgerConfig    `yaml:"ledger,omitempty"`
	Session   SessionConfig   `yaml:"session,omitempty"`
	Assistant AssistantConfig `yaml:"assistant,omitempty"`
	LLM       LLMConfig       `yaml:"llm,omitempty"`
	OpenAI    OpenAIConfig    `yaml:"openai,omitempty"`
	Ollama    *OllamaConfig   `yaml:"ollama,omitempty"`
	Twilio    TwilioConfig    `yaml:"twilio,omitempty"`
	Fallback  FallbackConfig  `yaml:"fallback,omitempty"`
	Notify    NotifyConfig    `yaml:"notify,omitempty"`
	Mailer    MailerConfig    `yaml:"mailer,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty"`
}

// ServerConfig controls the webhook HTTP server.
type ServerConfig struct {
	Port           int    `yaml:"port,omitempty"`
	Bind           string `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string `yaml:"customBindHost,omitempty"`
	PublicBaseURL  string `yaml:"publicBaseUrl,omitempty"` // externally reachable https base for provider callbacks
	AuthToken      string `yaml:"authToken,omitempty"`     // bearer token for admin endpoints (/calls, /meetings)
	// ValidateSignatures rejects provider webhooks whose signature does not
	// match the Twilio auth token.
	ValidateSignatures bool     `yaml:"validateSignatures,omitempty"`
	AllowedOrigins     []string `yaml:"allowedOrigins,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
	// File also writes JSON logs to meetbot.log under the logs directory.
	File bool `yaml:"file,omitempty"`
}

// ScheduleConfig defines the bookable business window.
type ScheduleConfig struct {
	Timezone      string   `yaml:"timezone,omitempty"` // IANA name
	Weekdays      []string `yaml:"weekdays,omitempty"` // e.g. ["sunday", "monday", ...]
	FirstHour     int      `yaml:"firstHour,omitempty"`
	LastHour      int      `yaml:"lastHour,omitempty"` // last bookable start hour, inclusive
	LookaheadDays int      `yaml:"lookaheadDays,omitempty"`
	BatchSize     int      `yaml:"batchSize,omitempty"`  // slots offered per proposal
	RepairDays    int      `yaml:"repairDays,omitempty"` // days searched for a same-weekday repair
}

// LedgerConfig selects the meeting ledger backend.
type LedgerConfig struct {
	Backend string `yaml:"backend,omitempty"` // "json" | "sqlite"
	Path    string `yaml:"path,omitempty"`
}

// SessionConfig defines call session behavior.
type SessionConfig struct {
	HistoryLimit int `yaml:"historyLimit,omitempty"`
	IdleMinutes  int `yaml:"idleMinutes,omitempty"`
}

// AssistantConfig describes the persona presented on calls.
type AssistantConfig struct {
	Name           string `yaml:"name,omitempty"`
	CompanyName    string `yaml:"companyName,omitempty"`
	CompanyProfile string `yaml:"companyProfile,omitempty"` // path to a markdown profile; empty uses built-in text
	Language       string `yaml:"language,omitempty"`
	Voice          string `yaml:"voice,omitempty"`
}

// LLMConfig selects the completion provider chain.
type LLMConfig struct {
	Primary     string   `yaml:"primary,omitempty"` // "openai" | "ollama"
	Fallbacks   []string `yaml:"fallbacks,omitempty"`
	TurnTimeout int      `yaml:"turnTimeoutSeconds,omitempty"`
}

// OpenAIConfig configures chat completion and transcription.
type OpenAIConfig struct {
	APIKey             string   `yaml:"apiKey,omitempty"`
	BaseURL            string   `yaml:"baseUrl,omitempty"`
	ChatModel          string   `yaml:"chatModel,omitempty"`
	TranscriptionModel string   `yaml:"transcriptionModel,omitempty"`
	Temperature        *float64 `yaml:"temperature,omitempty"`
	MaxTokens          int      `yaml:"maxTokens,omitempty"`
}

// OllamaConfig configures a local completion fallback.
type OllamaConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	Model    string `yaml:"model"`
}

// TwilioConfig configures the telephony provider.
type TwilioConfig struct {
	AccountSID          string  `yaml:"accountSid,omitempty"`
	AuthToken           string  `yaml:"authToken,omitempty"`
	FromNumber          string  `yaml:"fromNumber,omitempty"`
	StatusCallback      string  `yaml:"statusCallback,omitempty"`
	MinSpeechConfidence float64 `yaml:"minSpeechConfidence,omitempty"`
}

// FallbackConfig toggles the natural-language booking recovery path.
type FallbackConfig struct {
	NaturalLanguageBooking *bool `yaml:"naturalLanguageBooking,omitempty"`
}

// Enabled reports whether natural-language booking is on. Defaults to true.
func (f FallbackConfig) Enabled() bool {
	return f.NaturalLanguageBooking == nil || *f.NaturalLanguageBooking
}

// NotifyConfig configures booking notifications.
type NotifyConfig struct {
	IRC *IRCConfig `yaml:"irc,omitempty"`
}

// IRCConfig defines the IRC notification target.
type IRCConfig struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port,omitempty"`
	Nick     string `yaml:"nick"`
	Password string `yaml:"password,omitempty"`
	Channel  string `yaml:"channel"`
	UseTLS   bool   `yaml:"useTLS,omitempty"`
}

// MailerConfig configures outbound email for send-info requests.
type MailerConfig struct {
	Gmail *GmailConfig `yaml:"gmail,omitempty"`
}

// GmailConfig points at OAuth client credentials and a stored token.
type GmailConfig struct {
	CredentialsFile string `yaml:"credentialsFile"`
	TokenFile       string `yaml:"tokenFile"`
	From            string `yaml:"from"`
	Subject         string `yaml:"subject,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
}
