package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// DefaultWeekdays is the Sunday through Thursday business week.
var DefaultWeekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday"}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 5000,
			Bind: "loopback",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
		Schedule: ScheduleConfig{
			Timezone:      "Asia/Jerusalem",
			Weekdays:      append([]string(nil), DefaultWeekdays...),
			FirstHour:     8,
			LastHour:      15,
			LookaheadDays: 14,
			BatchSize:     2,
			RepairDays:    14,
		},
		Ledger: LedgerConfig{
			Backend: "json",
		},
		Session: SessionConfig{
			HistoryLimit: 24,
			IdleMinutes:  30,
		},
		Assistant: AssistantConfig{
			Name:        "Alice",
			CompanyName: "Jonny AI Company",
			Language:    "en-US",
			Voice:       "alice",
		},
		LLM: LLMConfig{
			Primary:     "openai",
			TurnTimeout: 20,
		},
		OpenAI: OpenAIConfig{
			ChatModel:          "gpt-4o-mini",
			TranscriptionModel: "gpt-4o-mini-transcribe",
		},
		Twilio: TwilioConfig{
			MinSpeechConfidence: 0.4,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "meetbot",
		},
	}
}
