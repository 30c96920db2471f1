package config

import (
	_ "time/tzdata" // schedule.timezone is validated on hosts without a zoneinfo database

	"fmt"
	"slices"
	"strings"
	"time"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

var validWeekdays = []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// Server validation
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		add("server.port", "port must be 0-65535, got %d", cfg.Server.Port)
	}
	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Server.Bind != "" && !slices.Contains(validBinds, cfg.Server.Bind) {
		add("server.bind", "must be one of %v, got %q", validBinds, cfg.Server.Bind)
	}
	if cfg.Server.Bind == "custom" && cfg.Server.CustomBindHost == "" {
		add("server.customBindHost", "required when bind is custom")
	}
	if cfg.Server.PublicBaseURL != "" && !strings.HasPrefix(cfg.Server.PublicBaseURL, "http") {
		add("server.publicBaseUrl", "must be an http(s) URL, got %q", cfg.Server.PublicBaseURL)
	}
	if cfg.Server.ValidateSignatures && cfg.Twilio.AuthToken == "" {
		add("server.validateSignatures", "requires twilio.authToken")
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	// Schedule validation
	if _, err := time.LoadLocation(cfg.Schedule.Timezone); err != nil {
		add("schedule.timezone", "unknown timezone %q", cfg.Schedule.Timezone)
	}
	for _, day := range cfg.Schedule.Weekdays {
		if !slices.Contains(validWeekdays, strings.ToLower(day)) {
			add("schedule.weekdays", "unknown weekday %q", day)
		}
	}
	if cfg.Schedule.FirstHour < 0 || cfg.Schedule.FirstHour > 23 {
		add("schedule.firstHour", "must be 0-23, got %d", cfg.Schedule.FirstHour)
	}
	if cfg.Schedule.LastHour < 0 || cfg.Schedule.LastHour > 23 {
		add("schedule.lastHour", "must be 0-23, got %d", cfg.Schedule.LastHour)
	}
	if cfg.Schedule.LastHour < cfg.Schedule.FirstHour {
		add("schedule.lastHour", "must not be before firstHour (%d)", cfg.Schedule.FirstHour)
	}
	if cfg.Schedule.LookaheadDays < 1 {
		add("schedule.lookaheadDays", "must be at least 1, got %d", cfg.Schedule.LookaheadDays)
	}
	if cfg.Schedule.BatchSize < 1 {
		add("schedule.batchSize", "must be at least 1, got %d", cfg.Schedule.BatchSize)
	}

	// Ledger validation
	validBackends := []string{"json", "sqlite"}
	if !slices.Contains(validBackends, cfg.Ledger.Backend) {
		add("ledger.backend", "must be one of %v, got %q", validBackends, cfg.Ledger.Backend)
	}

	// Session validation
	if cfg.Session.HistoryLimit < 2 {
		add("session.historyLimit", "must be at least 2, got %d", cfg.Session.HistoryLimit)
	}

	// LLM validation
	validProviders := []string{"openai", "ollama"}
	if !slices.Contains(validProviders, cfg.LLM.Primary) {
		add("llm.primary", "must be one of %v, got %q", validProviders, cfg.LLM.Primary)
	}
	for _, fb := range cfg.LLM.Fallbacks {
		if !slices.Contains(validProviders, fb) {
			add("llm.fallbacks", "unknown provider %q", fb)
		}
	}
	usesOllama := cfg.LLM.Primary == "ollama" || slices.Contains(cfg.LLM.Fallbacks, "ollama")
	if usesOllama && (cfg.Ollama == nil || cfg.Ollama.Model == "") {
		add("ollama.model", "required when ollama is in the provider chain")
	}

	if cfg.Twilio.MinSpeechConfidence < 0 || cfg.Twilio.MinSpeechConfidence > 1 {
		add("twilio.minSpeechConfidence", "must be between 0 and 1, got %g", cfg.Twilio.MinSpeechConfidence)
	}

	// IRC validation (only if configured)
	if irc := cfg.Notify.IRC; irc != nil {
		if irc.Server == "" {
			add("notify.irc.server", "server is required")
		}
		if irc.Nick == "" {
			add("notify.irc.nick", "nick is required")
		}
		if irc.Channel == "" {
			add("notify.irc.channel", "channel is required")
		}
		if irc.Port < 0 || irc.Port > 65535 {
			add("notify.irc.port", "port must be 0-65535, got %d", irc.Port)
		}
	}

	if gm := cfg.Mailer.Gmail; gm != nil {
		if gm.CredentialsFile == "" {
			add("mailer.gmail.credentialsFile", "credentialsFile is required")
		}
		if gm.TokenFile == "" {
			add("mailer.gmail.tokenFile", "tokenFile is required")
		}
		if gm.From == "" {
			add("mailer.gmail.from", "from is required")
		}
	}

	return issues
}

// ValidateForCalls checks the settings needed to place and serve live calls.
// These are not required for offline commands like "slots".
func ValidateForCalls(cfg *Config) []ValidationIssue {
	issues := Validate(cfg)
	if cfg.LLM.Primary == "openai" || slices.Contains(cfg.LLM.Fallbacks, "openai") {
		if cfg.OpenAI.APIKey == "" {
			issues = append(issues, ValidationIssue{Path: "openai.apiKey", Message: "required for the openai provider"})
		}
	}
	if cfg.Twilio.AccountSID == "" {
		issues = append(issues, ValidationIssue{Path: "twilio.accountSid", Message: "required to place calls"})
	}
	if cfg.Twilio.AuthToken == "" {
		issues = append(issues, ValidationIssue{Path: "twilio.authToken", Message: "required to place calls"})
	}
	if cfg.Twilio.FromNumber == "" {
		issues = append(issues, ValidationIssue{Path: "twilio.fromNumber", Message: "required to place calls"})
	}
	if cfg.Server.PublicBaseURL == "" {
		issues = append(issues, ValidationIssue{Path: "server.publicBaseUrl", Message: "required so the provider can reach the webhooks"})
	}
	return issues
}
