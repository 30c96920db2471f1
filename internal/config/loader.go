package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so keys and tokens can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.Server.AuthToken = expandEnvVars(cfg.Server.AuthToken)
	cfg.OpenAI.APIKey = expandEnvVars(cfg.OpenAI.APIKey)
	cfg.Twilio.AccountSID = expandEnvVars(cfg.Twilio.AccountSID)
	cfg.Twilio.AuthToken = expandEnvVars(cfg.Twilio.AuthToken)
	cfg.Twilio.FromNumber = expandEnvVars(cfg.Twilio.FromNumber)
	if cfg.Notify.IRC != nil {
		cfg.Notify.IRC.Password = expandEnvVars(cfg.Notify.IRC.Password)
	}
}

// loadDotEnv reads a .env file next to the config file, if any. Variables
// already present in the environment win.
func loadDotEnv(configPath string) error {
	envFile := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &ConfigError{Message: "failed to read " + envFile + ": " + err.Error()}
	}
	return nil
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if err := loadDotEnv(path); err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	expandSensitiveFields(&cfg)
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = d.Server.Bind
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = d.Logging.ConsoleStyle
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = d.Schedule.Timezone
	}
	if len(cfg.Schedule.Weekdays) == 0 {
		cfg.Schedule.Weekdays = d.Schedule.Weekdays
	}
	if cfg.Schedule.LastHour == 0 {
		cfg.Schedule.LastHour = d.Schedule.LastHour
	}
	if cfg.Schedule.LookaheadDays == 0 {
		cfg.Schedule.LookaheadDays = d.Schedule.LookaheadDays
	}
	if cfg.Schedule.BatchSize == 0 {
		cfg.Schedule.BatchSize = d.Schedule.BatchSize
	}
	if cfg.Schedule.RepairDays == 0 {
		cfg.Schedule.RepairDays = d.Schedule.RepairDays
	}
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = d.Ledger.Backend
	}
	if cfg.Session.HistoryLimit == 0 {
		cfg.Session.HistoryLimit = d.Session.HistoryLimit
	}
	if cfg.Session.IdleMinutes == 0 {
		cfg.Session.IdleMinutes = d.Session.IdleMinutes
	}
	if cfg.Assistant.Name == "" {
		cfg.Assistant.Name = d.Assistant.Name
	}
	if cfg.Assistant.CompanyName == "" {
		cfg.Assistant.CompanyName = d.Assistant.CompanyName
	}
	if cfg.Assistant.Language == "" {
		cfg.Assistant.Language = d.Assistant.Language
	}
	if cfg.Assistant.Voice == "" {
		cfg.Assistant.Voice = d.Assistant.Voice
	}
	if cfg.LLM.Primary == "" {
		cfg.LLM.Primary = d.LLM.Primary
	}
	if cfg.LLM.TurnTimeout == 0 {
		cfg.LLM.TurnTimeout = d.LLM.TurnTimeout
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = d.OpenAI.ChatModel
	}
	if cfg.OpenAI.TranscriptionModel == "" {
		cfg.OpenAI.TranscriptionModel = d.OpenAI.TranscriptionModel
	}
	if cfg.Twilio.MinSpeechConfidence == 0 {
		cfg.Twilio.MinSpeechConfidence = d.Twilio.MinSpeechConfidence
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = d.Metrics.Namespace
	}
	if cfg.Ollama != nil && cfg.Ollama.Endpoint == "" {
		cfg.Ollama.Endpoint = "http://localhost:11434"
	}
	if cfg.Notify.IRC != nil && cfg.Notify.IRC.Port == 0 {
		cfg.Notify.IRC.Port = 6667
		if cfg.Notify.IRC.UseTLS {
			cfg.Notify.IRC.Port = 6697
		}
	}
	if cfg.Mailer.Gmail != nil && cfg.Mailer.Gmail.Subject == "" {
		cfg.Mailer.Gmail.Subject = "Information from " + cfg.Assistant.CompanyName
	}
}

// applyEnvOverrides reads MEETBOT_* and provider environment variables and
// overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MEETBOT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MEETBOT_BIND"); v != "" {
		cfg.Server.Bind = v
	}
	if v := os.Getenv("MEETBOT_PUBLIC_URL"); v != "" {
		cfg.Server.PublicBaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("MEETBOT_AUTH_TOKEN"); v != "" {
		cfg.Server.AuthToken = v
	}
	if v := os.Getenv("MEETBOT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("MEETBOT_TIMEZONE"); v != "" {
		cfg.Schedule.Timezone = v
	}
	if v := os.Getenv("MEETBOT_LEDGER_BACKEND"); v != "" {
		cfg.Ledger.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("MEETBOT_LEDGER_PATH"); v != "" {
		cfg.Ledger.Path = v
	}
	if v := os.Getenv("MEETBOT_ASSISTANT_NAME"); v != "" {
		cfg.Assistant.Name = v
	}
	if v := os.Getenv("MEETBOT_COMPANY_NAME"); v != "" {
		cfg.Assistant.CompanyName = v
	}
	if v := os.Getenv("MEETBOT_NL_FALLBACK"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Fallback.NaturalLanguageBooking = &enabled
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = v
	}
	if v := os.Getenv("TWILIO_ACCOUNT_SID"); v != "" && cfg.Twilio.AccountSID == "" {
		cfg.Twilio.AccountSID = v
	}
	if v := os.Getenv("TWILIO_AUTH_TOKEN"); v != "" && cfg.Twilio.AuthToken == "" {
		cfg.Twilio.AuthToken = v
	}
	if v := os.Getenv("TWILIO_PHONE_NUMBER"); v != "" && cfg.Twilio.FromNumber == "" {
		cfg.Twilio.FromNumber = v
	}
}
