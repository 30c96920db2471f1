package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "loopback", cfg.Server.Bind)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "Asia/Jerusalem", cfg.Schedule.Timezone)
	assert.Equal(t, DefaultWeekdays, cfg.Schedule.Weekdays)
	assert.Equal(t, 8, cfg.Schedule.FirstHour)
	assert.Equal(t, 15, cfg.Schedule.LastHour)
	assert.Equal(t, 14, cfg.Schedule.LookaheadDays)
	assert.Equal(t, 2, cfg.Schedule.BatchSize)
	assert.Equal(t, "json", cfg.Ledger.Backend)
	assert.Equal(t, 24, cfg.Session.HistoryLimit)
	assert.Equal(t, "Alice", cfg.Assistant.Name)
	assert.Equal(t, "Jonny AI Company", cfg.Assistant.CompanyName)
	assert.Equal(t, 0.4, cfg.Twilio.MinSpeechConfidence)
	assert.True(t, cfg.Fallback.Enabled())
}

func TestDefaultsWeekdaysNotShared(t *testing.T) {
	cfg := Defaults()
	cfg.Schedule.Weekdays[0] = "friday"
	assert.Equal(t, "sunday", DefaultWeekdays[0])
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadValidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  port: 8080
  bind: lan
  publicBaseUrl: https://calls.example.com
logging:
  level: debug
  consoleStyle: json
schedule:
  timezone: Europe/London
  weekdays: [monday, tuesday]
  firstHour: 9
  lastHour: 16
ledger:
  backend: sqlite
  path: /var/lib/meetbot/meetbot.db
assistant:
  name: Dana
  companyName: Acme
fallback:
  naturalLanguageBooking: false
notify:
  irc:
    server: irc.libera.chat
    nick: meetbot
    channel: "#sales"
    useTLS: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "lan", cfg.Server.Bind)
	assert.Equal(t, "https://calls.example.com", cfg.Server.PublicBaseURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.ConsoleStyle)
	assert.Equal(t, "Europe/London", cfg.Schedule.Timezone)
	assert.Equal(t, []string{"monday", "tuesday"}, cfg.Schedule.Weekdays)
	assert.Equal(t, 9, cfg.Schedule.FirstHour)
	assert.Equal(t, 16, cfg.Schedule.LastHour)
	assert.Equal(t, 14, cfg.Schedule.LookaheadDays)
	assert.Equal(t, "sqlite", cfg.Ledger.Backend)
	assert.Equal(t, "Dana", cfg.Assistant.Name)
	assert.Equal(t, "Acme", cfg.Assistant.CompanyName)
	assert.False(t, cfg.Fallback.Enabled())

	require.NotNil(t, cfg.Notify.IRC)
	assert.Equal(t, "irc.libera.chat", cfg.Notify.IRC.Server)
	assert.Equal(t, 6697, cfg.Notify.IRC.Port)
	assert.Equal(t, "#sales", cfg.Notify.IRC.Channel)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{invalid yaml"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MEETBOT_PORT", "12345")
	t.Setenv("MEETBOT_LOG_LEVEL", "TRACE")
	t.Setenv("MEETBOT_LEDGER_BACKEND", "SQLite")
	t.Setenv("MEETBOT_PUBLIC_URL", "https://example.ngrok.app/")
	t.Setenv("MEETBOT_NL_FALLBACK", "false")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, 12345, cfg.Server.Port)
	assert.Equal(t, "trace", cfg.Logging.Level)
	assert.Equal(t, "sqlite", cfg.Ledger.Backend)
	assert.Equal(t, "https://example.ngrok.app", cfg.Server.PublicBaseURL)
	assert.False(t, cfg.Fallback.Enabled())
}

func TestLoadProviderEnvDoesNotOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("openai:\n  apiKey: from-file\n"), 0o600))
	t.Setenv("OPENAI_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.OpenAI.APIKey)
}

func TestLoadExpandsSecrets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("twilio:\n  authToken: ${MEETBOT_TEST_TWILIO_TOKEN}\n"), 0o600))
	t.Setenv("MEETBOT_TEST_TWILIO_TOKEN", "tok-123")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", cfg.Twilio.AuthToken)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MEETBOT_TEST_DOTENV_SID=AC999\n"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("twilio:\n  accountSid: ${MEETBOT_TEST_DOTENV_SID}\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MEETBOT_TEST_DOTENV_SID") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "AC999", cfg.Twilio.AccountSID)
}

func TestLoadRawAndSaveRaw(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	raw := map[string]any{
		"server": map[string]any{
			"port": 9999,
		},
	}

	require.NoError(t, SaveRaw(path, raw))

	loaded, err := LoadRaw(path)
	require.NoError(t, err)

	val, ok := KeyPath{"server", "port"}.Get(loaded)
	assert.True(t, ok)
	assert.Equal(t, 9999, val)
}

func TestLoadRawMissingFile(t *testing.T) {
	raw, err := LoadRaw(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, raw)
}
