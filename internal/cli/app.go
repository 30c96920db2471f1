package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/soyeahso/meetbot/internal/agent"
	"github.com/soyeahso/meetbot/internal/config"
	"github.com/soyeahso/meetbot/internal/hooks"
	"github.com/soyeahso/meetbot/internal/ledger"
	"github.com/soyeahso/meetbot/internal/llm"
	"github.com/soyeahso/meetbot/internal/logging"
	"github.com/soyeahso/meetbot/internal/metrics"
	"github.com/soyeahso/meetbot/internal/schedule"
	"github.com/soyeahso/meetbot/internal/session"
	"github.com/soyeahso/meetbot/internal/telephony"
)

const logFileName = "meetbot.log"

// loadConfig reads and validates the config file. Without an explicit
// --log-level the configured logging settings replace the bootstrap logger.
// The log file stays open for the life of the process.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	level := logLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	if cfg.Logging.File {
		f, err := logging.OpenFile(paths.Logs, logFileName)
		if err != nil {
			return cfg, err
		}
		log = logging.NewStyled(cfg.Logging.ConsoleStyle, level, f)
	} else if logLevel == "" {
		log = logging.NewStyled(cfg.Logging.ConsoleStyle, level)
	}
	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return cfg, nil
}

// openLedger builds the calendar and opens the configured ledger backend.
func openLedger(cfg config.Config) (*ledger.Ledger, error) {
	cal, err := schedule.FromConfig(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("creating data directories: %w", err)
	}
	path := paths.LedgerPath(cfg.Ledger)
	backend, err := ledger.OpenBackend(cfg.Ledger.Backend, path, log)
	if err != nil {
		return nil, err
	}
	log.Info().Str("backend", cfg.Ledger.Backend).Str("path", path).Msg("ledger opened")
	return ledger.New(backend, cal, log), nil
}

// loadProfile returns the company profile text. An explicit path must
// exist; the default location is optional and an empty result selects the
// built-in description.
func loadProfile(cfg config.Config) (string, error) {
	path := cfg.Assistant.CompanyProfile
	explicit := path != ""
	if !explicit {
		path = paths.Profile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("reading company profile: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// callStack is the conversation side of the service.
type callStack struct {
	orch     *agent.Orchestrator
	sessions *session.Store
	registry *llm.Registry
	profile  string
}

// newCallStack wires the model providers, sessions and orchestrator around
// an open ledger.
func newCallStack(cfg config.Config, led *ledger.Ledger, hm *hooks.Manager, m *metrics.Metrics) (*callStack, error) {
	profile, err := loadProfile(cfg)
	if err != nil {
		return nil, err
	}

	registry := llm.NewRegistryFromConfig(&cfg, log)
	providers := registry.List()
	if len(providers) == 0 {
		return nil, errors.New("no LLM providers configured (set openai.apiKey or ollama.model)")
	}
	log.Info().Strs("providers", providers).Str("primary", cfg.LLM.Primary).Msg("LLM providers available")

	deps := agent.Deps{
		Ledger:      led,
		Sessions:    session.NewStore(log),
		Completer:   agent.NewFailoverClient(registry, cfg.LLM.Primary, cfg.LLM.Fallbacks, log),
		Transcriber: registry.Transcriber(),
		Hooks:       hm,
		Metrics:     m,
	}
	if cfg.Twilio.AccountSID != "" && cfg.Twilio.AuthToken != "" {
		deps.Recordings = telephony.NewRecordingFetcher(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, nil)
	}

	orch := agent.NewOrchestrator(agent.ConfigFrom(&cfg, profile), deps, log)
	return &callStack{orch: orch, sessions: deps.Sessions, registry: registry, profile: profile}, nil
}
