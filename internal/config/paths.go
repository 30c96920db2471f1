package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".meetbot"

// Paths is the on-disk layout under the meetbot home directory.
type Paths struct {
	Base        string // ~/.meetbot
	Config      string // ~/.meetbot/config.yaml
	Credentials string // ~/.meetbot/credentials
	Logs        string // ~/.meetbot/logs
	Data        string // ~/.meetbot/data
	Meetings    string // ~/.meetbot/data/meetings.json
	Database    string // ~/.meetbot/data/meetbot.db
	Profile     string // ~/.meetbot/company_profile.md
}

// ResolvePaths lays out Paths under $MEETBOT_HOME, or ~/.meetbot when the
// variable is unset.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("MEETBOT_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	data := filepath.Join(base, "data")
	return Paths{
		Base:        base,
		Config:      filepath.Join(base, "config.yaml"),
		Credentials: filepath.Join(base, "credentials"),
		Logs:        filepath.Join(base, "logs"),
		Data:        data,
		Meetings:    filepath.Join(data, "meetings.json"),
		Database:    filepath.Join(data, "meetbot.db"),
		Profile:     filepath.Join(base, "company_profile.md"),
	}, nil
}

// EnsureDirs creates the private directories meetbot writes into.
func (p Paths) EnsureDirs() error {
	for _, d := range [...]string{p.Base, p.Credentials, p.Logs, p.Data} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// LedgerPath returns the configured ledger location, falling back to the
// standard path for the selected backend.
func (p Paths) LedgerPath(cfg LedgerConfig) string {
	if cfg.Path != "" {
		return cfg.Path
	}
	if cfg.Backend == "sqlite" {
		return p.Database
	}
	return p.Meetings
}
