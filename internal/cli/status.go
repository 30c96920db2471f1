package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/soyeahso/meetbot/internal/config"
	"github.com/soyeahso/meetbot/internal/llm"
	"github.com/soyeahso/meetbot/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show meetbot status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "meetbot %s (commit %s)\n\n", version.Version, version.ShortCommit())

			fmt.Fprintf(out, "Config:  %s\n", paths.Config)
			fmt.Fprintf(out, "Data:    %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:    %s\n", paths.Logs)
			fmt.Fprintln(out)

			if _, err := os.Stat(paths.Config); errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintln(out, "Config file not found, showing defaults.")
				fmt.Fprintln(out)
			}
			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Fprintf(out, "Config:  error loading: %v\n", err)
				return nil
			}

			writeStatus(out, cfg, llm.NewRegistryFromConfig(&cfg, log).List())
			return nil
		},
	}

	return cmd
}

// writeStatus prints the configuration summary.
func writeStatus(out io.Writer, cfg config.Config, providers []string) {
	s := cfg.Server
	auth := "off"
	if s.AuthToken != "" {
		auth = "token"
	}
	fmt.Fprintf(out, "Server:  port=%d bind=%s auth=%s signatures=%v\n", s.Port, s.Bind, auth, s.ValidateSignatures)
	if s.PublicBaseURL != "" {
		fmt.Fprintf(out, "Public:  %s\n", s.PublicBaseURL)
	} else {
		fmt.Fprintln(out, "Public:  (not set)")
	}

	sc := cfg.Schedule
	fmt.Fprintf(out, "Hours:   %02d:00-%02d:00 %s days=%s lookahead=%d\n",
		sc.FirstHour, sc.LastHour, sc.Timezone, strings.Join(sc.Weekdays, ","), sc.LookaheadDays)
	fmt.Fprintf(out, "Ledger:  backend=%s path=%s\n", cfg.Ledger.Backend, paths.LedgerPath(cfg.Ledger))

	if len(providers) > 0 {
		fmt.Fprintf(out, "LLM:     %s (primary %s)\n", strings.Join(providers, ", "), cfg.LLM.Primary)
	} else {
		fmt.Fprintln(out, "LLM:     (none detected)")
	}

	if cfg.Twilio.AccountSID != "" {
		fmt.Fprintf(out, "Twilio:  account=%s from=%s\n", cfg.Twilio.AccountSID, cfg.Twilio.FromNumber)
	} else {
		fmt.Fprintln(out, "Twilio:  (not configured)")
	}

	if irc := cfg.Notify.IRC; irc != nil {
		fmt.Fprintf(out, "IRC:     server=%s nick=%s channel=%s tls=%v\n", irc.Server, irc.Nick, irc.Channel, irc.UseTLS)
	} else {
		fmt.Fprintln(out, "IRC:     (not configured)")
	}

	if gm := cfg.Mailer.Gmail; gm != nil {
		fmt.Fprintf(out, "Mailer:  gmail from=%s\n", gm.From)
	} else {
		fmt.Fprintln(out, "Mailer:  (not configured)")
	}

	if cfg.Metrics.Enabled {
		fmt.Fprintf(out, "Metrics: namespace=%s\n", cfg.Metrics.Namespace)
	}

	issues := config.ValidateForCalls(&cfg)
	if len(issues) > 0 {
		fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
		for _, issue := range issues {
			fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
		}
	}
}
