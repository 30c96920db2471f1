package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/soyeahso/meetbot/internal/config"
	"github.com/soyeahso/meetbot/internal/gateway"
	"github.com/soyeahso/meetbot/internal/telephony"
	"github.com/spf13/cobra"
)

func newDialCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "dial <number>",
		Short: "Place an outbound call handled by the running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if issues := config.ValidateForCalls(&cfg); len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("cannot dial: %d config issue(s)", len(issues))
			}

			base := strings.TrimRight(cfg.Server.PublicBaseURL, "/")
			if cfg.Twilio.StatusCallback == "" {
				cfg.Twilio.StatusCallback = base + gateway.VoiceStatusPath
			}
			dialer, err := telephony.NewTwilioDialer(cfg.Twilio, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			callID, err := dialer.Dial(ctx, args[0], base+gateway.VoicePath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Call placed: %s\n", callID)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "how long to wait for the provider")
	return cmd
}
