package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/soyeahso/meetbot/internal/config"
	"github.com/soyeahso/meetbot/internal/gateway"
	"github.com/soyeahso/meetbot/internal/hooks"
	"github.com/soyeahso/meetbot/internal/mailer"
	"github.com/soyeahso/meetbot/internal/metrics"
	"github.com/soyeahso/meetbot/internal/notify"
	"github.com/soyeahso/meetbot/internal/store"
	"github.com/soyeahso/meetbot/internal/telephony"
	"github.com/spf13/cobra"
)

const janitorInterval = time.Minute

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}
			for _, issue := range config.ValidateForCalls(&cfg) {
				log.Warn().Str("path", issue.Path).Msg(issue.Message)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}

// serve wires every component and blocks until ctx is done.
func serve(ctx context.Context, cfg config.Config) error {
	hookMgr := hooks.NewManager(log)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	led, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer led.Close()

	stack, err := newCallStack(cfg, led, hookMgr, m)
	if err != nil {
		return err
	}

	opts := []gateway.ServerOption{
		gateway.WithHooks(hookMgr),
		gateway.WithMetrics(m),
	}

	db, err := store.Open(paths.Database, log)
	if err != nil {
		return fmt.Errorf("opening call log: %w", err)
	}
	defer db.Close()
	opts = append(opts, gateway.WithCallLog(store.NewCallLog(db)))

	if base := strings.TrimRight(cfg.Server.PublicBaseURL, "/"); base != "" && cfg.Twilio.StatusCallback == "" {
		cfg.Twilio.StatusCallback = base + gateway.VoiceStatusPath
	}
	if dialer, err := telephony.NewTwilioDialer(cfg.Twilio, log); err == nil {
		opts = append(opts, gateway.WithDialer(dialer))
	} else {
		log.Warn().Err(err).Msg("outbound dialing disabled")
	}

	if cfg.Server.ValidateSignatures {
		if cfg.Twilio.AuthToken == "" {
			return errors.New("server.validateSignatures requires twilio.authToken")
		}
		opts = append(opts, gateway.WithSignatureValidator(telephony.NewSignatureValidator(cfg.Twilio.AuthToken)))
	}

	if cfg.Notify.IRC != nil {
		notifier := notify.NewIRCNotifier(*cfg.Notify.IRC, log)
		notifier.Register(hookMgr)
		go func() {
			if err := notifier.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("irc notifier stopped")
			}
		}()
	}

	if cfg.Mailer.Gmail != nil {
		sender, err := mailer.NewGmailSender(ctx, *cfg.Mailer.Gmail)
		if err != nil {
			return fmt.Errorf("starting gmail sender: %w", err)
		}
		followup := mailer.NewFollowup(sender, mailer.Profile{
			AssistantName: cfg.Assistant.Name,
			CompanyName:   cfg.Assistant.CompanyName,
			Description:   stack.profile,
			Subject:       cfg.Mailer.Gmail.Subject,
		}, log)
		followup.Register(hookMgr)
		defer followup.Wait()
	}

	if cfg.Session.IdleMinutes > 0 {
		idle := time.Duration(cfg.Session.IdleMinutes) * time.Minute
		go stack.sessions.RunJanitor(ctx, janitorInterval, idle, stack.orch.HandleReaped)
	}

	srv := gateway.New(cfg, stack.orch, log, opts...)
	return srv.Start(ctx)
}
