package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/soyeahso/meetbot/internal/agent"
	"github.com/soyeahso/meetbot/internal/config"
	"github.com/soyeahso/meetbot/internal/domain"
	"github.com/soyeahso/meetbot/internal/hooks"
	"github.com/soyeahso/meetbot/internal/ledger"
	"github.com/soyeahso/meetbot/internal/schedule"
	"github.com/spf13/cobra"
)

func newRehearseCmd() *cobra.Command {
	var (
		live     bool
		prospect string
	)

	cmd := &cobra.Command{
		Use:   "rehearse",
		Short: "Play the prospect side of a call from the terminal",
		Long: "Runs a text-only call against the configured model. Each line read\n" +
			"from stdin is one prospect utterance. Bookings go to a scratch ledger\n" +
			"unless --live is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var led *ledger.Ledger
			if live {
				led, err = openLedger(cfg)
			} else {
				led, err = scratchLedger(cfg)
			}
			if err != nil {
				return err
			}
			defer led.Close()

			stack, err := newCallStack(cfg, led, hooks.NewManager(log), nil)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			meta := domain.CallMeta{To: prospect, Direction: "outbound-api"}
			return runRehearsal(ctx, stack.orch, meta, cfg.Assistant.Name, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&live, "live", false, "record bookings in the real ledger")
	cmd.Flags().StringVar(&prospect, "prospect", "", "phone number to attribute bookings to")
	return cmd
}

// scratchLedger opens a JSON ledger in a fresh temporary directory.
func scratchLedger(cfg config.Config) (*ledger.Ledger, error) {
	cal, err := schedule.FromConfig(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp("", "meetbot-rehearse-")
	if err != nil {
		return nil, err
	}
	backend, err := ledger.NewJSONFileBackend(filepath.Join(dir, "meetings.json"), log)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("dir", dir).Msg("scratch ledger")
	return ledger.New(backend, cal, log), nil
}

// runRehearsal drives one call: every input line is a prospect turn. It
// stops when the assistant ends the call or the input runs out.
func runRehearsal(ctx context.Context, orch *agent.Orchestrator, meta domain.CallMeta, speaker string, in io.Reader, out io.Writer) error {
	if speaker == "" {
		speaker = "Assistant"
	}
	callID := "rehearse-" + uuid.NewString()[:8]

	fmt.Fprintf(out, "%s: %s\n", speaker, orch.HandleCallStart(ctx, callID, meta))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		reply := orch.HandleInboundTurn(ctx, callID, line, meta)
		fmt.Fprintf(out, "%s: %s\n", speaker, reply.Text)
		if reply.Booked != "" {
			fmt.Fprintf(out, "[booked %s]\n", reply.Booked)
		}
		if reply.ShouldEnd {
			fmt.Fprintln(out, "[call ended]")
			return nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	fmt.Fprintln(out)

	orch.HandleCallEnded(context.WithoutCancel(ctx), callID, "hangup")
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}
