package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/soyeahso/meetbot/internal/domain"
	"github.com/spf13/cobra"
)

func newMeetingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meetings",
		Short: "Inspect and edit the meeting ledger",
	}

	cmd.AddCommand(newMeetingsListCmd())
	cmd.AddCommand(newMeetingsUpdateCmd())
	return cmd
}

func newMeetingsListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded meetings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			led, err := openLedger(cfg)
			if err != nil {
				return err
			}
			defer led.Close()

			entries, err := led.Entries()
			if err != nil {
				return err
			}
			return printMeetings(cmd.OutOrStdout(), entries, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newMeetingsUpdateCmd() *cobra.Command {
	var (
		slot   string
		callID string
		sets   []string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update fields of a meeting",
		Long: "Update fields of the meeting identified by --slot and --call.\n" +
			"Updatable fields: " + strings.Join(domain.UpdatableFields, ", ") + ".",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseAssignments(sets)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			led, err := openLedger(cfg)
			if err != nil {
				return err
			}
			defer led.Close()

			changed, err := led.Update(slot, callID, fields)
			if err != nil {
				return err
			}
			if !changed {
				return fmt.Errorf("no meeting for slot %q and call %q", slot, callID)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated meeting %s (%s)\n", slot, callID)
			return nil
		},
	}

	cmd.Flags().StringVar(&slot, "slot", "", "meeting slot, YYYY-MM-DD HH:MM")
	cmd.Flags().StringVar(&callID, "call", "", "call id that booked the meeting")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field assignment key=value (repeatable)")
	cmd.MarkFlagRequired("slot")
	cmd.MarkFlagRequired("call")
	cmd.MarkFlagRequired("set")
	return cmd
}

// parseAssignments turns key=value pairs into an update map.
func parseAssignments(sets []string) (map[string]string, error) {
	fields := make(map[string]string, len(sets))
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid assignment %q, want key=value", s)
		}
		fields[k] = v
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("at least one --set is required")
	}
	return fields, nil
}

func printMeetings(w io.Writer, entries []domain.MeetingEntry, asJSON bool) error {
	if asJSON {
		if entries == nil {
			entries = []domain.MeetingEntry{}
		}
		return writeJSON(w, map[string]any{"meetings": entries})
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No meetings recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tSTATUS\tNAME\tPHONE\tEMAIL\tCALL")
	for _, e := range entries {
		status := e.Status
		if status == "" {
			status = "active"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.Slot, status, e.Name, e.Phone, e.Email, e.CallID)
	}
	return tw.Flush()
}
