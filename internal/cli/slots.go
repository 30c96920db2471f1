package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/soyeahso/meetbot/internal/schedule"
	"github.com/spf13/cobra"
)

func newSlotsCmd() *cobra.Command {
	var (
		days   int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print the bookable meeting slots",
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

			return printSlots(cmd.OutOrStdout(), led.Available(days), asJSON)
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "lookahead window in days (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printSlots(w io.Writer, slots []string, asJSON bool) error {
	if asJSON {
		return writeJSON(w, map[string]any{"slots": slots})
	}
	if len(slots) == 0 {
		fmt.Fprintln(w, "No open slots.")
		return nil
	}
	for _, s := range slots {
		fmt.Fprintf(w, "%s  %s\n", s, schedule.Format(s))
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
