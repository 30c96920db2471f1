package cli

import (
	"os"

	"github.com/soyeahso/meetbot/internal/config"
	"github.com/soyeahso/meetbot/internal/logging"
	"github.com/spf13/cobra"
)

// Set by the root command before any subcommand runs.
var (
	cfgFile  string
	logLevel string

	paths config.Paths
	log   *logging.Logger
)

const (
	groupCalls = "calls"
	groupAdmin = "admin"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "meetbot",
		Short:         "meetbot places outbound sales calls and books meetings",
		Long:          "meetbot calls prospects, talks with them through a language model and books meetings into a shared calendar.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			p, err := config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				p.Config = cfgFile
			}
			paths = p
			if logLevel == "" {
				logLevel = os.Getenv("MEETBOT_LOG_LEVEL")
			}
			log = logging.New(nil, logLevel)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ~/.meetbot/config.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error or silent (env MEETBOT_LOG_LEVEL)")

	root.AddGroup(
		&cobra.Group{ID: groupCalls, Title: "Calls:"},
		&cobra.Group{ID: groupAdmin, Title: "Administration:"},
	)
	for _, c := range []*cobra.Command{newServeCmd(), newDialCmd(), newRehearseCmd(), newSlotsCmd(), newMeetingsCmd()} {
		c.GroupID = groupCalls
		root.AddCommand(c)
	}
	for _, c := range []*cobra.Command{newConfigCmd(), newStatusCmd(), newVersionCmd()} {
		c.GroupID = groupAdmin
		root.AddCommand(c)
	}
	return root
}

// Execute runs the meetbot command line.
func Execute() error {
	return newRootCmd().Execute()
}
