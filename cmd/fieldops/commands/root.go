package commands

import (
	"github.com/nadmax/fieldops/internal/config"
	"github.com/nadmax/fieldops/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "fieldops",
	Short: "Task reporting backend for the field-service portal",
	Long: `fieldops serves task statistics, CSV exports and account operations for the
field-service portal, and runs the worker that processes asynchronous exports.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("command", cmd.Name()).
			Msg("fieldops starting")
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(serveCmd, workerCmd, exportCmd, inspectCmd)
}
