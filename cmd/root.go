package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	configCmd "github.com/sidkik/ccledger/cmd/config"
	"github.com/sidkik/ccledger/cmd/exchange"
	"github.com/sidkik/ccledger/cmd/report"
	"github.com/sidkik/ccledger/cmd/sync"
	"github.com/sidkik/ccledger/cmd/util"
	"github.com/sidkik/ccledger/cmd/version"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "CCLEDGER_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	if os.Getenv(verboseLogKey) == "true" {
		log.SetLevel(log.DebugLevel)
	}

	rootCmd := &cobra.Command{
		Use:   "ccledger",
		Short: "Track coding assistant usage across machines",
		Long: "ccledger records the usage sessions of this machine, and exchanges " +
			"them with your other machines through a shared cloud directory.",
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&util.DataDirOverride, "data-dir", "",
		"Override the directory that record files are kept in.")
	rootCmd.AddCommand(
		configCmd.New(),
		exchange.New(),
		report.New(),
		sync.New(),
		version.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		util.HandleFatalError(err)
	}
}
