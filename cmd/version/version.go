package version

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidkik/ccledger/pkg/config"
	"github.com/sidkik/ccledger/pkg/version"
)

// Mocked for unit testing.
var stdout io.Writer = os.Stdout

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of ccledger.",
		Long: "Print the version of ccledger, and the identity file version " +
			"it writes.",
		Run: func(_ *cobra.Command, _ []string) {
			run()
		},
	}
}

func run() {
	fmt.Fprintf(stdout, "version:          %s\n", version.Version)
	fmt.Fprintf(stdout, "identity version: %s (reads %s)\n",
		config.CurrentIdentityVersion, config.SupportedIdentityVersions)
}
