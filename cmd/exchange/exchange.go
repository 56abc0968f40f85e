package exchange

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidkik/ccledger/cmd/util"
	"github.com/sidkik/ccledger/pkg/config"
	"github.com/sidkik/ccledger/pkg/errors"
	"github.com/sidkik/ccledger/pkg/replica"
)

type exchanger interface {
	RunExchangeCycle(localDir, sharedDir, machineID string) (replica.Result, error)
}

// Mocked for unit testing.
var (
	stdout      io.Writer = os.Stdout
	getIdentity           = util.GetIdentity
	newLedger             = func(id config.Identity) exchanger { return util.NewLedger(id) }
)

// New creates a new `exchange` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "exchange",
		Short: "Push this machine's records and pull everyone else's",
		Long: "Copy this machine's record file to the cloud directory, and copy the " +
			"record files of all other machines from the cloud directory into the " +
			"local data directory. No usage is recorded.",
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func run() error {
	id, err := getIdentity()
	if err != nil {
		return errors.WithContext(err, "read identity")
	}

	if id.CloudDir == "" {
		return errors.NewFriendlyError("No cloud directory is configured. " +
			"Run `ccledger config` to set one.")
	}

	res, err := newLedger(id).RunExchangeCycle(id.DataDir, id.CloudDir, id.MachineID)
	if err != nil {
		return errors.WithContext(err, "exchange")
	}

	fmt.Fprintln(stdout, res)
	for _, skipped := range res.Pull.Skipped {
		fmt.Fprintf(stdout, "  skipped %s: %s\n", skipped.Path, skipped.Err)
	}
	return nil
}
