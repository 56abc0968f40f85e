package util

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/ccledger/pkg/config"
	"github.com/sidkik/ccledger/pkg/errors"
	"github.com/sidkik/ccledger/pkg/ledger"
	"github.com/sidkik/ccledger/pkg/source"
)

// DataDirOverride is set by the persistent `--data-dir` flag. When it's
// non-empty it takes precedence over the data directory in the identity
// file.
var DataDirOverride string

// Mocked for unit testing.
var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// HandleFatalError handles errors that are severe enough to terminate the
// program.
func HandleFatalError(err error) {
	log.WithError(err).Debug("Fatal error")
	fmt.Fprintf(stderr, "ccledger: %s\n", errors.GetPrintableMessage(err))
	exit(1)
}

// HandlePanic catches panics, logs them along with the stack trace, and
// exits the program.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("stack", string(debug.Stack())).Errorf("Panic: %v", r)
		fmt.Fprintf(stderr, "ccledger crashed unexpectedly: %v\n", r)
		exit(1)
	}
}

// GetIdentity parses the identity file and applies DataDirOverride.
func GetIdentity() (config.Identity, error) {
	id, err := config.ParseIdentity()
	if err != nil {
		return config.Identity{}, err
	}

	if DataDirOverride != "" {
		id.DataDir = DataDirOverride
	}
	return id, nil
}

// NewLedger creates a Ledger for the machine described by `id`, backed by
// the real filesystem, clock and usage tool.
func NewLedger(id config.Identity) *ledger.Ledger {
	return ledger.New(config.Fs(), id.DataDir, source.NewCommand(id.SourceCommand),
		clockwork.NewRealClock(), log.StandardLogger())
}
