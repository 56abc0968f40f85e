package source

import (
	"context"
	"os/exec"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/ccledger/pkg/errors"
	"github.com/sidkik/ccledger/pkg/record"
)

// Source returns the sessions currently reported by the usage tool.
type Source interface {
	Sessions(ctx context.Context) ([]record.Observation, error)
}

// DefaultCommand is the command used to list sessions when the identity
// file doesn't override it.
var DefaultCommand = []string{"npx", "--yes", "ccusage@latest", "session", "--json"}

// DefaultTimeout bounds how long the usage tool may run.
const DefaultTimeout = 2 * time.Minute

// Command is a Source that shells out to the usage tool and parses its JSON
// output.
type Command struct {
	Args    []string
	Timeout time.Duration
}

// NewCommand creates a Command source. An empty `args` selects
// DefaultCommand.
func NewCommand(args []string) Command {
	if len(args) == 0 {
		args = DefaultCommand
	}
	return Command{Args: args, Timeout: DefaultTimeout}
}

// waitDelay bounds how long to wait for the usage tool's output to be closed
// after it's been killed. Children of the tool (e.g. the node process started
// by npx) may otherwise hold the pipe open after the tool itself exits.
const waitDelay = time.Second

// Mocked out for unit testing.
var runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	killProcessGroupOnCancel(cmd)
	cmd.WaitDelay = waitDelay
	return cmd.Output()
}

// Sessions runs the usage tool. If the tool isn't installed, there are no
// observations and no error.
func (c Command) Sessions(ctx context.Context) ([]record.Observation, error) {
	if len(c.Args) == 0 {
		return nil, errors.MissingFieldError{Field: "command"}
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := runCommand(ctx, c.Args[0], c.Args[1:]...)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			log.WithField("command", c.Args[0]).Debug(
				"Usage tool not installed. Treating as no observations.")
			return nil, nil
		}

		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) != 0 {
			log.WithField("stderr", string(exitErr.Stderr)).Debug("Usage tool failed")
		}
		return nil, errors.WithContext(err, "run usage tool")
	}

	observations, err := ParseSessions(out)
	if err != nil {
		return nil, errors.WithContext(err, "parse usage tool output")
	}
	return observations, nil
}
