package sync

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/ccledger/cmd/util"
	"github.com/sidkik/ccledger/pkg/config"
	"github.com/sidkik/ccledger/pkg/errors"
	"github.com/sidkik/ccledger/pkg/ledger"
	"github.com/sidkik/ccledger/pkg/replica"
)

// defaultInterval is how often `sync --watch` runs a cycle when no peer
// changes are seen.
const defaultInterval = 5 * time.Minute

// cycleRunner is the part of ledger.Ledger used by the sync command.
type cycleRunner interface {
	RunSyncCycle(ctx context.Context, machineID string) (ledger.SyncResult, error)
	RunExchangeCycle(localDir, sharedDir, machineID string) (replica.Result, error)
}

// Mocked for unit testing.
var (
	getIdentity = util.GetIdentity
	newLedger   = func(id config.Identity) cycleRunner { return util.NewLedger(id) }
	watchShared = replica.Watch
)

type options struct {
	watch      bool
	noExchange bool
	interval   time.Duration
}

// New creates a new `sync` command.
func New() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Record this machine's usage and exchange records with other machines",
		Long: "Fetch the current sessions from the usage tool, merge them into " +
			"this machine's records, and then push them to the cloud directory " +
			"and pull the records of every other machine.",
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(opts); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false,
		"Keep running, and sync periodically and whenever another machine pushes records.")
	cmd.Flags().BoolVar(&opts.noExchange, "no-exchange", false,
		"Only update the local records. Don't push or pull.")
	cmd.Flags().DurationVar(&opts.interval, "interval", defaultInterval,
		"How often to sync when running with --watch.")
	return cmd
}

func run(opts options) error {
	if opts.watch && opts.interval <= 0 {
		return errors.NewFriendlyError("The sync interval must be positive, but got %s.", opts.interval)
	}

	id, err := getIdentity()
	if err != nil {
		return errors.WithContext(err, "read identity")
	}

	s := syncer{
		ledger:   newLedger(id),
		id:       id,
		exchange: !opts.noExchange,
		clock:    clockwork.NewRealClock(),
		log:      log.StandardLogger(),
	}
	if !s.exchanging() && s.exchange {
		log.Info("No cloud directory is configured, so records are only kept locally. " +
			"Run `ccledger config` to set one.")
	}

	if !opts.watch {
		return s.runOnce(context.Background())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The first cycle creates the cloud directory, so it needs to run before
	// the directory can be watched.
	if err := s.runOnce(ctx); err != nil {
		return err
	}

	var peerChanges <-chan struct{}
	if s.exchanging() {
		changes, closer, err := watchShared(id.CloudDir, id.MachineID)
		if err != nil {
			log.WithError(err).Warnf("Failed to watch the cloud directory for changes. "+
				"Other machines' records will be pulled every %s instead.", opts.interval)
		} else {
			defer closer.Close()
			peerChanges = changes
		}
	}
	return s.run(ctx, opts.interval, peerChanges)
}

type syncer struct {
	ledger   cycleRunner
	id       config.Identity
	exchange bool
	clock    clockwork.Clock
	log      *log.Logger
}

func (s syncer) exchanging() bool {
	return s.exchange && s.id.CloudDir != ""
}

// runOnce runs a single sync cycle, followed by an exchange if one is
// configured.
func (s syncer) runOnce(ctx context.Context) error {
	if _, err := s.ledger.RunSyncCycle(ctx, s.id.MachineID); err != nil {
		return errors.WithContext(err, "sync")
	}

	if !s.exchanging() {
		return nil
	}

	if _, err := s.ledger.RunExchangeCycle(s.id.DataDir, s.id.CloudDir, s.id.MachineID); err != nil {
		return errors.WithContext(err, "exchange")
	}
	return nil
}

// run runs a cycle every `interval`, and whenever `peerChanges` fires, until
// `ctx` is cancelled. Failed cycles are logged and retried on the next
// iteration.
func (s syncer) run(ctx context.Context, interval time.Duration, peerChanges <-chan struct{}) error {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
		case <-peerChanges:
			s.log.Debug("Peer records changed")
		}

		if err := s.runOnce(ctx); err != nil {
			s.log.WithError(err).Warn("Sync failed. It will be retried during the next cycle.")
		}
	}
}
