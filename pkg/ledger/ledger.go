// Package ledger runs the sync and exchange cycles that keep a machine's
// usage records up to date, and builds the combined view across machines.
package ledger

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/ccledger/pkg/errors"
	"github.com/sidkik/ccledger/pkg/record"
	"github.com/sidkik/ccledger/pkg/replica"
	"github.com/sidkik/ccledger/pkg/source"
)

// Ledger ties together the usage source, the local record store, and the
// replica exchange.
type Ledger struct {
	fs     afero.Fs
	store  *record.Store
	source source.Source
	clock  clockwork.Clock
	log    *logrus.Logger
}

// SyncResult is the outcome of a single sync cycle.
type SyncResult struct {
	RecordSet record.RecordSet
	Report    record.MergeReport

	// Warnings contains problems that were recovered from during the cycle,
	// such as a corrupt local record file.
	Warnings []record.Warning
}

// Summary returns a human readable description of the merge.
func (res SyncResult) Summary() string {
	return res.Report.String()
}

// New creates a Ledger that keeps record files in `dataDir`.
func New(fs afero.Fs, dataDir string, src source.Source, clock clockwork.Clock,
	logger *logrus.Logger) *Ledger {
	return &Ledger{
		fs:     fs,
		store:  record.NewStore(fs, dataDir),
		source: src,
		clock:  clock,
		log:    logger,
	}
}

// RunSyncCycle fetches the current sessions from the usage source, merges
// them into the record set owned by `machineID`, and saves the result.
//
// A failing source doesn't fail the cycle. Instead, it's logged and the
// merge runs with no observations, so the sync is still recorded.
func (l *Ledger) RunSyncCycle(ctx context.Context, machineID string) (SyncResult, error) {
	if err := record.ValidateMachineID(machineID); err != nil {
		return SyncResult{}, err
	}

	observations, err := l.source.Sessions(ctx)
	if err != nil {
		l.log.WithError(err).Warn("Failed to get sessions from the usage tool. " +
			"Recording an empty sync.")
		observations = nil
	}

	var warnings []record.Warning
	loaded := l.store.Load(machineID)
	if !loaded.OK() {
		l.log.WithError(loaded.Warning.Err).WithField("path", loaded.Warning.Path).Warn(
			"Failed to load local records. Starting from an empty record set.")
		warnings = append(warnings, *loaded.Warning)
	}

	merged, report := record.Merge(loaded.RecordSet, observations, l.clock.Now())
	if err := l.store.Save(merged, machineID); err != nil {
		return SyncResult{}, errors.WithContext(err, "save records")
	}

	l.log.WithField("machine", machineID).Info(report.String())
	return SyncResult{
		RecordSet: merged,
		Report:    report,
		Warnings:  warnings,
	}, nil
}

// RunExchangeCycle pushes the local record file of `machineID` to
// `sharedDir`, and pulls the record files of all other machines into
// `localDir`. Running it repeatedly without intervening changes has no
// further effect.
func (l *Ledger) RunExchangeCycle(localDir, sharedDir, machineID string) (replica.Result, error) {
	res, err := replica.New(l.fs, localDir, sharedDir).Exchange(machineID)
	if err != nil {
		return res, err
	}

	l.log.WithFields(logrus.Fields{
		"machine":   machineID,
		"sharedDir": sharedDir,
	}).Info(res.String())
	return res, nil
}

// AggregateAll returns the combined records of every machine with a record
// file in the data directory. Corrupt files are left out of the view and
// returned as warnings.
func (l *Ledger) AggregateAll() (map[string]record.OwnedRecord, []record.Warning, error) {
	sets, warnings, err := l.store.LoadAll()
	if err != nil {
		return nil, nil, errors.WithContext(err, "load records")
	}
	return record.Aggregate(sets), warnings, nil
}
