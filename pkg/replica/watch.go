package replica

import (
	"io"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/ccledger/pkg/errors"
	"github.com/sidkik/ccledger/pkg/record"
)

// Watch watches `dir` for changes to the record files of machines other than
// `machineID`. It sends an event on the returned channel whenever a peer's
// record file in the directory is created, written, renamed or removed.
// Bursts of changes are coalesced into a single event. The returned Closer
// stops the watch.
func Watch(dir, machineID string) (<-chan struct{}, io.Closer, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, errors.WithContext(err, "create watcher")
	}

	if err := watcher.Add(dir); err != nil {
		// Close the watcher so that we release its file handles.
		if err := watcher.Close(); err != nil {
			log.WithError(err).Warn("Failed to close file watcher")
		}
		return nil, nil, errors.WithContext(err, "watch directory")
	}

	go func() {
		for err := range watcher.Errors {
			log.WithError(err).Debug("File watcher error")
		}
	}()
	return combineUpdates(watcher.Events, machineID), watcher, nil
}

func combineUpdates(updates <-chan fsnotify.Event, machineID string) chan struct{} {
	combined := make(chan struct{}, 1)
	go func() {
		for event := range updates {
			if !isPeerEvent(event, machineID) {
				continue
			}

			select {
			case combined <- struct{}{}:
			default:
			}
		}
	}()
	return combined
}

// isPeerEvent returns whether `event` changed the record file of a machine
// other than `machineID`. Our own pushes shouldn't trigger another cycle.
func isPeerEvent(event fsnotify.Event, machineID string) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}

	owner, ok := record.MachineIDFromFileName(filepath.Base(event.Name))
	return ok && owner != machineID
}
