package replica

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/ccledger/pkg/errors"
	"github.com/sidkik/ccledger/pkg/record"
)

// Engine exchanges record files between a local data directory and a shared
// directory.
type Engine struct {
	fs        afero.Fs
	localDir  string
	sharedDir string
}

// New creates an Engine for the given directories.
func New(fs afero.Fs, localDir, sharedDir string) *Engine {
	return &Engine{fs: fs, localDir: localDir, sharedDir: sharedDir}
}

// PushResult is the outcome of a push.
type PushResult struct {
	// Pushed is false if there was no local record file to push.
	Pushed bool

	// Warning is set if the local record file exists but couldn't be read.
	Warning *record.Warning
}

// PullResult is the outcome of a pull. Peers are identified by machine ID.
type PullResult struct {
	// Changed contains the peers whose local copy was created or modified.
	Changed []string

	// Unchanged contains the peers whose local copy already matched the
	// shared file. Their local copy is still rewritten.
	Unchanged []string

	// Skipped contains the peer files that couldn't be pulled.
	Skipped []record.Warning
}

// Result is the outcome of an exchange.
type Result struct {
	Push PushResult
	Pull PullResult
}

func (res Result) String() string {
	pushed := "nothing to push"
	if res.Push.Pushed {
		pushed = "pushed local records"
	}
	return fmt.Sprintf("%s; pulled %d peers (%d changed), skipped %d",
		pushed, len(res.Pull.Changed)+len(res.Pull.Unchanged),
		len(res.Pull.Changed), len(res.Pull.Skipped))
}

// Exchange pushes the local record file of `machineID`, and then pulls the
// record files of all other machines. The pull runs even if the push fails,
// in which case the push error is returned.
func (e *Engine) Exchange(machineID string) (Result, error) {
	push, pushErr := e.Push(machineID)
	pull, pullErr := e.Pull(machineID)
	res := Result{Push: push, Pull: pull}

	if pushErr != nil {
		if pullErr != nil {
			log.WithError(pullErr).Warn("Pull failed after a failed push")
		}
		return res, errors.WithContext(pushErr, "push")
	}
	if pullErr != nil {
		return res, errors.WithContext(pullErr, "pull")
	}
	return res, nil
}

// Push copies the local record file of `machineID` into the shared
// directory, replacing any existing copy. The shared directory is created if
// it doesn't exist. It's a no-op if there's no local record file yet.
func (e *Engine) Push(machineID string) (PushResult, error) {
	if err := record.ValidateMachineID(machineID); err != nil {
		return PushResult{}, err
	}

	if err := e.fs.MkdirAll(e.sharedDir, 0755); err != nil {
		return PushResult{}, errors.WithContext(err, "create shared directory")
	}

	localPath := filepath.Join(e.localDir, record.FileName(machineID))
	data, err := afero.ReadFile(e.fs, localPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", localPath).Debug("No local record file to push")
			return PushResult{}, nil
		}

		warning := record.Warning{Path: localPath, Err: errors.WithContext(err, "read")}
		log.WithError(err).WithField("path", localPath).Warn(
			"Failed to read local record file. It will be pushed during the next exchange.")
		return PushResult{Warning: &warning}, nil
	}

	sharedPath := filepath.Join(e.sharedDir, record.FileName(machineID))
	if err := record.WriteFile(e.fs, sharedPath, data); err != nil {
		return PushResult{}, errors.WithContext(err, fmt.Sprintf("write %s", sharedPath))
	}
	return PushResult{Pushed: true}, nil
}

// Pull copies the record files of every machine other than `machineID` from
// the shared directory into the local directory. Files that can't be read or
// parsed are skipped without affecting the other peers. It's a no-op if the
// shared directory doesn't exist.
func (e *Engine) Pull(machineID string) (PullResult, error) {
	if err := record.ValidateMachineID(machineID); err != nil {
		return PullResult{}, err
	}

	exists, err := afero.DirExists(e.fs, e.sharedDir)
	if err != nil {
		return PullResult{}, errors.WithContext(err, "stat shared directory")
	}
	if !exists {
		log.WithField("path", e.sharedDir).Debug("Shared directory doesn't exist. Nothing to pull.")
		return PullResult{}, nil
	}

	if err := e.fs.MkdirAll(e.localDir, 0755); err != nil {
		return PullResult{}, errors.WithContext(err, "create local directory")
	}

	entries, err := afero.ReadDir(e.fs, e.sharedDir)
	if err != nil {
		return PullResult{}, errors.WithContext(err, "read shared directory")
	}

	var res PullResult
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		peer, ok := record.MachineIDFromFileName(entry.Name())
		if !ok || peer == machineID {
			continue
		}

		changed, err := e.pullPeer(entry.Name())
		if err != nil {
			sharedPath := filepath.Join(e.sharedDir, entry.Name())
			log.WithError(err).WithField("path", sharedPath).Warn(
				"Skipping peer record file. It will be retried during the next exchange.")
			res.Skipped = append(res.Skipped, record.Warning{Path: sharedPath, Err: err})
			continue
		}

		if changed {
			res.Changed = append(res.Changed, peer)
		} else {
			res.Unchanged = append(res.Unchanged, peer)
		}
	}
	return res, nil
}

// pullPeer copies a single peer file and returns whether its contents differ
// from the previous local copy.
func (e *Engine) pullPeer(name string) (bool, error) {
	sharedPath := filepath.Join(e.sharedDir, name)
	data, err := afero.ReadFile(e.fs, sharedPath)
	if err != nil {
		return false, errors.WithContext(err, "read")
	}

	if _, err := record.Parse(data); err != nil {
		return false, errors.WithContext(err, "parse")
	}

	localPath := filepath.Join(e.localDir, name)
	changed := true
	if prev, err := afero.ReadFile(e.fs, localPath); err == nil {
		changed = xxhash.Sum64(prev) != xxhash.Sum64(data)
	}

	if err := record.WriteFile(e.fs, localPath, data); err != nil {
		return false, errors.WithContext(err, "write")
	}
	return changed, nil
}
