package record

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/ccledger/pkg/errors"
)

// Warning describes a recoverable problem with a record file. The file was
// treated as absent.
type Warning struct {
	Path string
	Err  error
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s: %s", w.Path, w.Err)
}

// LoadResult is the outcome of loading a record set. If the file couldn't be
// read or parsed, RecordSet is empty and Warning explains why.
type LoadResult struct {
	RecordSet RecordSet
	Warning   *Warning
}

// OK returns whether the record set was loaded without any problems.
func (res LoadResult) OK() bool {
	return res.Warning == nil
}

// Store persists the record sets in a data directory, one file per machine.
type Store struct {
	fs  afero.Fs
	dir string
}

// NewStore creates a Store that keeps its files in `dir`.
func NewStore(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, dir: dir}
}

// Path returns the path to the record file owned by `machineID`.
func (s *Store) Path(machineID string) string {
	return filepath.Join(s.dir, FileName(machineID))
}

// Load reads the record set for `machineID`. A missing file results in an
// empty record set. Unreadable or corrupt files also result in an empty
// record set, along with a warning.
func (s *Store) Load(machineID string) LoadResult {
	if err := ValidateMachineID(machineID); err != nil {
		return LoadResult{
			RecordSet: NewRecordSet(),
			Warning:   &Warning{Path: s.dir, Err: err},
		}
	}

	path := s.Path(machineID)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", path).Debug("No record file yet. Starting from an empty record set.")
			return LoadResult{RecordSet: NewRecordSet()}
		}
		return LoadResult{
			RecordSet: NewRecordSet(),
			Warning:   &Warning{Path: path, Err: errors.WithContext(err, "read")},
		}
	}

	set, err := Parse(data)
	if err != nil {
		return LoadResult{
			RecordSet: NewRecordSet(),
			Warning:   &Warning{Path: path, Err: errors.WithContext(err, "parse")},
		}
	}
	return LoadResult{RecordSet: set}
}

// Save writes the record set for `machineID`, creating the data directory
// if necessary. The file is replaced as a whole, so readers never observe a
// partially written record set.
func (s *Store) Save(set RecordSet, machineID string) error {
	if err := ValidateMachineID(machineID); err != nil {
		return err
	}

	data, err := Marshal(set)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return errors.WithContext(err, "create data directory")
	}

	if err := WriteFile(s.fs, s.Path(machineID), data); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

// LoadAll loads the record set of every machine with a file in the data
// directory. Files that can't be loaded are skipped and returned as
// warnings. A missing data directory results in no record sets.
func (s *Store) LoadAll() (map[string]RecordSet, []Warning, error) {
	sets := map[string]RecordSet{}
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return sets, nil, nil
		}
		return nil, nil, errors.WithContext(err, "read data directory")
	}

	var warnings []Warning
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		machineID, ok := MachineIDFromFileName(entry.Name())
		if !ok {
			continue
		}

		res := s.Load(machineID)
		if !res.OK() {
			log.WithError(res.Warning.Err).WithField("path", res.Warning.Path).Warn(
				"Skipping unreadable record file")
			warnings = append(warnings, *res.Warning)
			continue
		}
		sets[machineID] = res.RecordSet
	}
	return sets, warnings, nil
}

// WriteFile replaces the file at `path` with `data`. The contents are first
// written to a hidden temporary file in the same directory, which is then
// renamed over `path`.
func WriteFile(fs afero.Fs, path string, data []byte) error {
	tmpPath := filepath.Join(filepath.Dir(path),
		fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))
	if err := afero.WriteFile(fs, tmpPath, data, 0644); err != nil {
		removeTempFile(fs, tmpPath)
		return errors.WithContext(err, "write temporary file")
	}

	if err := fs.Rename(tmpPath, path); err != nil {
		removeTempFile(fs, tmpPath)
		return errors.WithContext(err, "rename")
	}
	return nil
}

func removeTempFile(fs afero.Fs, path string) {
	if err := fs.Remove(path); err != nil && !os.IsNotExist(err) {
		log.WithError(err).WithField("path", path).Warn(
			"Failed to clean up temporary file")
	}
}
