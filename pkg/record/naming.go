package record

import (
	"regexp"
	"strings"

	"github.com/sidkik/ccledger/pkg/errors"
)

const (
	// FilePrefix and FileSuffix surround the machine identity in the name of
	// every record file, both in the data directory and the shared directory.
	FilePrefix = "usage-"
	FileSuffix = ".json"
)

var machineIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateMachineID returns an error if `id` can't be used as part of a
// record file name.
func ValidateMachineID(id string) error {
	if !machineIDPattern.MatchString(id) {
		return errors.InvalidMachineID{MachineID: id}
	}
	return nil
}

// FileName returns the name of the record file owned by `machineID`.
func FileName(machineID string) string {
	return FilePrefix + machineID + FileSuffix
}

// MachineIDFromFileName returns the machine that owns the record file named
// `name`. It returns false if the name doesn't follow the record file
// naming convention.
func MachineIDFromFileName(name string) (string, bool) {
	if !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, FileSuffix) {
		return "", false
	}

	id := strings.TrimSuffix(strings.TrimPrefix(name, FilePrefix), FileSuffix)
	if ValidateMachineID(id) != nil {
		return "", false
	}
	return id, true
}
