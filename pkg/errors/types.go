package errors

import (
	"fmt"
)

// MissingFieldError represents a missing required field.
type MissingFieldError struct {
	Field string
}

func (err MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", err.Field)
}

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// InvalidMachineID is returned when a machine identity can't be embedded in a
// record file name.
type InvalidMachineID struct {
	MachineID string
}

func (err InvalidMachineID) Error() string {
	return fmt.Sprintf("invalid machine id %q", err.MachineID)
}
