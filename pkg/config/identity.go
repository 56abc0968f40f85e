package config

import (
	"path/filepath"

	"github.com/ghodss/yaml"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"

	"github.com/sidkik/ccledger/pkg/errors"
)

const (
	// IdentityPath is the default path to the machine identity file. It
	// lives outside the data directory so that it's never exchanged with
	// other machines.
	IdentityPath = "~/.ccledger.yaml"

	// DefaultDataDir is where record files are kept when the identity file
	// doesn't specify a data directory.
	DefaultDataDir = "~/.ccledger/data"

	// InitialIdentityVersion is the first version of the identity file.
	// Files that do not specify a version default to this version.
	InitialIdentityVersion = "1.0"

	// CurrentIdentityVersion is the version written by this binary.
	CurrentIdentityVersion = "1.1"

	// SupportedIdentityVersions is the range of identity file versions this
	// binary can read.
	SupportedIdentityVersions = ">= 1.0, < 2.0"
)

// Identity identifies this machine, and where its records are shared.
type Identity struct {
	Version string `json:"version,omitempty"`

	// MachineID partitions record ownership. It never changes once it's
	// been set.
	MachineID string `json:"machineId"`

	// CloudDir is the shared directory used to exchange record files. If
	// it's empty, records are only kept locally.
	CloudDir string `json:"cloudDir,omitempty"`

	// DataDir overrides DefaultDataDir.
	DataDir string `json:"dataDir,omitempty"`

	// SourceCommand overrides the command used to list sessions.
	SourceCommand []string `json:"sourceCommand,omitempty"`
}

func (id Identity) getVersion() string {
	return id.Version
}

// homedirExpand will be overridden in mock tests
var homedirExpand = homedir.Expand

// ParseIdentity attempts to parse the Identity stored in the default path.
// The CloudDir and DataDir of the returned identity are expanded absolute
// paths.
func ParseIdentity() (Identity, error) {
	path, err := GetIdentityPath()
	if err != nil {
		return Identity{}, errors.WithContext(err, "expand identity path")
	}

	id := Identity{Version: InitialIdentityVersion}
	if err := parseConfig(path, &id, SupportedIdentityVersions); err != nil {
		if _, ok := errors.RootCause(err).(errors.FileNotFound); ok {
			return Identity{}, errors.NewFriendlyError("The ccledger identity "+
				"file doesn't exist at %q. Please run `ccledger config` to "+
				"name this machine.", path)
		}
		return Identity{}, errors.WithContext(err, "parse")
	}

	if id.MachineID == "" {
		return Identity{}, errors.NewFriendlyError("The ccledger identity "+
			"file at %q doesn't set a machineId. Please run `ccledger config` "+
			"to name this machine.", path)
	}

	if id.DataDir == "" {
		id.DataDir = DefaultDataDir
	}

	id.DataDir, err = expandPath(id.DataDir, path)
	if err != nil {
		return Identity{}, errors.WithContext(err, "expand data directory")
	}

	id.CloudDir, err = expandPath(id.CloudDir, path)
	if err != nil {
		return Identity{}, errors.WithContext(err, "expand cloud directory")
	}
	return id, nil
}

// expandPath expands `~`, and evaluates relative paths relative to the
// identity file.
func expandPath(path, identityPath string) (string, error) {
	if path == "" {
		return "", nil
	}

	path, err := homedirExpand(path)
	if err != nil {
		return "", err
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(identityPath), path)
	}
	return path, nil
}

// WriteIdentity writes the given identity to disk.
func WriteIdentity(id Identity) error {
	id.Version = CurrentIdentityVersion
	path, err := GetIdentityPath()
	if err != nil {
		return errors.WithContext(err, "expand identity path")
	}

	yamlBytes, err := yaml.Marshal(id)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := afero.WriteFile(fs, path, yamlBytes, 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

// GetIdentityPath returns the path to the identity file. This path is
// expanded, so it can be directly passed to file operations.
func GetIdentityPath() (string, error) {
	return homedirExpand(IdentityPath)
}
