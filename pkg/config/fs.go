package config

import "github.com/spf13/afero"

// fs is used for mock tests. It will be overridden by afero.NewMemMapFs()
// in the tests.
var fs = afero.NewOsFs()

// Fs returns the filesystem used for the identity file and the directories
// it points to.
func Fs() afero.Fs {
	return fs
}
