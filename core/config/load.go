package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Load reads the configuration from the given directory. A missing file
// yields the defaults; a malformed or invalid file is an error.
func Load(fs afero.Fs, path string) (*Configuration, error) {
	// If given the path to a ush.yaml file, move back up a level.
	if filepath.Base(path) == ConfigurationName {
		path = filepath.Dir(path)
	}

	out := Default()

	contents, err := afero.ReadFile(fs, filepath.Join(path, ConfigurationName))
	switch {
	case os.IsNotExist(err):
		return out, nil
	case err != nil:
		return nil, err
	}

	if err := yaml.UnmarshalStrict(contents, out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
