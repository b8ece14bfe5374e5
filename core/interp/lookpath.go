package interp

import "github.com/spf13/afero"

// isExecutable reports whether path names an executable, non-directory file.
func isExecutable(fs afero.Fs, path string) bool {
	fi, err := fs.Stat(path)
	return err == nil && !fi.IsDir() && fi.Mode()&0111 != 0
}
