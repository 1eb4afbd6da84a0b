package cmd

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

// projectMarkers identify the root of a Python project
var projectMarkers = []string{"pytask.toml", "setup.py", "setup.cfg", "pyproject.toml"}

func projectRoot(cmd *cobra.Command) (string, error) {
	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return "", err
	}

	if dir != "" {
		dir, err = filepath.Abs(dir)
		if err != nil {
			return "", eris.Wrapf(err, "failed to resolve %s", dir)
		}

		info, err := os.Stat(dir)
		if err != nil {
			return "", eris.Wrapf(err, "could not find project directory %s", dir)
		}

		if !info.IsDir() {
			return "", eris.Errorf("%s is not a directory", dir)
		}
		return dir, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", eris.Wrap(err, "failed to retrieve the current working directory")
	}

	return findProjectRoot(wd)
}

// findProjectRoot walks up from start until it finds a directory with one of the project markers.
// If none is found, start is returned.
func findProjectRoot(start string) (string, error) {
	path := start
	for {
		for _, marker := range projectMarkers {
			_, err := os.Stat(filepath.Join(path, marker))
			if err == nil {
				return path, nil
			}

			if !eris.Is(err, os.ErrNotExist) {
				return "", eris.Wrap(err, "error occurred while searching for the project root")
			}
		}

		parent := filepath.Dir(path)
		if parent == path {
			return start, nil
		}
		path = parent
	}
}
