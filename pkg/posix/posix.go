// Package posix contains cross-platform implementations of the few POSIX file commands
// that task scripts rely on (rm, mv and mkdir). They are run in-process by the task
// runner so that scripts behave the same on every platform.
package posix

import (
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rotisserie/eris"
	"github.com/spf13/pflag"
)

// Commands lists the command names handled by Run
var Commands = map[string]func(dir string, args []string) error{
	"rm":    Remove,
	"mv":    Move,
	"mkdir": Mkdir,
}

// Run executes args[0] if it's one of the supported commands. handled is false if
// the command isn't one of ours.
func Run(dir string, args []string) (handled bool, err error) {
	if len(args) == 0 {
		return false, nil
	}

	impl, ok := Commands[args[0]]
	if !ok {
		return false, nil
	}

	return true, impl(dir, args[1:])
}

func newFlagSet(name string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	return flags
}

func resolve(dir, item string) string {
	if filepath.IsAbs(item) || dir == "" {
		return item
	}
	return filepath.Join(dir, item)
}

// expandArgs resolves glob patterns on Windows since cmd.exe doesn't do that for us
func expandArgs(dir string, args []string, allowEmpty bool) ([]string, error) {
	items := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == "" {
			if allowEmpty {
				continue
			}
			return nil, eris.New("empty path")
		}

		arg = resolve(dir, arg)
		if runtime.GOOS != "windows" {
			items = append(items, arg)
			continue
		}

		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, eris.Wrapf(err, "Failed to resolve pattern %s", arg)
		}

		if matches == nil {
			if allowEmpty {
				continue
			}
			return nil, eris.Errorf("Pattern %s produced no matches", arg)
		}

		items = append(items, matches...)
	}

	return items, nil
}

// Remove implements rm [-r] [-f] paths...
func Remove(dir string, args []string) error {
	flags := newFlagSet("rm")
	recursive := flags.BoolP("recursive", "r", false, "recursively delete directories")
	force := flags.BoolP("force", "f", false, "suppresses errors caused by missing files/folders")
	flags.BoolP("dir", "d", false, "ignored")
	if err := flags.Parse(args); err != nil {
		return eris.Wrap(err, "rm")
	}

	items, err := expandArgs(dir, flags.Args(), *force)
	if err != nil {
		return err
	}

	for _, item := range items {
		info, err := os.Lstat(item)
		if err != nil {
			if *force && eris.Is(err, os.ErrNotExist) {
				continue
			}
			return eris.Wrapf(err, "Could not stat %s", item)
		}

		if info.IsDir() && !*recursive {
			return eris.Errorf("%s is a directory but -r wasn't passed", item)
		}
	}

	for _, item := range items {
		err := os.RemoveAll(item)
		if err != nil && (!*force || !eris.Is(err, os.ErrNotExist)) {
			return eris.Wrapf(err, "Could not delete %s", item)
		}
	}

	return nil
}

// Move implements mv source... dest
func Move(dir string, args []string) error {
	flags := newFlagSet("mv")
	flags.BoolP("force", "f", false, "ignored; existing files are always replaced")
	if err := flags.Parse(args); err != nil {
		return eris.Wrap(err, "mv")
	}

	args = flags.Args()
	if len(args) < 2 {
		return eris.New("Not enough parameters")
	}

	dest := filepath.Clean(resolve(dir, args[len(args)-1]))
	destParent := filepath.Dir(dest)
	info, err := os.Stat(destParent)
	if err != nil {
		return eris.Wrapf(err, "Could not find destination directory %s", destParent)
	}

	if !info.IsDir() {
		return eris.Errorf("%s is not a directory!", destParent)
	}

	destIsDir := false
	info, err = os.Stat(dest)
	if err == nil {
		destIsDir = info.IsDir()
	} else if !eris.Is(err, os.ErrNotExist) {
		return eris.Wrapf(err, "Failed to retrieve info about destination %s", dest)
	}

	if len(args) > 2 && !destIsDir {
		return eris.Errorf("Can't move multiple items to %s because it is not a directory!", dest)
	}

	items, err := expandArgs(dir, args[:len(args)-1], false)
	if err != nil {
		return err
	}

	for _, item := range items {
		itemDest := dest
		if destIsDir {
			itemDest = filepath.Join(dest, filepath.Base(item))
		}

		err = os.Rename(item, itemDest)
		if err != nil {
			return eris.Wrapf(err, "Failed to move %s to %s", item, itemDest)
		}
	}

	return nil
}

// Mkdir implements mkdir [-p] paths...
func Mkdir(dir string, args []string) error {
	flags := newFlagSet("mkdir")
	makeParents := flags.BoolP("parents", "p", false, "create parent directories as needed")
	if err := flags.Parse(args); err != nil {
		return eris.Wrap(err, "mkdir")
	}

	for _, item := range flags.Args() {
		item = resolve(dir, item)

		var err error
		if *makeParents {
			err = os.MkdirAll(item, 0770)
		} else {
			err = os.Mkdir(item, 0770)
		}

		if err != nil {
			return eris.Wrapf(err, "Failed to create %s", item)
		}
	}

	return nil
}
