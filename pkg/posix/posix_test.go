package posix

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestRemoveForceIgnoresMissing(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "build", "lib", "a.py"))

	require.NoError(t, Remove(dir, []string{"-rf", "build", "dist"}))
	assert.NoDirExists(t, filepath.Join(dir, "build"))

	// second pass has nothing left to delete
	require.NoError(t, Remove(dir, []string{"-rf", "build", "dist"}))
}

func TestRemoveMissingWithoutForce(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, Remove(dir, []string{"nope"}))
}

func TestRemoveDirectoryNeedsRecursive(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "build", "a"))

	err := Remove(dir, []string{"build"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-r wasn't passed")
	assert.DirExists(t, filepath.Join(dir, "build"))
}

func TestMkdirParents(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, Mkdir(dir, []string{"-p", "a/b/c"}))
	assert.DirExists(t, filepath.Join(dir, "a", "b", "c"))

	assert.Error(t, Mkdir(dir, []string{"x/y"}))
}

func TestMove(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.txt"))
	touch(t, filepath.Join(dir, "b.txt"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "out"), 0o755))

	require.NoError(t, Move(dir, []string{"a.txt", "b.txt", "out"}))
	assert.FileExists(t, filepath.Join(dir, "out", "a.txt"))
	assert.FileExists(t, filepath.Join(dir, "out", "b.txt"))

	require.NoError(t, Move(dir, []string{"out/a.txt", "renamed.txt"}))
	assert.FileExists(t, filepath.Join(dir, "renamed.txt"))

	assert.Error(t, Move(dir, []string{"renamed.txt", "out/b.txt", "renamed.txt"}))
}

func TestRunDispatch(t *testing.T) {
	dir := t.TempDir()

	handled, err := Run(dir, []string{"mkdir", "x"})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.DirExists(t, filepath.Join(dir, "x"))

	handled, err = Run(dir, []string{"python3", "-V"})
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestRemoveEmptyPath(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "src", "keep.py"))

	// without -f an empty argument is an error
	err := Remove(dir, []string{"-r", ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty path")

	// with -f it is skipped and the working directory stays intact
	require.NoError(t, Remove(dir, []string{"-rf", ""}))
	assert.FileExists(t, filepath.Join(dir, "src", "keep.py"))

	assert.Error(t, Move(dir, []string{"", "src"}))
}
