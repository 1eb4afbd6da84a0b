package buildsys

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mvdan.cc/sh/v3/interp"
)

func testCtx() context.Context {
	logger := zerolog.Nop()
	return WithLogger(context.Background(), &logger)
}

func readLog(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "log.txt"))
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func logTask(dir, name string, deps ...string) *Task {
	return &Task{
		Short: name,
		Base:  dir,
		Deps:  deps,
		Cmds:  Script(name, "echo "+name+" >> log.txt"),
	}
}

type recorder struct {
	calls [][]string
	fail  map[string]uint8
}

func (r *recorder) handler(ctx context.Context, args []string) error {
	r.calls = append(r.calls, args)
	if status, ok := r.fail[args[0]]; ok {
		return interp.NewExitStatus(status)
	}

	hc := interp.HandlerCtx(ctx)
	fmt.Fprintf(hc.Stdout, "%s ran\n", args[0])
	return nil
}

func TestRunTaskRunsDepsFirst(t *testing.T) {
	dir := t.TempDir()
	tasks := TaskList{}
	tasks.Add(logTask(dir, "build"))
	tasks.Add(logTask(dir, "install", "build"))

	require.NoError(t, RunTask(testCtx(), dir, "install", tasks, RunOptions{}))
	assert.Equal(t, "build\ninstall\n", readLog(t, dir))
}

func TestRunTasksSharesDependencies(t *testing.T) {
	dir := t.TempDir()
	tasks := TaskList{}
	tasks.Add(logTask(dir, "clean"))
	tasks.Add(logTask(dir, "a", "clean"))
	tasks.Add(logTask(dir, "b", "clean", "a"))

	require.NoError(t, RunTasks(testCtx(), dir, []string{"a", "b"}, tasks, RunOptions{}))
	assert.Equal(t, "clean\na\nb\n", readLog(t, dir))
}

func TestRunTaskStopsAtFirstFailure(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{fail: map[string]uint8{"setup": 3}}

	tasks := TaskList{}
	tasks.Add(&Task{
		Short: "build",
		Base:  dir,
		Cmds:  Script("build", "echo build >> log.txt", "setup sdist", "echo unreachable >> log.txt"),
	})
	tasks.Add(logTask(dir, "install", "build"))

	err := RunTask(testCtx(), dir, "install", tasks, RunOptions{ExecHandler: rec.handler})
	require.Error(t, err)

	status, ok := interp.IsExitStatus(err)
	require.True(t, ok)
	assert.Equal(t, uint8(3), status)
	assert.Equal(t, "build\n", readLog(t, dir))
	assert.Equal(t, [][]string{{"setup", "sdist"}}, rec.calls)
}

func TestRunTaskDetectsCycles(t *testing.T) {
	dir := t.TempDir()
	tasks := TaskList{}
	tasks.Add(logTask(dir, "a", "b"))
	tasks.Add(logTask(dir, "b", "c"))
	tasks.Add(logTask(dir, "c", "a"))

	err := RunTask(testCtx(), dir, "a", tasks, RunOptions{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrCycle))
	assert.Contains(t, err.Error(), "a -> b -> c -> a")
	assert.Empty(t, readLog(t, dir))
}

func TestRunTaskUnknownNames(t *testing.T) {
	dir := t.TempDir()
	tasks := TaskList{}
	tasks.Add(logTask(dir, "a", "missing"))

	err := RunTask(testCtx(), dir, "nope", tasks, RunOptions{})
	assert.True(t, eris.Is(err, ErrTaskNotFound))

	err = RunTask(testCtx(), dir, "a", tasks, RunOptions{})
	assert.True(t, eris.Is(err, ErrTaskNotFound))
}

func TestRequiresMissingArtifact(t *testing.T) {
	dir := t.TempDir()
	tasks := TaskList{}
	tasks.Add(&Task{
		Short:    "install",
		Base:     dir,
		Env:      map[string]string{"DIST_DIR": "dist", "PACKAGE": "demo"},
		Requires: []string{"$DIST_DIR/$PACKAGE-*.whl"},
		Cmds:     Script("install", "echo install >> log.txt"),
	})

	err := RunTask(testCtx(), dir, "install", tasks, RunOptions{})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrMissingArtifact))
	assert.Contains(t, err.Error(), "dist/demo-*.whl")
	assert.Empty(t, readLog(t, dir))

	require.NoError(t, os.Mkdir(filepath.Join(dir, "dist"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dist", "demo-1.0-py3-none-any.whl"), nil, 0o644))

	require.NoError(t, RunTask(testCtx(), dir, "install", tasks, RunOptions{}))
	assert.Equal(t, "install\n", readLog(t, dir))
}

func TestDryRunDoesNotExecute(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	tasks := TaskList{}
	tasks.Add(&Task{Short: "build", Base: dir, Cmds: Script("build", "python3 -m build")})

	require.NoError(t, RunTask(testCtx(), dir, "build", tasks, RunOptions{DryRun: true, ExecHandler: rec.handler}))
	assert.Empty(t, rec.calls)
}

func TestSkipIfExists(t *testing.T) {
	dir := t.TempDir()
	tasks := TaskList{}
	task := logTask(dir, "venv")
	task.SkipIfExists = []string{"venv/bin/python"}
	tasks.Add(task)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "venv", "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "venv", "bin", "python"), nil, 0o755))

	require.NoError(t, RunTask(testCtx(), dir, "venv", tasks, RunOptions{}))
	assert.Empty(t, readLog(t, dir))

	require.NoError(t, RunTask(testCtx(), dir, "venv", tasks, RunOptions{Force: true}))
	assert.Equal(t, "venv\n", readLog(t, dir))
}

type staticEnv struct {
	calls []string
	vars  map[string]string
}

func (e *staticEnv) TaskEnv(ctx context.Context, task *Task, opts RunOptions) (map[string]string, error) {
	e.calls = append(e.calls, task.Short)
	return e.vars, nil
}

func TestEnvironmentOnlyForPythonTasks(t *testing.T) {
	dir := t.TempDir()
	env := &staticEnv{vars: map[string]string{"APP_VERSION": "1.2.3"}}

	tasks := TaskList{}
	tasks.Add(&Task{Short: "clean", Base: dir, Cmds: Script("clean", `echo "clean:$APP_VERSION" >> log.txt`)})
	tasks.Add(&Task{
		Short:  "info",
		Base:   dir,
		Deps:   []string{"clean"},
		Python: true,
		Env:    map[string]string{"EXTRA": "x"},
		Cmds:   Script("info", `echo "info:$APP_VERSION:$EXTRA" >> log.txt`),
	})

	require.NoError(t, RunTask(testCtx(), dir, "info", tasks, RunOptions{Env: env}))
	assert.Equal(t, []string{"info"}, env.calls)
	assert.Equal(t, "clean:\ninfo:1.2.3:x\n", readLog(t, dir))
}

func TestTaskCallRunsAgain(t *testing.T) {
	dir := t.TempDir()
	tasks := TaskList{}
	tasks.Add(logTask(dir, "info"))
	tasks.Add(&Task{
		Short: "venv",
		Base:  dir,
		Cmds: append(
			Script("venv", "echo venv >> log.txt"),
			TaskCmdCall{Name: "info"},
		),
	})

	require.NoError(t, RunTasks(testCtx(), dir, []string{"info", "venv"}, tasks, RunOptions{}))
	assert.Equal(t, "info\nvenv\ninfo\n", readLog(t, dir))
}

func TestBuiltinFileCommands(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	tasks := TaskList{}
	tasks.Add(&Task{Short: "prep", Base: dir, Cmds: Script("prep", "mkdir -p build/lib", "echo x > build/lib/a.py")})
	tasks.Add(&Task{Short: "clean", Base: dir, Cmds: Script("clean", "rm -rf build dist *.spec")})

	opts := RunOptions{ExecHandler: rec.handler}
	require.NoError(t, RunTask(testCtx(), dir, "prep", tasks, opts))
	assert.FileExists(t, filepath.Join(dir, "build", "lib", "a.py"))

	require.NoError(t, RunTask(testCtx(), dir, "clean", tasks, opts))
	assert.NoDirExists(t, filepath.Join(dir, "build"))
	require.NoError(t, RunTask(testCtx(), dir, "clean", tasks, opts))
	assert.Empty(t, rec.calls)
}

func TestOutput(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	out, err := Output(testCtx(), RunOptions{ExecHandler: rec.handler}, dir, nil, "/opt/my python", "src/demo", "--version")
	require.NoError(t, err)
	assert.Equal(t, "/opt/my python ran\n", out)
	assert.Equal(t, [][]string{{"/opt/my python", "src/demo", "--version"}}, rec.calls)
}

func TestTaskListNames(t *testing.T) {
	tasks := TaskList{}
	tasks.Add(&Task{Short: "distclean", Aliases: []string{"clean-all"}})
	tasks.Add(&Task{Short: "build"})
	tasks.Add(&Task{Short: "auto#x", Hidden: true})

	assert.Equal(t, []string{"build", "distclean"}, tasks.Names())
	assert.Same(t, tasks["distclean"], tasks["clean-all"])
}

func TestTaskListMergeDropsReplacedAliases(t *testing.T) {
	tasks := TaskList{}
	tasks.Add(&Task{Short: "distclean", Aliases: []string{"clean-all"}})
	tasks.Add(&Task{Short: "clean", Aliases: []string{"tidy"}})

	override := TaskList{}
	override.Add(&Task{Short: "distclean"})
	override.Add(&Task{Short: "clean", Aliases: []string{"tidy"}})
	tasks.Merge(override)

	assert.Same(t, override["distclean"], tasks["distclean"])
	assert.NotContains(t, tasks, "clean-all")
	assert.Same(t, override["clean"], tasks["tidy"])

	err := Validate(tasks, []string{"clean-all"})
	assert.True(t, eris.Is(err, ErrTaskNotFound))
}
