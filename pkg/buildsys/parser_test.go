package buildsys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testScript = `
greeting = option("greeting", "hello", help = "what to say")
mode = read_yaml("settings.yml", "build.modes.1", "none")

def configure():
    prep = task(cmds = [("mkdir", "-p", resolve_path("gen"))])

    task(
        "say",
        desc = "Writes a greeting (" + mode + ")",
        deps = ["stamp"],
        cmds = [prep, "echo " + greeting + " " + VARS["PACKAGE"] + " > gen/out.txt"],
    )
    task("stamp", aliases = ["st"], cmds = [("OUT=stamp.txt", "touch", "stamp.txt")])
    task(
        "install",
        python = True,
        requires = ["$DIST_DIR/*.whl"],
        env = {"DIST_DIR": "dist"},
        cmds = ["pip install $DIST_DIR/*.whl"],
    )
`

func writeScript(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pytasks.star"), []byte(testScript), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.yml"), []byte("build:\n  modes: [fast, release]\n"), 0o644))
	return dir
}

func TestLoadScript(t *testing.T) {
	dir := writeScript(t)

	tasks, options, err := LoadScript(testCtx(), filepath.Join(dir, "pytasks.star"), dir, map[string]string{}, map[string]string{"PACKAGE": "demo"}, true)
	require.NoError(t, err)

	assert.Equal(t, "hello", options["greeting"].Default())
	assert.Equal(t, "what to say", options["greeting"].Help)
	assert.Equal(t, []string{"install", "say", "stamp"}, tasks.Names())
	assert.Same(t, tasks["stamp"], tasks["st"])

	say := tasks["say"]
	assert.Equal(t, "Writes a greeting (release)", say.Desc)
	assert.Equal(t, []string{"stamp"}, say.Deps)
	require.Len(t, say.Cmds, 2)
	assert.IsType(t, TaskCmdTaskRef{}, say.Cmds[0])

	stamp := tasks["stamp"].Cmds[0].(TaskCmdScript)
	assert.Equal(t, "OUT=stamp.txt touch stamp.txt", stamp.Content)

	install := tasks["install"]
	assert.True(t, install.Python)
	assert.Equal(t, []string{"$DIST_DIR/*.whl"}, install.Requires)
	assert.Equal(t, "dist", install.Env["DIST_DIR"])
}

func TestLoadScriptOptionsAndRun(t *testing.T) {
	dir := writeScript(t)
	rec := &recorder{}

	tasks, _, err := LoadScript(testCtx(), filepath.Join(dir, "pytasks.star"), dir, map[string]string{"greeting": "hi"}, map[string]string{"PACKAGE": "demo"}, true)
	require.NoError(t, err)

	require.NoError(t, RunTask(testCtx(), dir, "say", tasks, RunOptions{ExecHandler: rec.handler}))

	data, err := os.ReadFile(filepath.Join(dir, "gen", "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi demo\n", string(data))
	assert.Equal(t, [][]string{{"touch", "stamp.txt"}}, rec.calls)
}

func TestLoadScriptWithoutConfigure(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "pytasks.star")
	require.NoError(t, os.WriteFile(script, []byte(`x = option("x", "1")`), 0o644))

	tasks, options, err := LoadScript(testCtx(), script, dir, nil, nil, false)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Contains(t, options, "x")

	_, _, err = LoadScript(testCtx(), script, dir, nil, nil, true)
	assert.Error(t, err)
}

func TestLoadScriptError(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "pytasks.star")
	require.NoError(t, os.WriteFile(script, []byte("def configure():\n    error(\"no setup.py\")\n"), 0o644))

	_, _, err := LoadScript(testCtx(), script, dir, nil, nil, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no setup.py")
}
