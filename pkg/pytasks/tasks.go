// Package pytasks declares the standard tasks to set up, build, install and clean a
// Python package.
package pytasks

import (
	"github.com/ngld/pytask/pkg/buildsys"
)

func venvCmds(name string, extraArgs string) []buildsys.TaskCmd {
	cmds := buildsys.Script(name,
		`rm -rf "$VENV_PATH"`,
		`"$SYSTEM_PYTHON" -m venv `+extraArgs+`"$VENV_PATH"`,
		`"$VENV_PYTHON" -m pip install --upgrade pip`,
		`"$VENV_PYTHON" -m pip install --upgrade -r "$REQUIREMENTS"`,
	)
	return append(cmds, buildsys.TaskCmdCall{Name: "venv-info"})
}

// Tasks returns the task graph for a Python package in projectRoot. vars are passed to every task.
func Tasks(projectRoot string, vars map[string]string) buildsys.TaskList {
	tasks := buildsys.TaskList{}
	add := func(task *buildsys.Task) {
		task.Base = projectRoot
		task.Env = make(map[string]string, len(vars))
		for name, value := range vars {
			task.Env[name] = value
		}

		tasks.Add(task)
	}

	add(&buildsys.Task{
		Short: "all",
		Desc:  "Runs the tests and builds the package",
		Deps:  []string{"test", "build"},
	})

	add(&buildsys.Task{
		Short:         "venv-info",
		Desc:          "Shows the selected interpreter and the package version",
		Python:        true,
		Informational: true,
		Cmds: buildsys.Script("venv-info",
			`echo "venv path:   $VENV_PATH"`,
			`echo "interpreter: ${PYTHON:-none}"`,
			`echo "version:     ${APP_VERSION:-unknown}"`,
		),
	})

	add(&buildsys.Task{
		Short:  "venv",
		Desc:   "Creates a fresh virtual environment and installs the requirements",
		Python: true,
		Cmds:   venvCmds("venv", ""),
	})

	add(&buildsys.Task{
		Short:  "venv-ssp",
		Desc:   "Like venv but with access to the system site-packages",
		Python: true,
		Cmds:   venvCmds("venv-ssp", "--system-site-packages "),
	})

	add(&buildsys.Task{
		Short:  "test",
		Desc:   "Runs the test suite",
		Python: true,
		Cmds:   buildsys.Script("test", `"$PYTHON" -m pytest`),
	})

	add(&buildsys.Task{
		Short:  "build",
		Desc:   "Builds the source distribution and the wheel",
		Python: true,
		Cmds: buildsys.Script("build",
			`"$PYTHON" -m setup sdist --dist-dir "$DIST_DIR"`,
			`"$PYTHON" -m setup bdist_wheel --dist-dir "$DIST_DIR"`,
		),
	})

	add(&buildsys.Task{
		Short:    "install",
		Desc:     "Installs the wheel for the current version",
		Deps:     []string{"build"},
		Python:   true,
		Requires: []string{"$DIST_DIR/$PACKAGE-$APP_VERSION-*.whl"},
		Cmds:     buildsys.Script("install", `"$PYTHON" -m pip install "$DIST_DIR/$PACKAGE-$APP_VERSION"-*.whl`),
	})

	add(&buildsys.Task{
		Short:  "uninstall",
		Desc:   "Removes the package from the environment",
		Python: true,
		Cmds:   buildsys.Script("uninstall", `"$PYTHON" -m pip uninstall --yes "$PACKAGE"`),
	})

	add(&buildsys.Task{
		Short: "clean",
		Desc:  "Removes caches and build output",
		Cmds: buildsys.Script("clean",
			"shopt -s globstar",
			`rm -rf "$BUILD_DIR" "$DIST_DIR" .pytest_cache src/**/__pycache__ src/*.egg-info *.spec`,
		),
	})

	add(&buildsys.Task{
		Short:   "distclean",
		Desc:    "Like clean but also deletes the virtual environment",
		Aliases: []string{"clean-all"},
		Deps:    []string{"clean"},
		Cmds:    buildsys.Script("distclean", `rm -rf "$VENV_PATH"`),
	})

	return tasks
}
