package pyenv

import (
	"context"
	"path/filepath"

	"github.com/ngld/pytask/pkg/buildsys"
	"github.com/ngld/pytask/pkg/config"
)

// Resolver provides the Python environment to tasks. It implements buildsys.Environment.
type Resolver struct {
	Config      *config.Config
	ProjectRoot string
}

// Vars returns the variables that don't depend on an interpreter
func (r *Resolver) Vars() map[string]string {
	venvPath := r.Config.VenvPath()
	if !filepath.IsAbs(venvPath) {
		venvPath = filepath.Join(r.ProjectRoot, venvPath)
	}

	return map[string]string{
		"VENV_PATH":    venvPath,
		"PACKAGE":      r.Config.Package,
		"BUILD_DIR":    filepath.ToSlash(r.Config.BuildDir),
		"DIST_DIR":     filepath.ToSlash(r.Config.DistDir),
		"REQUIREMENTS": filepath.ToSlash(r.Config.Requirements),
		"ENTRY_POINT":  filepath.ToSlash(r.Config.Entry()),
	}
}

// TaskEnv resolves the interpreter and version right before task runs
func (r *Resolver) TaskEnv(ctx context.Context, task *buildsys.Task, opts buildsys.RunOptions) (map[string]string, error) {
	vars := r.Vars()

	env, err := Resolve(r.Config, r.ProjectRoot)
	if err != nil && !task.Informational {
		return nil, err
	}

	vars["VENV_PATH"] = env.VenvPath
	vars["VENV_PYTHON"] = env.VenvPython
	vars["SYSTEM_PYTHON"] = env.SystemPython
	vars["PYTHON"] = env.Python

	if env.Python == "" {
		buildsys.Log(ctx).Warn().Str("task", task.Short).Err(err).Msg("no interpreter available")
		vars["APP_VERSION"] = ""
		return vars, nil
	}

	// like an empty $(shell ...) in make, a failed query only leaves the version empty
	version, err := QueryVersion(ctx, opts, r.ProjectRoot, env.Python, r.Config.Entry())
	if err != nil {
		buildsys.Log(ctx).Warn().
			Str("task", task.Short).
			Err(err).
			Msg("could not determine the package version")
	}
	vars["APP_VERSION"] = version

	return vars, nil
}
