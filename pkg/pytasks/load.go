package pytasks

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/ngld/pytask/pkg/buildsys"
	"github.com/ngld/pytask/pkg/config"
	"github.com/ngld/pytask/pkg/pyenv"
)

// Project bundles everything needed to run tasks for one Python package
type Project struct {
	Root     string
	Config   *config.Config
	Tasks    buildsys.TaskList
	Options  map[string]buildsys.ScriptOption
	Resolver *pyenv.Resolver
}

// Load builds the default task graph and merges the tasks declared in the project's
// Starlark script (if there is one) on top of it
func Load(ctx context.Context, cfg *config.Config, projectRoot string, options map[string]string) (*Project, error) {
	projectRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to resolve %s", projectRoot)
	}

	resolver := &pyenv.Resolver{Config: cfg, ProjectRoot: projectRoot}
	vars := resolver.Vars()

	project := &Project{
		Root:     projectRoot,
		Config:   cfg,
		Tasks:    Tasks(projectRoot, vars),
		Options:  map[string]buildsys.ScriptOption{},
		Resolver: resolver,
	}

	if cfg.Script == "" {
		return project, nil
	}

	scriptPath := filepath.Join(projectRoot, cfg.Script)
	_, err = os.Stat(scriptPath)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return project, nil
		}
		return nil, eris.Wrapf(err, "failed to check %s", scriptPath)
	}

	scriptTasks, scriptOptions, err := buildsys.LoadScript(ctx, scriptPath, projectRoot, options, vars, true)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to load %s", cfg.Script)
	}

	for _, task := range scriptTasks {
		for name, value := range vars {
			if _, present := task.Env[name]; !present {
				task.Env[name] = value
			}
		}
	}

	project.Tasks.Merge(scriptTasks)
	project.Options = scriptOptions
	return project, nil
}

// Run executes the named tasks. The resolver is always used as the task environment.
func (p *Project) Run(ctx context.Context, names []string, opts buildsys.RunOptions) error {
	opts.Env = p.Resolver
	return buildsys.RunTasks(ctx, p.Root, names, p.Tasks, opts)
}
