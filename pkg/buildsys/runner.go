package buildsys

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

type (
	runtimeCtxKey struct{}
	runtimeCtx    struct {
		runTasks    map[string]bool
		projectRoot string
		tasks       TaskList
		opts        RunOptions
	}
)

func getRuntimeCtx(ctx context.Context) *runtimeCtx {
	return ctx.Value(runtimeCtxKey{}).(*runtimeCtx)
}

// RunTask executes the given task and its dependencies
func RunTask(ctx context.Context, projectRoot, task string, tasks TaskList, opts RunOptions) error {
	return RunTasks(ctx, projectRoot, []string{task}, tasks, opts)
}

// RunTasks executes the given tasks in order. Every task runs at most once, even if
// several of the requested tasks depend on it.
func RunTasks(ctx context.Context, projectRoot string, names []string, tasks TaskList, opts RunOptions) error {
	err := Validate(tasks, names)
	if err != nil {
		return err
	}

	rctx := runtimeCtx{
		projectRoot: projectRoot,
		runTasks:    make(map[string]bool),
		tasks:       tasks,
		opts:        opts,
	}
	ctx = context.WithValue(ctx, runtimeCtxKey{}, &rctx)

	for _, name := range names {
		err = runTaskInternal(ctx, tasks[name], true)
		if err != nil {
			return err
		}
	}

	return nil
}

func taskEnviron(ctx context.Context, task *Task) (expand.Environ, error) {
	rctx := getRuntimeCtx(ctx)

	var resolved map[string]string
	if task.Python && rctx.opts.Env != nil {
		var err error
		resolved, err = rctx.opts.Env.TaskEnv(ctx, task, rctx.opts)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to prepare the environment for task %s", task.Short)
		}
	}

	return buildEnviron(resolved, task.Env), nil
}

func checkRequires(ctx context.Context, task *Task, env expand.Environ) error {
	for _, pattern := range task.Requires {
		matches, err := resolvePatternLists(ctx, task.Base, env, []string{pattern})
		if err != nil {
			return eris.Wrapf(err, "failed to resolve required file %s", pattern)
		}

		if len(matches) == 0 {
			return eris.Wrapf(ErrMissingArtifact, "task %s needs %s but nothing matched", task.Short, expandForLog(pattern, env))
		}
	}

	return nil
}

func expandForLog(pattern string, env expand.Environ) string {
	word, err := syntax.NewParser().Document(strings.NewReader(pattern))
	if err != nil {
		return pattern
	}

	result, err := expand.Document(&expand.Config{Env: env}, word)
	if err != nil {
		return pattern
	}
	return result
}

func shouldSkip(ctx context.Context, task *Task, env expand.Environ) (bool, error) {
	found := 0
	for _, pattern := range task.SkipIfExists {
		matches, err := resolvePatternLists(ctx, task.Base, env, []string{pattern})
		if err != nil {
			return false, eris.Wrapf(err, "failed to resolve skipIfExists list")
		}

		if len(matches) > 0 {
			found++
		}
	}

	if found > 0 && found == len(task.SkipIfExists) {
		log(ctx).Info().
			Str("task", task.Short).
			Msg("skipped because all skip files exist")
		return true, nil
	}

	var newestInput time.Time
	inputList, err := resolvePatternLists(ctx, task.Base, env, task.Inputs)
	if err != nil {
		return false, eris.Wrap(err, "failed to resolve inputs")
	}

	outputList, err := resolvePatternLists(ctx, task.Base, env, task.Outputs)
	if err != nil {
		return false, eris.Wrap(err, "failed to resolve output list")
	}

	for _, item := range inputList {
		info, err := os.Stat(item)
		if err != nil {
			return false, eris.Wrapf(err, "Failed to check input %s", item)
		}

		if info.ModTime().After(newestInput) {
			newestInput = info.ModTime()
		}
	}

	if newestInput.IsZero() || len(outputList) == 0 {
		return false, nil
	}

	var newestOutput time.Time
	oldestOutput := time.Now()

	for _, item := range outputList {
		info, err := os.Stat(item)
		if err != nil {
			return false, eris.Wrapf(err, "Failed to check output %s", item)
		}

		mt := info.ModTime()
		if mt.After(newestOutput) {
			newestOutput = mt
		}

		if mt.Before(oldestOutput) {
			oldestOutput = mt
		}
	}

	if newestOutput.Sub(oldestOutput) > 10*time.Minute {
		log(ctx).Warn().
			Str("task", task.Short).
			Msgf("oldest output is %f minutes older than the newest output", newestOutput.Sub(oldestOutput).Minutes())
	}

	// every output must be newer than every input
	if oldestOutput.After(newestInput) {
		log(ctx).Info().
			Str("task", task.Short).
			Msgf("nothing to do (output is %f seconds newer)", oldestOutput.Sub(newestInput).Seconds())
		return true, nil
	}

	return false, nil
}

func runTaskInternal(ctx context.Context, task *Task, canSkip bool) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	rctx := getRuntimeCtx(ctx)
	status, ok := rctx.runTasks[task.Short]
	if ok {
		if status {
			// this task has already been run
			log(ctx).Debug().Msgf("Task %s already run", task.Short)
			return nil
		}

		return eris.Wrapf(ErrCycle, "task %s was called recursively", task.Short)
	}

	rctx.runTasks[task.Short] = false

	for _, dep := range task.Deps {
		depTask, ok := rctx.tasks[dep]
		if !ok {
			return eris.Wrapf(ErrTaskNotFound, "dependency %s of task %s", dep, task.Short)
		}

		err := runTaskInternal(ctx, depTask, true)
		if err != nil {
			// the error is passed on as-is so the exit status of a failed command survives
			log(ctx).Error().
				Str("task", task.Short).
				Msgf("failed due to its dependency %s", dep)
			return err
		}
	}

	env, err := taskEnviron(ctx, task)
	if err != nil {
		return err
	}

	err = checkRequires(ctx, task, env)
	if err != nil {
		if !rctx.opts.DryRun {
			return err
		}

		log(ctx).Warn().Str("task", task.Short).Msg(err.Error())
	}

	if canSkip && !rctx.opts.Force {
		skip, err := shouldSkip(ctx, task, env)
		if err != nil {
			return err
		}

		if skip {
			rctx.runTasks[task.Short] = true
			return nil
		}
	}

	// With the skip and input/output checks done, we can finally start executing
	runner, err := newShell(task.Base, env, rctx.opts.stdout(), rctx.opts.stderr(), rctx.opts)
	if err != nil {
		return err
	}

	parser := syntax.NewParser()
	printer := syntax.NewPrinter(
		syntax.Minify(true),
	)
	strBuffer := strings.Builder{}

	for _, item := range task.Cmds {
		stmts, err := item.ToShellStmts(parser)
		if err != nil {
			return eris.Wrap(err, "failed to parse shell script")
		}
		if stmts != nil {
			for _, stm := range stmts {
				strBuffer.Reset()
				err = printer.Print(&strBuffer, stm)
				if err != nil {
					return eris.Wrap(err, "failed to print command")
				}

				log(ctx).Info().
					Str("task", task.Short).
					Bool("command", true).
					Msg(strBuffer.String())

				if !rctx.opts.DryRun {
					err = runner.Run(ctx, stm)
					if err != nil {
						log(ctx).Error().
							Str("task", task.Short).
							Msgf("command failed: %s", strBuffer.String())
						return err
					}

					if runner.Exited() {
						rctx.runTasks[task.Short] = true
						return nil
					}
				}
			}
		} else {
			subTask, err := item.ToTask(rctx.tasks)
			if err != nil {
				return eris.Wrap(err, "failed to retrieve task ref")
			}

			if subTask == nil {
				return eris.Errorf("unexpected task command %+v", item)
			}

			// sub-tasks always run, even if they ran before
			if rctx.runTasks[subTask.Short] {
				delete(rctx.runTasks, subTask.Short)
			}
			err = runTaskInternal(ctx, subTask, true)
			if err != nil {
				return err
			}
		}

		if err = ctx.Err(); err != nil {
			return err
		}
	}

	rctx.runTasks[task.Short] = true
	return nil
}
