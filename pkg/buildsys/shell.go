package buildsys

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/ngld/pytask/pkg/posix"
)

// RunOptions controls how tasks are executed
type RunOptions struct {
	// DryRun only logs the commands
	DryRun bool
	// Force ignores the skip rules (skip_if_exists, inputs and outputs)
	Force bool
	// Env provides additional variables for tasks marked with Python
	Env Environment
	// ExecHandler runs external programs. Defaults to interp.DefaultExecHandler.
	ExecHandler interp.ExecHandlerFunc
	Stdout      io.Writer
	Stderr      io.Writer
}

// Environment computes task-specific variables right before a task runs
type Environment interface {
	TaskEnv(ctx context.Context, task *Task, opts RunOptions) (map[string]string, error)
}

func (o RunOptions) stdout() io.Writer {
	if o.Stdout == nil {
		return os.Stdout
	}
	return o.Stdout
}

func (o RunOptions) stderr() io.Writer {
	if o.Stderr == nil {
		return os.Stderr
	}
	return o.Stderr
}

var defaultExecHandler = interp.DefaultExecHandler(2 * time.Second)

func execHandler(opts RunOptions) interp.ExecHandlerFunc {
	next := opts.ExecHandler
	if next == nil {
		next = defaultExecHandler
	}

	return func(ctx context.Context, args []string) error {
		hc := interp.HandlerCtx(ctx)

		// always use our cross-platform implementation for these operations to make sure
		// they behave consistently
		handled, err := posix.Run(hc.Dir, args)
		if handled {
			if err != nil {
				fmt.Fprintf(hc.Stderr, "%s: %s\n", args[0], err)
				return interp.NewExitStatus(1)
			}
			return nil
		}

		return next(ctx, args)
	}
}

var defaultOpenHandler = interp.DefaultOpenHandler()

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		path = os.DevNull
	}

	return defaultOpenHandler(ctx, path, flag, perm)
}

// buildEnviron merges the process environment with the given layers. Later layers win.
func buildEnviron(layers ...map[string]string) expand.Environ {
	merged := map[string]string{}
	for _, layer := range layers {
		for name, value := range layer {
			merged[name] = value
		}
	}

	envVars := make([]string, 0, len(merged))
	for _, item := range os.Environ() {
		name := item
		if pos := strings.Index(item, "="); pos > -1 {
			name = item[:pos]
		}

		// skip overridden entries to avoid conflicts
		if _, present := merged[name]; !present {
			envVars = append(envVars, item)
		}
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		envVars = append(envVars, fmt.Sprintf("%s=%s", name, merged[name]))
	}

	return expand.ListEnviron(envVars...)
}

func newShell(dir string, env expand.Environ, stdout, stderr io.Writer, opts RunOptions) (*interp.Runner, error) {
	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(env),
		interp.ExecHandler(execHandler(opts)),
		interp.OpenHandler(openHandler),
		interp.StdIO(nil, stdout, stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return nil, eris.Wrap(err, "Failed to initialize runner")
	}

	return runner, nil
}

// argsToCall turns a plain argument list into a shell call without any expansion
func argsToCall(args []string) *syntax.CallExpr {
	cmd := new(syntax.CallExpr)
	cmd.Args = make([]*syntax.Word, len(args))

	for a, arg := range args {
		var wordPart syntax.WordPart

		if arg == "" || strings.ContainsAny(arg, " \t\n$'\"\\*?[]{}~;&|<>()#`") {
			node := new(syntax.SglQuoted)
			node.Value = arg
			if strings.Contains(arg, "'") {
				node.Dollar = true
				node.Value = strings.ReplaceAll(strings.ReplaceAll(arg, `\`, `\\`), "'", `\'`)
			}

			wordPart = node
		} else {
			node := new(syntax.Lit)
			node.Value = arg

			wordPart = node
		}

		cmd.Args[a] = &syntax.Word{Parts: []syntax.WordPart{wordPart}}
	}

	return cmd
}

// Output runs a single command with the given additional environment and returns its
// standard output
func Output(ctx context.Context, opts RunOptions, dir string, env map[string]string, args ...string) (string, error) {
	if len(args) == 0 {
		return "", eris.New("no command given")
	}

	buffer := strings.Builder{}
	runner, err := newShell(dir, buildEnviron(env), &buffer, opts.stderr(), opts)
	if err != nil {
		return "", err
	}

	err = runner.Run(ctx, argsToCall(args))
	if err != nil {
		return buffer.String(), err
	}

	return buffer.String(), nil
}
