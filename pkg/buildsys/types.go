package buildsys

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
	starsyntax "go.starlark.net/syntax"
	"mvdan.cc/sh/v3/syntax"
)

var (
	// ErrTaskNotFound is returned when a task or dependency name isn't declared
	ErrTaskNotFound = eris.New("task not found")
	// ErrCycle is returned when the task graph contains a dependency cycle
	ErrCycle = eris.New("dependency cycle")
	// ErrMissingArtifact is returned when a file required by a task doesn't exist
	ErrMissingArtifact = eris.New("missing artifact")
)

type TaskCmdScript struct {
	TaskName string
	Content  string
	Index    int
}

func (s TaskCmdScript) ToTask(TaskList) (*Task, error) {
	return nil, nil
}

func (s TaskCmdScript) ToShellStmts(parser *syntax.Parser) ([]*syntax.Stmt, error) {
	reader := strings.NewReader(s.Content)
	result, err := parser.Parse(reader, fmt.Sprintf("%s:%d", s.TaskName, s.Index))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse command %s", s.Content)
	}

	return result.Stmts, nil
}

// TaskCmdTaskRef runs an inline task (declared in a script without a name)
type TaskCmdTaskRef struct {
	Task *Task
}

func (t TaskCmdTaskRef) ToTask(TaskList) (*Task, error) {
	return t.Task, nil
}

func (t TaskCmdTaskRef) ToShellStmts(*syntax.Parser) ([]*syntax.Stmt, error) {
	return nil, nil
}

// TaskCmdCall runs another declared task by name once the commands before it are done
type TaskCmdCall struct {
	Name string
}

func (c TaskCmdCall) ToTask(tasks TaskList) (*Task, error) {
	task, ok := tasks[c.Name]
	if !ok {
		return nil, eris.Wrapf(ErrTaskNotFound, "task %s", c.Name)
	}
	return task, nil
}

func (c TaskCmdCall) ToShellStmts(*syntax.Parser) ([]*syntax.Stmt, error) {
	return nil, nil
}

type TaskCmd interface {
	ToTask(TaskList) (*Task, error)
	ToShellStmts(*syntax.Parser) ([]*syntax.Stmt, error)
}

// Script is a shortcut to build a list of shell commands
func Script(taskName string, lines ...string) []TaskCmd {
	result := make([]TaskCmd, len(lines))
	for idx, line := range lines {
		result[idx] = TaskCmdScript{TaskName: taskName, Content: line, Index: idx}
	}
	return result
}

// Task contains everything needed to run a single task
type Task struct {
	Env          map[string]string
	Short        string
	Desc         string
	Base         string
	Aliases      []string
	Inputs       []string
	Deps         []string
	Requires     []string
	SkipIfExists []string
	Outputs      []string
	Cmds         []TaskCmd
	Hidden       bool
	// Python marks tasks that need the resolved interpreter environment
	Python bool
	// Informational tasks only report on the environment and tolerate an incomplete one
	Informational bool
}

// TaskList maps short names (and aliases) to each relevant task
type TaskList map[string]*Task

// Add registers the task under its short name and all of its aliases
func (l TaskList) Add(task *Task) {
	l[task.Short] = task
	for _, alias := range task.Aliases {
		l[alias] = task
	}
}

// Merge adds all tasks from other, replacing tasks with the same name. Aliases of a
// replaced task are dropped unless other declares them again.
func (l TaskList) Merge(other TaskList) {
	for name := range other {
		old, ok := l[name]
		if !ok || old.Short != name {
			continue
		}

		for _, alias := range old.Aliases {
			if l[alias] == old {
				delete(l, alias)
			}
		}
	}

	for name, task := range other {
		l[name] = task
	}
}

// Names returns the sorted short names of all visible tasks. Aliases are skipped.
func (l TaskList) Names() []string {
	names := make([]string, 0, len(l))
	for name, task := range l {
		if task.Hidden || name != task.Short {
			continue
		}
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

type ScriptOption struct {
	DefaultValue starlark.String
	Help         string
}

func (o ScriptOption) Default() string {
	return o.DefaultValue.GoString()
}

// Implement starlark.Value for *Task

// String returns a string representation of the task
func (t *Task) String() string {
	return fmt.Sprintf("<Task %s: %s>", t.Short, t.Desc)
}

// Type always returns "task" to indicate this type
func (t *Task) Type() string {
	return "task"
}

// Freeze doesn't do anything since tasks are immutable anyway
func (t *Task) Freeze() {}

// Truth always returns true since a task can't be nil or None
func (t *Task) Truth() starlark.Bool {
	return starlark.True
}

// Hash always returns an error since task is not hashable
func (t *Task) Hash() (uint32, error) {
	return 0, eris.New("task is not a hashable type")
}

type StarlarkPath string

func (p StarlarkPath) String() string {
	return starlark.String(p).String()
}

func (p StarlarkPath) Type() string {
	return "path"
}

func (p StarlarkPath) Freeze() {}

func (p StarlarkPath) Truth() starlark.Bool {
	return p != ""
}

func (p StarlarkPath) Hash() (uint32, error) {
	return starlark.String(p).Hash()
}

func (p StarlarkPath) CompareSameType(op starsyntax.Token, y_ starlark.Value, depth int) (bool, error) {
	y := y_.(StarlarkPath)

	switch op {
	case starsyntax.EQL:
		return p == y, nil
	case starsyntax.NEQ:
		return p != y, nil
	case starsyntax.LT:
		return p < y, nil
	case starsyntax.LE:
		return p <= y, nil
	case starsyntax.GT:
		return p > y, nil
	case starsyntax.GE:
		return p >= y, nil
	}

	return false, eris.Errorf("unknown operator %v", op)
}

func (p StarlarkPath) Index(i int) starlark.Value {
	return starlark.String(p[i])
}

func (p StarlarkPath) Len() int {
	return len(p)
}

func (p StarlarkPath) Slice(start, end, step int) starlark.Value {
	return starlark.String(p).Slice(start, end, step)
}
