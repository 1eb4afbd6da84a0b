package buildsys

import (
	"strings"

	"github.com/rotisserie/eris"
)

// edges returns the tasks that have to run as part of task: its dependencies first,
// then the tasks referenced from its command list.
func edges(task *Task, tasks TaskList) ([]*Task, error) {
	result := make([]*Task, 0, len(task.Deps))
	for _, dep := range task.Deps {
		depTask, ok := tasks[dep]
		if !ok {
			return nil, eris.Wrapf(ErrTaskNotFound, "dependency %s of task %s", dep, task.Short)
		}
		result = append(result, depTask)
	}

	for _, cmd := range task.Cmds {
		if _, ok := cmd.(TaskCmdScript); ok {
			continue
		}

		ref, err := cmd.ToTask(tasks)
		if err != nil {
			return nil, eris.Wrapf(err, "command of task %s", task.Short)
		}
		if ref != nil {
			result = append(result, ref)
		}
	}

	return result, nil
}

// Validate makes sure that all given tasks exist and that neither they nor anything
// they depend on forms a cycle.
func Validate(tasks TaskList, roots []string) error {
	const (
		white = iota
		gray
		black
	)

	color := map[*Task]int{}
	stack := []string{}

	var visit func(task *Task) error
	visit = func(task *Task) error {
		switch color[task] {
		case black:
			return nil
		case gray:
			start := 0
			for idx, name := range stack {
				if name == task.Short {
					start = idx
					break
				}
			}

			path := append(append([]string{}, stack[start:]...), task.Short)
			return eris.Wrapf(ErrCycle, "%s", strings.Join(path, " -> "))
		}

		color[task] = gray
		stack = append(stack, task.Short)

		next, err := edges(task, tasks)
		if err != nil {
			return err
		}

		for _, item := range next {
			err = visit(item)
			if err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		color[task] = black
		return nil
	}

	for _, name := range roots {
		task, ok := tasks[name]
		if !ok {
			return eris.Wrapf(ErrTaskNotFound, "task %s", name)
		}

		err := visit(task)
		if err != nil {
			return err
		}
	}

	return nil
}
