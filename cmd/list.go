package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/colorstring"
	"github.com/spf13/cobra"

	"github.com/ngld/pytask/pkg/buildsys"
)

var listCmd = &cobra.Command{
	Use:   "list [KEY=VALUE...]",
	Short: "Lists the available tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, options := splitArgs(args)
		_, _, project, err := setup(cmd, options)
		if err != nil {
			return err
		}

		colorstring.Fprintf(cmd.OutOrStdout(), "[blue][bold]==>[default] Tasks for %s\n", project.Config.Package)
		printTasks(cmd, project.Tasks)

		if len(project.Options) > 0 {
			colorstring.Fprint(cmd.OutOrStdout(), "\n[blue][bold]==>[default] Options\n")
			printOptions(cmd, project.Options)
		}
		return nil
	},
}

func printTasks(cmd *cobra.Command, tasks buildsys.TaskList) {
	names := tasks.Names()
	maxNameLen := 0
	for _, name := range names {
		if len(name) > maxNameLen {
			maxNameLen = len(name)
		}
	}

	lineFmt := fmt.Sprintf(" * %%-%ds %%s", maxNameLen+3)
	for _, name := range names {
		task := tasks[name]
		line := fmt.Sprintf(lineFmt, name+":", task.Desc)
		if len(task.Aliases) > 0 {
			line += fmt.Sprintf(" (alias: %s)", strings.Join(task.Aliases, ", "))
		}
		if len(task.Deps) > 0 {
			line += fmt.Sprintf(" [runs %s first]", strings.Join(task.Deps, ", "))
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
}

func printOptions(cmd *cobra.Command, options map[string]buildsys.ScriptOption) {
	names := make([]string, 0, len(options))
	for name := range options {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		opt := options[name]
		fmt.Fprintf(cmd.OutOrStdout(), " * %s=%s  %s\n", name, opt.Default(), opt.Help)
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
}
