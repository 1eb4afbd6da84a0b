package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ngld/pytask/pkg/posix"
)

// posixCmd wraps one of the portable file helpers. Flags are parsed by the helper itself.
func posixCmd(name, short string, run func(dir string, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:                name,
		Short:              short,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}

			return run(wd, args)
		},
	}
}

func init() {
	rootCmd.AddCommand(posixCmd("mv", "Cross-platform implementation of the POSIX mv command", posix.Move))
	rootCmd.AddCommand(posixCmd("rm", "A cross-platform implementation of the POSIX rm command", posix.Remove))
	rootCmd.AddCommand(posixCmd("mkdir", "A cross-platform implementation of the POSIX mkdir command", posix.Mkdir))
}
