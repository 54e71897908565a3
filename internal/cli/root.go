package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/forq/internal/config"
)

func NewRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "forq",
		Short: "Forking job runner with supervised termination",
	}

	root.PersistentFlags().
		StringVarP(&cfgFile, "file", "f", "forq.yaml", "Path to job definitions")

	ctx := &context{cfgFile: &cfgFile}
	root.AddCommand(newRunCmd(ctx))
	root.AddCommand(newExecCmd(ctx))
	root.AddCommand(newJobsCmd(ctx))
	root.AddCommand(newConfigCmd(ctx))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root
}

// Execute runs the CLI entrypoint. No global signal context is installed:
// the run command owns the QUIT/TERM/INT surface itself, and the remaining
// commands are short-lived.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type context struct {
	cfgFile *string
}

func (c *context) loadConfig() (*config.File, error) {
	return config.Load(*c.cfgFile)
}
