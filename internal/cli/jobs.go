package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newJobsCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List configured jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			for _, name := range cfg.JobNames() {
				job := cfg.Jobs[name]
				fmt.Fprintf(cmd.OutOrStdout(), "%s\truntime=%s steps=%d cleanup=%d\n",
					name, job.Runtime, len(job.Steps), len(job.Cleanup))
			}
			return nil
		},
	}
	return cmd
}
