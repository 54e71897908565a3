package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/forq/internal/executor"
)

// Exit codes for executor mode. 143 mirrors the conventional 128+SIGTERM
// status so callers can distinguish a completed termination handshake from a
// step failure.
const (
	exitCodeStepFailure   = 1
	exitCodeTermRequested = 143
)

func newExecCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:    "exec <job>",
		Short:  "Run a single job in executor mode (spawned by forq run)",
		Args:   cobra.ExactArgs(1),
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Drop any inherited signal handling before installing the
			// executor's own, so forwarded signals act on this process
			// instead of being silently swallowed. QUIT keeps its default
			// disposition: immediate exit, no cleanup.
			signal.Reset()

			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			name := args[0]
			job, ok := cfg.Jobs[name]
			if !ok {
				return fmt.Errorf("unknown job %q", name)
			}

			err = executor.New(name, job).Run(cmd.Context())
			switch {
			case err == nil:
				return nil
			case errors.Is(err, executor.ErrTermRequested):
				os.Exit(exitCodeTermRequested)
				return nil
			default:
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				os.Exit(exitCodeStepFailure)
				return nil
			}
		},
	}
	return cmd
}
