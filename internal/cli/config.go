package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the job manifest",
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate the manifest and report the effective worker policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d job(s), terminationMode=%s termTimeout=%s\n",
				len(cfg.Jobs), cfg.Worker.TerminationMode, cfg.Worker.TermTimeout.Duration)
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the manifest after defaults and env expansion",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode manifest: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.AddCommand(validate, show)
	return cmd
}
