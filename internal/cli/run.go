package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Paintersrp/forq/internal/cliutil"
	"github.com/Paintersrp/forq/internal/config"
	"github.com/Paintersrp/forq/internal/logmux"
	"github.com/Paintersrp/forq/internal/runtime"
	"github.com/Paintersrp/forq/internal/runtime/process"
	"github.com/Paintersrp/forq/internal/worker"
)

const eventBuffer = 256

func newRunCmd(ctx *context) *cobra.Command {
	var jsonLogs bool

	cmd := &cobra.Command{
		Use:   "run [job ...]",
		Short: "Run jobs under supervised termination",
		Long: "Run the named jobs (all configured jobs when none are named) sequentially,\n" +
			"each in a dedicated child process. QUIT, TERM and INT received by the worker\n" +
			"are relayed to the child according to the configured termination mode.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			if err := applyEnvOverrides(cmd, cfg); err != nil {
				return err
			}

			registry := runtime.Registry{"process": process.New()}
			w := worker.New(cfg, *ctx.cfgFile, registry, worker.WithEventBuffer(eventBuffer))

			mux := logmux.New(eventBuffer)
			mux.Add(w.Events())

			renderer := cliutil.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), jsonLogs)
			rendered := make(chan struct{})
			go func() {
				defer close(rendered)
				for evt := range mux.Output() {
					renderer.Render(evt)
				}
			}()

			// Register before the first child is spawned so no request can
			// slip through unobserved. Trapping SIGQUIT intentionally
			// replaces the Go runtime's stack dump with relay semantics.
			sigs := make(chan os.Signal, 2)
			signal.Notify(sigs, syscall.SIGQUIT, syscall.SIGTERM, os.Interrupt)
			defer signal.Stop(sigs)

			runErr := w.Run(cmd.Context(), args, sigs)
			mux.Close()
			<-rendered

			// A signal-initiated stop is a clean exit for the worker.
			if errors.Is(runErr, worker.ErrInterrupted) {
				return nil
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&jsonLogs, "json", false, "Force JSON event output even on a terminal")
	cmd.Flags().String("termination-mode", "", "Override termination mode (immediate|graceful)")
	cmd.Flags().String("term-timeout", "", "Override the graceful termination grace period (e.g. 4s)")

	return cmd
}

// applyEnvOverrides layers flag and FORQ_* environment overrides on top of
// the manifest's worker policy. Precedence: flag, then environment, then
// file.
func applyEnvOverrides(cmd *cobra.Command, cfg *config.File) error {
	v := viper.New()
	v.SetEnvPrefix("FORQ")
	v.AutomaticEnv()
	if err := v.BindPFlag("termination_mode", cmd.Flags().Lookup("termination-mode")); err != nil {
		return err
	}
	if err := v.BindPFlag("term_timeout", cmd.Flags().Lookup("term-timeout")); err != nil {
		return err
	}

	if raw := v.GetString("termination_mode"); raw != "" {
		var mode config.TerminationMode
		if err := mode.UnmarshalText([]byte(raw)); err != nil {
			return fmt.Errorf("termination mode override: %w", err)
		}
		cfg.Worker.TerminationMode = mode
	}
	if raw := v.GetString("term_timeout"); raw != "" {
		d, err := parseTimeout(raw)
		if err != nil {
			return fmt.Errorf("term timeout override: %w", err)
		}
		cfg.Worker.TermTimeout.Duration = d
	}
	if cfg.Worker.TermTimeout.Duration < 0 {
		return fmt.Errorf("term timeout override: must be >= 0")
	}
	return nil
}

// parseTimeout accepts both Go duration syntax and a bare integer number of
// seconds, matching the environment-variable convention.
func parseTimeout(raw string) (time.Duration, error) {
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	var seconds int
	if _, err := fmt.Sscanf(raw, "%d", &seconds); err != nil {
		return 0, fmt.Errorf("invalid timeout %q", raw)
	}
	return time.Duration(seconds) * time.Second, nil
}
