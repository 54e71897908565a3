package config

import (
	"fmt"
	"sort"
	"strings"
)

// KnownRuntimes enumerates the runtime backends jobs may select.
var KnownRuntimes = []string{"process"}

// ApplyDefaults fills unset fields with their documented defaults.
func (f *File) ApplyDefaults() {
	if f.Worker.TerminationMode == "" {
		f.Worker.TerminationMode = TerminationImmediate
	}
	if !f.Worker.TermTimeout.IsSet() {
		f.Worker.TermTimeout.Duration = DefaultTermTimeout
	}
	for _, job := range f.Jobs {
		if job == nil {
			continue
		}
		if job.Runtime == "" {
			job.Runtime = "process"
		}
	}
}

// Validate checks the document for structural errors after defaults have been
// applied.
func (f *File) Validate() error {
	switch f.Worker.TerminationMode {
	case TerminationImmediate, TerminationGraceful:
	default:
		return fmt.Errorf("worker.terminationMode: invalid mode %q", f.Worker.TerminationMode)
	}
	if f.Worker.TermTimeout.Duration < 0 {
		return fmt.Errorf("worker.termTimeout: must be >= 0, got %s", f.Worker.TermTimeout.Duration)
	}

	if len(f.Jobs) == 0 {
		return fmt.Errorf("no jobs defined")
	}

	names := make([]string, 0, len(f.Jobs))
	for name := range f.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		job := f.Jobs[name]
		if job == nil {
			return fmt.Errorf("job %s: empty definition", name)
		}
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("job name must not be blank")
		}
		if !knownRuntime(job.Runtime) {
			return fmt.Errorf("job %s: unknown runtime %q", name, job.Runtime)
		}
		if len(job.Steps) == 0 {
			return fmt.Errorf("job %s: at least one step is required", name)
		}
		if err := validateSteps(name, "steps", job.Steps); err != nil {
			return err
		}
		if err := validateSteps(name, "cleanup", job.Cleanup); err != nil {
			return err
		}
	}
	return nil
}

func validateSteps(job, field string, steps []StepSpec) error {
	for i, step := range steps {
		if strings.TrimSpace(step.Run) == "" {
			return fmt.Errorf("job %s: %s[%d]: run must not be empty", job, field, i)
		}
	}
	return nil
}

// JobNames returns the configured job names in sorted order.
func (f *File) JobNames() []string {
	names := make([]string, 0, len(f.Jobs))
	for name := range f.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func knownRuntime(name string) bool {
	for _, rt := range KnownRuntimes {
		if rt == name {
			return true
		}
	}
	return false
}
