package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// TerminationMode selects how the worker translates TERM/INT into child
// terminations.
type TerminationMode string

const (
	// TerminationImmediate kills the child outright with no cleanup
	// opportunity. Kept as the default for backward compatibility.
	TerminationImmediate TerminationMode = "immediate"

	// TerminationGraceful forwards TERM and grants the child a bounded
	// grace period before escalating to a forced kill.
	TerminationGraceful TerminationMode = "graceful"
)

// UnmarshalText validates a textual termination mode.
func (m *TerminationMode) UnmarshalText(text []byte) error {
	switch TerminationMode(text) {
	case "", TerminationImmediate:
		*m = TerminationImmediate
	case TerminationGraceful:
		*m = TerminationGraceful
	default:
		return fmt.Errorf("invalid termination mode %q (expected immediate or graceful)", string(text))
	}
	return nil
}

// DefaultTermTimeout is the grace period applied when graceful termination is
// selected without an explicit timeout.
const DefaultTermTimeout = 4 * time.Second

// File mirrors the forq.yaml document structure.
type File struct {
	Version string              `yaml:"version"`
	Worker  WorkerSpec          `yaml:"worker"`
	Jobs    map[string]*JobSpec `yaml:"jobs"`
}

// WorkerSpec configures the parent worker's signal-handling policy.
type WorkerSpec struct {
	TerminationMode TerminationMode `yaml:"terminationMode"`
	TermTimeout     Duration        `yaml:"termTimeout"`
}

// JobSpec describes a single unit of work executed in a dedicated child
// process.
type JobSpec struct {
	Runtime     string            `yaml:"runtime"`
	Workdir     string            `yaml:"workdir"`
	Env         map[string]string `yaml:"env"`
	EnvFromFile string            `yaml:"envFromFile"`
	Steps       []StepSpec        `yaml:"steps"`
	Cleanup     []StepSpec        `yaml:"cleanup"`

	// ResolvedWorkdir is the absolute working directory computed at load
	// time. Not part of the document.
	ResolvedWorkdir string `yaml:"-"`
}

// StepSpec is one shell command executed by the job executor. Step boundaries
// are the executor's termination checkpoints.
type StepSpec struct {
	Name string `yaml:"name"`
	Run  string `yaml:"run"`
}

// Clone creates a deep copy of the job spec.
func (j *JobSpec) Clone() *JobSpec {
	if j == nil {
		return nil
	}
	cp := &JobSpec{
		Runtime:         j.Runtime,
		Workdir:         j.Workdir,
		EnvFromFile:     j.EnvFromFile,
		ResolvedWorkdir: j.ResolvedWorkdir,
	}
	if len(j.Env) > 0 {
		cp.Env = make(map[string]string, len(j.Env))
		for k, v := range j.Env {
			cp.Env[k] = v
		}
	}
	cp.Steps = append([]StepSpec(nil), j.Steps...)
	cp.Cleanup = append([]StepSpec(nil), j.Cleanup...)
	return cp
}

// CloneJobMap returns a deep copy of a job map.
func CloneJobMap(jobs map[string]*JobSpec) map[string]*JobSpec {
	if jobs == nil {
		return nil
	}
	dup := make(map[string]*JobSpec, len(jobs))
	for name, job := range jobs {
		dup[name] = job.Clone()
	}
	return dup
}
