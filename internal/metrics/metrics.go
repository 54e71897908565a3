package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	signalsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forq",
		Name:      "signals_received_total",
		Help:      "Total termination signals received by the worker, by category.",
	}, []string{"signal"})

	termForwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "forq",
		Name:      "term_forwarded_total",
		Help:      "Total term requests forwarded to job children.",
	})

	forcedKills = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "forq",
		Name:      "forced_kills_total",
		Help:      "Total forced kills issued against job children.",
	})

	childExits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "forq",
		Name:      "child_exits_total",
		Help:      "Total observed child exits, by outcome.",
	}, []string{"outcome"})

	graceWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "forq",
		Name:      "grace_wait_seconds",
		Help:      "Time spent between forwarding term and observing exit or escalating.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "forq",
		Name:      "build_info",
		Help:      "Build metadata for the running forq binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(signalsReceived, termForwarded, forcedKills, childExits, graceWait, buildInfo)
}

// Registry returns the Prometheus registry containing all forq metrics.
func Registry() *prometheus.Registry {
	return registry
}

// IncrementSignalReceived records receipt of a termination signal.
func IncrementSignalReceived(signal string) {
	if signal == "" {
		signal = "unknown"
	}
	signalsReceived.WithLabelValues(signal).Inc()
}

// IncrementTermForwarded records a term request forwarded to a child.
func IncrementTermForwarded() {
	termForwarded.Inc()
}

// IncrementForcedKill records a forced kill issued against a child.
func IncrementForcedKill() {
	forcedKills.Inc()
}

// IncrementChildExit records an observed child exit with its outcome.
func IncrementChildExit(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	childExits.WithLabelValues(outcome).Inc()
}

// ObserveGraceWait records the time spent inside a grace period.
func ObserveGraceWait(d time.Duration) {
	graceWait.Observe(d.Seconds())
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
