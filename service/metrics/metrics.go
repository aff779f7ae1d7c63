// Package metrics exposes kernel activity as prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "floor"

// Recorder records kernel metrics; a nil Recorder records nothing
type Recorder struct {
	jobs           *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	escalations    *prometheus.CounterVec
	processes      *prometheus.CounterVec
	objects        *prometheus.CounterVec
	governances    *prometheus.CounterVec
	runningProcess prometheus.Gauge
}

// New creates a recorder and registers its collectors
func New(registerer prometheus.Registerer) (*Recorder, error) {
	ret := &Recorder{
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      "jobs_total",
				Help:      "Count of jobs run by team and job kind.",
			},
			[]string{"team", "kind"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Subsystem: subsystem,
				Name:      "job_duration_seconds",
				Help:      "Job run latency distribution by team.",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"team"},
		),
		escalations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      "escalations_total",
				Help:      "Count of escalations by failure type and the level that handled it.",
			},
			[]string{"type", "level"},
		),
		processes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      "processes_total",
				Help:      "Count of finished processes by outcome.",
			},
			[]string{"outcome"},
		),
		objects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      "managed_objects_total",
				Help:      "Count of managed object containers reaching a final state.",
			},
			[]string{"object", "state"},
		),
		governances: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      "governance_total",
				Help:      "Count of governance containers reaching a terminal state.",
			},
			[]string{"governance", "state"},
		),
		runningProcess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Subsystem: subsystem,
				Name:      "running_processes",
				Help:      "Number of processes currently running.",
			},
		),
	}
	if registerer == nil {
		return ret, nil
	}
	for _, collector := range ret.collectors() {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func (r *Recorder) collectors() []prometheus.Collector {
	return []prometheus.Collector{r.jobs, r.jobDuration, r.escalations, r.processes, r.objects, r.governances, r.runningProcess}
}

// RecordJob records a job run on a team
func (r *Recorder) RecordJob(team, kind string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.jobs.WithLabelValues(team, kind).Inc()
	r.jobDuration.WithLabelValues(team).Observe(elapsed.Seconds())
}

// RecordEscalation records a failure handled at level
func (r *Recorder) RecordEscalation(failureType, level string) {
	if r == nil {
		return
	}
	r.escalations.WithLabelValues(failureType, level).Inc()
}

// ProcessStarted increments running processes
func (r *Recorder) ProcessStarted() {
	if r == nil {
		return
	}
	r.runningProcess.Inc()
}

// ProcessFinished records a finished process
func (r *Recorder) ProcessFinished(outcome string) {
	if r == nil {
		return
	}
	r.runningProcess.Dec()
	r.processes.WithLabelValues(outcome).Inc()
}

// RecordObject records a managed object container final state
func (r *Recorder) RecordObject(object, state string) {
	if r == nil {
		return
	}
	r.objects.WithLabelValues(object, state).Inc()
}

// RecordGovernance records a governance container terminal state
func (r *Recorder) RecordGovernance(governance, state string) {
	if r == nil {
		return
	}
	r.governances.WithLabelValues(governance, state).Inc()
}
