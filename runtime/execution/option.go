package execution

import (
	"github.com/go-logr/logr"
	"github.com/viant/floor/policy"
	"github.com/viant/floor/service/metrics"
	"github.com/viant/floor/service/watchdog"
)

// Option configures a kernel
type Option func(k *Kernel)

// WithLogger sets the kernel logger
func WithLogger(logger logr.Logger) Option {
	return func(k *Kernel) {
		k.logger = logger
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(k *Kernel) {
		k.metrics = recorder
	}
}

// WithWatchdog sets the watchdog synthesizing timeouts
func WithWatchdog(service *watchdog.Service) Option {
	return func(k *Kernel) {
		k.watchdog = service
	}
}

// WithListener registers a callback notified on process start and finish
func WithListener(listener Listener) Option {
	return func(k *Kernel) {
		if listener != nil {
			k.listeners = append(k.listeners, listener)
		}
	}
}

// WithPolicy sets the admission policy of invocations
func WithPolicy(p *policy.Policy) Option {
	return func(k *Kernel) {
		k.policy = p
	}
}
