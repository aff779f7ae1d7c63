package event

import (
	"github.com/go-logr/logr"
	"github.com/viant/floor/service/messaging/memory"
)

// Option configures the service
type Option func(s *Service)

// WithQueueConfig sets the configuration of each named memory queue
func WithQueueConfig(newConfig func(name string) memory.Config) Option {
	return func(s *Service) {
		s.newQueueConfig = newConfig
	}
}

// WithLogger sets the listener logger
func WithLogger(logger logr.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}
