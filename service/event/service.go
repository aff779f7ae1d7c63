// Package event publishes runtime events over in-memory queues, one queue per
// event data type plus one receiving every event.
package event

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/viant/floor/service/messaging"
	"github.com/viant/floor/service/messaging/memory"
)

type Service struct {
	publisher       *Publisher[any]
	listener        *Listener[any]
	typedPublishers map[reflect.Type]any
	typedListeners  map[reflect.Type]stopper
	anyListened     atomic.Bool
	closers         []func()
	mux             sync.RWMutex
	logger          logr.Logger
	newQueueConfig  func(name string) memory.Config
}

type stopper interface{ Stop() }

// New creates an event service
func New(options ...Option) *Service {
	ret := &Service{
		typedPublishers: make(map[reflect.Type]any),
		typedListeners:  make(map[reflect.Type]stopper),
		logger:          logr.Discard(),
		newQueueConfig:  func(string) memory.Config { return memory.DefaultConfig() },
	}
	for _, option := range options {
		option(ret)
	}
	ret.publisher = NewPublisher[any](queueOf[Event[any]](ret, "any"))
	ret.publisher.listened = &ret.anyListened
	return ret
}

// SetListener replaces the handler of every published event
func (s *Service) SetListener(handler func(*Event[any])) {
	s.mux.Lock()
	previous := s.listener
	s.listener = NewListener[any](s.publisher, handler, s.logger)
	s.listener.Start()
	s.anyListened.Store(true)
	s.mux.Unlock()
	if previous != nil {
		previous.Stop()
	}
}

// Close closes every queue, then stops the listeners once they drained it
func (s *Service) Close() {
	s.mux.Lock()
	listeners := make([]stopper, 0, len(s.typedListeners)+1)
	for _, listener := range s.typedListeners {
		listeners = append(listeners, listener)
	}
	if s.listener != nil {
		listeners = append(listeners, s.listener)
	}
	closers := s.closers
	s.closers = nil
	s.mux.Unlock()
	for _, closer := range closers {
		closer()
	}
	for _, listener := range listeners {
		listener.Stop()
	}
}

func queueOf[T any](s *Service, name string) messaging.Queue[T] {
	queue := memory.NewQueue[T](s.newQueueConfig(name))
	s.closers = append(s.closers, queue.Close)
	return queue
}

func keyOf[T any]() reflect.Type {
	rType := reflect.TypeOf((*T)(nil)).Elem()
	if rType.Kind() == reflect.Ptr {
		rType = rType.Elem()
	}
	return rType
}

// SetListenerOf replaces the handler of events carrying T
func SetListenerOf[T any](s *Service, handler func(*Event[T])) {
	publisher := PublisherOf[T](s)
	key := keyOf[T]()
	listener := NewListener[T](publisher, handler, s.logger)
	s.mux.Lock()
	previous := s.typedListeners[key]
	s.typedListeners[key] = listener
	listener.Start()
	publisher.listened.Store(true)
	s.mux.Unlock()
	if previous != nil {
		previous.Stop()
	}
}

// PublisherOf returns the publisher of events carrying T
func PublisherOf[T any](s *Service) *Publisher[T] {
	key := keyOf[T]()
	s.mux.Lock()
	defer s.mux.Unlock()
	if ret, ok := s.typedPublishers[key]; ok {
		return ret.(*Publisher[T])
	}
	publisher := NewPublisher[T](queueOf[Event[T]](s, key.String()))
	publisher.anyQueue = s.publisher.queue
	publisher.listened = &atomic.Bool{}
	publisher.anyListened = &s.anyListened
	s.typedPublishers[key] = publisher
	return publisher
}
