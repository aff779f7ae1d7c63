package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type started struct {
	Function string
}

func TestService_TypedAndAnyListeners(t *testing.T) {
	srv := New(WithLogger(testr.New(t)))
	var mux sync.Mutex
	var typed []string
	var all []interface{}
	SetListenerOf[started](srv, func(event *Event[started]) {
		mux.Lock()
		typed = append(typed, event.Data.Function)
		mux.Unlock()
	})
	srv.SetListener(func(event *Event[any]) {
		mux.Lock()
		all = append(all, event.Data)
		mux.Unlock()
	})

	publisher := PublisherOf[started](srv)
	assert.Same(t, publisher, PublisherOf[started](srv))
	for _, name := range []string{"a", "b"} {
		event := NewEvent(&Context{ProcessID: "p1", Function: name, EventType: TypeProcessStarted}, started{Function: name})
		require.NoError(t, publisher.Publish(context.Background(), event))
	}
	srv.Close()

	mux.Lock()
	defer mux.Unlock()
	assert.Equal(t, []string{"a", "b"}, typed)
	assert.Equal(t, []interface{}{started{Function: "a"}, started{Function: "b"}}, all)
}

func TestPublisher_SkipsUnlistenedQueues(t *testing.T) {
	srv := New()
	defer srv.Close()
	publisher := PublisherOf[started](srv)
	require.NoError(t, publisher.Publish(context.Background(), NewEvent(&Context{}, started{})))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := publisher.Consume(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
