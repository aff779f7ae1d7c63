package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/floor/service/messaging"
)

type TestPayload struct {
	ID    string
	Count int
}

func TestQueue(t *testing.T) {
	queue := NewQueue[TestPayload](DefaultConfig())
	ctx := context.Background()
	payload := TestPayload{ID: "test-1", Count: 1}

	require.NoError(t, queue.Publish(ctx, &payload))
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, payload, *message.T())

	assert.NoError(t, message.Ack())
	assert.Error(t, message.Ack())
}

func TestQueueRetries(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 1
	config.RetryDelay = 5 * time.Millisecond
	queue := NewQueue[TestPayload](config)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, queue.Publish(ctx, &TestPayload{ID: "retry"}))
	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NoError(t, message.Nack(errors.New("busy")))

	message, err = queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "retry", message.T().ID)
	require.NoError(t, message.Nack(errors.New("busy")))

	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, 1, queue.DLQSize())
}

func TestQueue_DrainAndClose(t *testing.T) {
	queue := NewQueue[TestPayload](DefaultConfig())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, queue.Publish(ctx, &TestPayload{Count: i}))
	}

	consumed := make(chan error, 1)
	blocked := NewQueue[TestPayload](DefaultConfig())
	go func() {
		_, err := blocked.Consume(ctx)
		consumed <- err
	}()

	pending := queue.Drain()
	require.Len(t, pending, 3)
	assert.Equal(t, 2, pending[2].Count)
	assert.Equal(t, 0, queue.Size())

	queue.Close()
	assert.True(t, errors.Is(queue.Publish(ctx, &TestPayload{}), messaging.ErrClosed))

	blocked.Close()
	select {
	case err := <-consumed:
		assert.True(t, errors.Is(err, messaging.ErrClosed))
	case <-time.After(time.Second):
		t.Fatal("consumer was not released")
	}
}

func TestQueue_ConsumeAfterCloseDeliversPending(t *testing.T) {
	queue := NewQueue[TestPayload](DefaultConfig())
	ctx := context.Background()
	require.NoError(t, queue.Publish(ctx, &TestPayload{ID: "last"}))
	queue.Close()

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "last", message.T().ID)
	_, err = queue.Consume(ctx)
	assert.True(t, errors.Is(err, messaging.ErrClosed))
}

func TestQueueConcurrency(t *testing.T) {
	queue := NewQueue[TestPayload](DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	producers, perProducer := 10, 10

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := map[string]bool{}
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				message, err := queue.Consume(ctx)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seen[message.T().ID] = true
				mu.Unlock()
				assert.NoError(t, message.Ack())
			}
		}()
	}
	for i := 0; i < producers; i++ {
		go func(producer int) {
			for j := 0; j < perProducer; j++ {
				assert.NoError(t, queue.Publish(ctx, &TestPayload{ID: fmt.Sprintf("p%d-m%d", producer, j)}))
			}
		}(i)
	}
	wg.Wait()
	assert.Len(t, seen, producers*perProducer)
	assert.Equal(t, 0, queue.Size())
}

func TestQueueContextCancellation(t *testing.T) {
	queue := NewQueue[TestPayload](DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, queue.Publish(ctx, &TestPayload{ID: "test"}))

	timeoutCtx, cancelTimeout := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelTimeout()
	_, err := queue.Consume(timeoutCtx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
