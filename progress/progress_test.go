package progress

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress_Update(t *testing.T) {
	var snapshots []Progress
	ctx, tracker := WithNewTracker(context.Background(), "p1", "main", func(p Progress) {
		snapshots = append(snapshots, p)
	})
	UpdateCtx(ctx, Delta{Total: 2, Running: 1})
	UpdateCtx(ctx, Delta{Running: -1, Completed: 1, Escalated: 1})

	snapshot, ok := GetSnapshot(ctx)
	assert.True(t, ok)
	assert.Equal(t, "p1", snapshot.ProcessID)
	assert.Equal(t, 2, snapshot.TotalJobs)
	assert.Equal(t, 1, snapshot.CompletedJobs)
	assert.Equal(t, 1, snapshot.Escalations)
	assert.Equal(t, 0, snapshot.RunningJobs)
	assert.Len(t, snapshots, 2)
	assert.Equal(t, 1, snapshots[0].RunningJobs)

	tracker.OnChange(nil)
	tracker.Update(Delta{Discarded: 3})
	assert.Len(t, snapshots, 2)
	assert.Equal(t, 3, tracker.Snapshot().DiscardedJobs)
}

func TestProgress_Concurrent(t *testing.T) {
	_, tracker := WithNewTracker(context.Background(), "p1", "main", nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Update(Delta{Total: 1, Completed: 1})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, tracker.Snapshot().CompletedJobs)
}

func TestProgress_Missing(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
	UpdateCtx(context.Background(), Delta{Total: 1})
	var tracker *Progress
	tracker.Update(Delta{Total: 1})
	assert.Equal(t, Progress{}, tracker.Snapshot())
}
