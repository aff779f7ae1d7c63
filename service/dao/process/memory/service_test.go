package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/floor/extension"
	"github.com/viant/floor/model"
	"github.com/viant/floor/model/types"
	"github.com/viant/floor/runtime/execution"
	"github.com/viant/floor/service/dao"
)

func TestService_TracksProcesses(t *testing.T) {
	office := model.NewOffice("store")
	office.NewFunction("ok")
	office.NewFunction("fail")
	office.NewTeam("workers", model.TeamWorker, 1)
	office.NewFunction("block").WithTeam("workers")

	release := make(chan struct{})
	registry := extension.New()
	registry.RegisterFunction("ok", func(types.FunctionContext) (interface{}, error) { return nil, nil })
	registry.RegisterFunction("fail", func(types.FunctionContext) (interface{}, error) { return nil, errors.New("boom") })
	registry.RegisterFunction("block", func(types.FunctionContext) (interface{}, error) {
		<-release
		return nil, nil
	})

	srv := New(WithRetention(time.Hour))
	srv.Start()
	defer srv.Close()

	kernel, err := execution.New(office, registry, execution.WithLogger(testr.New(t)), execution.WithListener(srv.Observe))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, kernel.Start(ctx))
	defer func() {
		close(release)
		shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_ = kernel.Shutdown(shutdownCtx)
	}()

	awaitCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	ok, err := kernel.InvokeFunction(ctx, "ok", nil)
	require.NoError(t, err)
	require.NoError(t, ok.AwaitCompletion(awaitCtx))
	failed, err := kernel.InvokeFunction(ctx, "fail", nil)
	require.NoError(t, err)
	require.Error(t, failed.AwaitCompletion(awaitCtx))
	blocked, err := kernel.InvokeFunction(ctx, "block", nil)
	require.NoError(t, err)

	var testCases = []struct {
		description string
		parameters  []*dao.Parameter
		expect      []string
	}{
		{description: "all", expect: []string{ok.ProcessID(), failed.ProcessID(), blocked.ProcessID()}},
		{description: "running", parameters: []*dao.Parameter{dao.NewParameter(dao.ParameterState, execution.StateRunning)}, expect: []string{blocked.ProcessID()}},
		{description: "finished", parameters: []*dao.Parameter{dao.NewParameter(dao.ParameterState, execution.StateCompleted, execution.StateFailed)}, expect: []string{ok.ProcessID(), failed.ProcessID()}},
		{description: "by function", parameters: []*dao.Parameter{dao.NewParameter(dao.ParameterFunction, "fail")}, expect: []string{failed.ProcessID()}},
	}
	for _, testCase := range testCases {
		processes, err := srv.List(ctx, testCase.parameters...)
		require.NoError(t, err, testCase.description)
		var ids []string
		for _, p := range processes {
			ids = append(ids, p.ID)
		}
		assert.ElementsMatch(t, testCase.expect, ids, testCase.description)
	}

	loaded, err := srv.Load(ctx, failed.ProcessID())
	require.NoError(t, err)
	assert.Equal(t, execution.StateFailed, loaded.State())
	require.NoError(t, srv.Delete(ctx, failed.ProcessID()))
	_, err = srv.Load(ctx, failed.ProcessID())
	assert.ErrorIs(t, err, dao.ErrNotFound)
}

func TestService_ExpiresFinishedProcesses(t *testing.T) {
	office := model.NewOffice("expiry")
	office.NewFunction("ok")
	registry := extension.New()
	registry.RegisterFunction("ok", func(types.FunctionContext) (interface{}, error) { return nil, nil })

	srv := New(WithRetention(20 * time.Millisecond))
	srv.Start()
	defer srv.Close()
	kernel, err := execution.New(office, registry, execution.WithListener(srv.Observe))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, kernel.Start(ctx))
	defer func() { _ = kernel.Shutdown(ctx) }()

	handle, err := kernel.InvokeFunction(ctx, "ok", nil)
	require.NoError(t, err)
	require.NoError(t, handle.AwaitCompletion(ctx))
	assert.Eventually(t, func() bool {
		_, err := srv.Load(ctx, handle.ProcessID())
		return errors.Is(err, dao.ErrNotFound)
	}, 3*time.Second, 10*time.Millisecond)
}
