package execution

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/floor/escalation"
	"github.com/viant/floor/extension"
	"github.com/viant/floor/model"
	"github.com/viant/floor/model/types"
	"github.com/viant/floor/policy"
	"github.com/viant/floor/service/governance"
	"github.com/viant/floor/service/managed"
	"github.com/viant/floor/service/metrics"
	"github.com/viant/floor/service/watchdog"
	testclock "k8s.io/utils/clock/testing"
)

// journal records events across goroutines
type journal struct {
	mux    sync.Mutex
	events []string
}

func (j *journal) add(event string) {
	j.mux.Lock()
	j.events = append(j.events, event)
	j.mux.Unlock()
}

func (j *journal) list() []string {
	j.mux.Lock()
	defer j.mux.Unlock()
	return append([]string{}, j.events...)
}

type resource struct {
	name    string
	journal *journal
	closed  int32
}

func (r *resource) Close() error {
	atomic.AddInt32(&r.closed, 1)
	r.journal.add("close:" + r.name)
	return nil
}

func resourceSource(name string, log *journal, created *[]*resource) managed.Source {
	var mux sync.Mutex
	return managed.Func(func(ctx context.Context) (interface{}, error) {
		ret := &resource{name: name, journal: log}
		mux.Lock()
		if created != nil {
			*created = append(*created, ret)
		}
		mux.Unlock()
		return ret, nil
	})
}

type recordingGovernance struct {
	journal    *journal
	enforceErr error
}

func (g *recordingGovernance) Govern(_ context.Context, extension interface{}) error {
	g.journal.add("govern:" + extension.(*resource).name)
	return nil
}

func (g *recordingGovernance) Enforce(context.Context) error {
	g.journal.add("enforce")
	return g.enforceErr
}

func (g *recordingGovernance) Disregard(context.Context) error {
	g.journal.add("disregard")
	return nil
}

type IllegalStateError struct{}

func (e *IllegalStateError) Error() string { return "illegal state" }

func startKernel(t *testing.T, office *model.Office, registry *extension.Registry, options ...Option) *Kernel {
	kernel, err := New(office, registry, append([]Option{WithLogger(testr.New(t))}, options...)...)
	require.NoError(t, err)
	require.NoError(t, kernel.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, kernel.Shutdown(ctx))
	})
	return kernel
}

func await(t *testing.T, handle *Handle) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := handle.AwaitCompletion(ctx)
	require.False(t, errors.Is(err, context.DeadlineExceeded), "process %v did not finish", handle.ProcessID())
	return err
}

func invoke(t *testing.T, kernel *Kernel, name string, parameter interface{}) *Handle {
	handle, err := kernel.InvokeFunction(context.Background(), name, parameter)
	require.NoError(t, err)
	return handle
}

func TestKernel_LinkedFunctionOnItsOwnTeam(t *testing.T) {
	office := model.NewOffice("linked")
	office.NewTeam("t1", model.TeamWorker, 1)
	office.NewTeam("t2", model.TeamWorker, 1)
	office.NewFunction("A").WithTeam("t1").WithNext("B")
	office.NewFunction("B").WithTeam("t2")

	received := make(chan interface{}, 1)
	registry := extension.New()
	registry.RegisterFunction("A", func(types.FunctionContext) (interface{}, error) { return 42, nil })
	registry.RegisterFunction("B", func(ctx types.FunctionContext) (interface{}, error) {
		received <- ctx.Parameter()
		return nil, nil
	})
	registerer := prometheus.NewRegistry()
	recorder, err := metrics.New(registerer)
	require.NoError(t, err)
	kernel := startKernel(t, office, registry, WithMetrics(recorder))

	handle := invoke(t, kernel, "A", nil)
	require.NoError(t, await(t, handle))
	assert.Equal(t, 42, <-received)
	assert.Equal(t, StateCompleted, handle.Process().State())

	expected := `
# HELP floor_jobs_total Count of jobs run by team and job kind.
# TYPE floor_jobs_total counter
floor_jobs_total{kind="function",team="t1"} 1
floor_jobs_total{kind="function",team="t2"} 1
`
	assert.Eventually(t, func() bool {
		return testutil.GatherAndCompare(registerer, strings.NewReader(expected), "floor_jobs_total") == nil
	}, time.Second, 5*time.Millisecond)
}

func TestKernel_SuspendedWhileSourcing(t *testing.T) {
	office := model.NewOffice("async")
	office.NewTeam("io", model.TeamWorker, 1)
	office.NewManagedObject("conn", model.ScopeFunction)
	office.NewFunction("start").WithTeam("io").WithNext("C")
	office.NewFunction("C").WithTeam("io").WithObjects("conn")
	office.NewFunction("other").WithTeam("io")

	gate := make(chan struct{})
	log := &journal{}
	var starts, runs int32
	registry := extension.New()
	registry.RegisterSource("conn", managed.AsyncFunc(func(ctx context.Context, user managed.User) {
		go func() {
			<-gate
			user.SetObject(&resource{name: "conn", journal: log})
		}()
	}))
	registry.RegisterFunction("start", func(types.FunctionContext) (interface{}, error) {
		atomic.AddInt32(&starts, 1)
		return "payload", nil
	})
	registry.RegisterFunction("C", func(ctx types.FunctionContext) (interface{}, error) {
		atomic.AddInt32(&runs, 1)
		conn, err := ctx.Object("conn")
		if err != nil {
			return nil, err
		}
		log.add("C:" + conn.(*resource).name + ":" + ctx.Parameter().(string))
		return nil, nil
	})
	registry.RegisterFunction("other", func(types.FunctionContext) (interface{}, error) {
		log.add("other")
		return nil, nil
	})
	kernel := startKernel(t, office, registry)

	handle := invoke(t, kernel, "start", nil)
	require.Eventually(t, func() bool { return handle.Progress().SuspendedJobs == 1 }, time.Second, time.Millisecond)

	require.NoError(t, await(t, invoke(t, kernel, "other", nil)))
	select {
	case <-handle.Done():
		t.Fatal("process finished before the object was sourced")
	default:
	}

	close(gate)
	require.NoError(t, await(t, handle))
	assert.EqualValues(t, 1, atomic.LoadInt32(&starts))
	assert.EqualValues(t, 1, atomic.LoadInt32(&runs))
	assert.Equal(t, []string{"other", "C:conn:payload", "close:conn"}, log.list())
	assert.Equal(t, 0, handle.Progress().SuspendedJobs)
}

func governedOffice() *model.Office {
	office := model.NewOffice("governed")
	office.NewManagedObject("X", model.ScopeThread).WithExtensions("tx")
	office.NewManagedObject("Y", model.ScopeThread).WithExtensions("tx")
	office.NewGovernance("G", "tx")
	office.NewFunction("work").WithPre(model.NewDuty("begin", "X", "Y").WithGovernances("G"))
	office.NewFunction("recover")
	office.WithThreadEscalation("GovernanceFailure", "recover")
	return office
}

func TestKernel_GovernanceCompletion(t *testing.T) {
	var testCases = []struct {
		description   string
		enforceErr    error
		expectEvents  []string
		expectHandled bool
	}{
		{
			description:  "auto enforce before release",
			expectEvents: []string{"govern:X", "govern:Y", "enforce", "close:X", "close:Y"},
		},
		{
			description:   "failed enforce escalated",
			enforceErr:    errors.New("commit failed"),
			expectEvents:  []string{"govern:X", "govern:Y", "enforce", "recover", "close:X", "close:Y"},
			expectHandled: true,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			log := &journal{}
			var handled error
			registry := extension.New()
			registry.RegisterSource("X", resourceSource("X", log, nil))
			registry.RegisterSource("Y", resourceSource("Y", log, nil))
			registry.RegisterGovernance("G", func() governance.Governance {
				return &recordingGovernance{journal: log, enforceErr: testCase.enforceErr}
			})
			registry.RegisterDuty("begin", func(ctx types.DutyContext) error {
				manager, err := ctx.Governance("G")
				if err != nil {
					return err
				}
				return manager.Activate()
			})
			registry.RegisterFunction("work", func(types.FunctionContext) (interface{}, error) { return nil, nil })
			registry.RegisterFunction("recover", func(ctx types.FunctionContext) (interface{}, error) {
				handled = ctx.Parameter().(error)
				log.add("recover")
				return nil, nil
			})
			kernel := startKernel(t, governedOffice(), registry)

			require.NoError(t, await(t, invoke(t, kernel, "work", nil)))
			assert.Equal(t, testCase.expectEvents, log.list())
			if !testCase.expectHandled {
				assert.Nil(t, handled)
				return
			}
			failure := &escalation.GovernanceFailure{}
			require.True(t, errors.As(handled, &failure))
			assert.Equal(t, "enforce", failure.Action)
		})
	}
}

func TestKernel_ThreadHandlerDiscardsRemainingJobs(t *testing.T) {
	office := model.NewOffice("discard")
	office.NewFunction("main").
		WithPre(model.NewDuty("check")).
		WithPost(model.NewDuty("after")).
		WithNext("later")
	office.NewFunction("later")
	office.NewFunction("handle")
	office.WithThreadEscalation("IllegalStateError", "handle")

	log := &journal{}
	var handled error
	registry := extension.New()
	registry.RegisterDuty("check", func(types.DutyContext) error { return &IllegalStateError{} })
	registry.RegisterDuty("after", func(types.DutyContext) error {
		log.add("after")
		return nil
	})
	for _, name := range []string{"main", "later"} {
		name := name
		registry.RegisterFunction(name, func(types.FunctionContext) (interface{}, error) {
			log.add(name)
			return nil, nil
		})
	}
	registry.RegisterFunction("handle", func(ctx types.FunctionContext) (interface{}, error) {
		handled = ctx.Parameter().(error)
		log.add("handle")
		return nil, nil
	})
	kernel := startKernel(t, office, registry)

	handle := invoke(t, kernel, "main", nil)
	require.NoError(t, await(t, handle))
	assert.Equal(t, []string{"handle"}, log.list())
	illegal := &IllegalStateError{}
	assert.True(t, errors.As(handled, &illegal))
	duty := &escalation.DutyFailure{}
	require.True(t, errors.As(handled, &duty))
	assert.Equal(t, "check", duty.Duty)
	progress := handle.Progress()
	assert.Equal(t, 2, progress.DiscardedJobs)
	assert.Equal(t, 1, progress.Escalations)
}

func barrier(parties int) func() error {
	var wg sync.WaitGroup
	wg.Add(parties)
	all := make(chan struct{})
	go func() {
		wg.Wait()
		close(all)
	}()
	return func() error {
		wg.Done()
		select {
		case <-all:
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("barrier timed out")
		}
	}
}

func TestKernel_ConcurrentTeams(t *testing.T) {
	office := model.NewOffice("concurrent")
	office.NewTeam("t1", model.TeamWorker, 1)
	office.NewTeam("t2", model.TeamDedicated, 1)
	office.NewFunction("root").
		WithFlow("left", "left", true).
		WithFlow("right", "right", true)
	office.NewFunction("left").WithTeam("t1")
	office.NewFunction("right").WithTeam("t2")

	arrive := barrier(2)
	registry := extension.New()
	registry.RegisterFunction("root", func(ctx types.FunctionContext) (interface{}, error) {
		left, err := ctx.DoFlow("left", nil)
		if err != nil {
			return nil, err
		}
		right, err := ctx.DoFlow("right", nil)
		if err != nil {
			return nil, err
		}
		return nil, ctx.Join(left, right)
	})
	registry.RegisterFunction("left", func(types.FunctionContext) (interface{}, error) {
		return nil, arrive()
	})
	registry.RegisterFunction("right", func(types.FunctionContext) (interface{}, error) {
		return nil, arrive()
	})
	kernel := startKernel(t, office, registry)

	handle := invoke(t, kernel, "root", nil)
	require.NoError(t, await(t, handle))
	assert.Equal(t, 3, handle.Progress().CompletedJobs)
}

func TestKernel_WaitsForObjectInUse(t *testing.T) {
	office := model.NewOffice("shared")
	office.NewTeam("t0", model.TeamWorker, 1)
	office.NewTeam("t1", model.TeamWorker, 1)
	office.NewTeam("t2", model.TeamWorker, 1)
	office.NewManagedObject("db", model.ScopeProcess)
	office.NewFunction("root").WithTeam("t0").
		WithFlow("hold", "hold", true).
		WithFlow("wait", "wait", true)
	office.NewFunction("hold").WithTeam("t1").WithObjects("db")
	office.NewFunction("wait").WithTeam("t2").WithObjects("db")

	log := &journal{}
	var created []*resource
	held := make(chan struct{})
	release := make(chan struct{})
	registry := extension.New()
	registry.RegisterSource("db", resourceSource("db", log, &created))
	registry.RegisterFunction("root", func(ctx types.FunctionContext) (interface{}, error) {
		holding, err := ctx.DoFlow("hold", nil)
		if err != nil {
			return nil, err
		}
		<-held
		waiting, err := ctx.DoFlow("wait", nil)
		if err != nil {
			return nil, err
		}
		return nil, ctx.Join(holding, waiting)
	})
	registry.RegisterFunction("hold", func(ctx types.FunctionContext) (interface{}, error) {
		log.add("hold")
		close(held)
		<-release
		return nil, nil
	})
	registry.RegisterFunction("wait", func(ctx types.FunctionContext) (interface{}, error) {
		log.add("wait")
		return nil, nil
	})
	kernel := startKernel(t, office, registry)

	handle := invoke(t, kernel, "root", nil)
	require.Eventually(t, func() bool { return handle.Progress().SuspendedJobs == 1 }, time.Second, time.Millisecond)
	close(release)
	require.NoError(t, await(t, handle))
	assert.Equal(t, []string{"hold", "wait", "close:db"}, log.list())
	require.Len(t, created, 1)
	assert.EqualValues(t, 1, atomic.LoadInt32(&created[0].closed))
}

func TestKernel_ReleasesExactlyOnce(t *testing.T) {
	var testCases = []struct {
		description string
		fail        bool
		handled     bool
		expectFatal bool
	}{
		{description: "completed"},
		{description: "handled escalation", fail: true, handled: true},
		{description: "fatal escalation", fail: true, expectFatal: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			office := model.NewOffice("release")
			office.NewManagedObject("fn", model.ScopeFunction)
			office.NewManagedObject("th", model.ScopeThread)
			office.NewManagedObject("pr", model.ScopeProcess)
			main := office.NewFunction("main").WithObjects("fn", "th", "pr")
			office.NewFunction("fallback")
			if testCase.handled {
				main.WithEscalation("*", "fallback")
			}
			log := &journal{}
			var created []*resource
			registry := extension.New()
			for _, name := range []string{"fn", "th", "pr"} {
				registry.RegisterSource(name, resourceSource(name, log, &created))
			}
			registry.RegisterFunction("main", func(types.FunctionContext) (interface{}, error) {
				if testCase.fail {
					return nil, errors.New("boom")
				}
				return nil, nil
			})
			registry.RegisterFunction("fallback", func(types.FunctionContext) (interface{}, error) { return nil, nil })
			registerer := prometheus.NewRegistry()
			recorder, err := metrics.New(registerer)
			require.NoError(t, err)
			kernel := startKernel(t, office, registry, WithMetrics(recorder))

			handle := invoke(t, kernel, "main", nil)
			err = await(t, handle)
			require.Len(t, created, 3)
			for _, item := range created {
				assert.EqualValues(t, 1, atomic.LoadInt32(&item.closed), item.name)
			}
			assert.Equal(t, []string{"close:fn", "close:th", "close:pr"}, log.list())
			assert.Equal(t, 3.0, testutil.ToFloat64(collectorOf(t, registerer, "floor_managed_objects_total")))
			if !testCase.expectFatal {
				require.NoError(t, err)
				return
			}
			fatal := &escalation.FatalFailure{}
			require.True(t, errors.As(err, &fatal))
			assert.Equal(t, "main", fatal.Function)
			assert.Equal(t, handle.ProcessID(), fatal.ProcessID)
			assert.Equal(t, StateFailed, handle.Process().State())
			assert.Contains(t, fatal.Chain(), "boom")
		})
	}
}

// collectorOf sums a counter family into a single gauge for testutil
func collectorOf(t *testing.T, gatherer prometheus.Gatherer, name string) prometheus.Collector {
	families, err := gatherer.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "sum"})
	gauge.Set(total)
	return gauge
}

func TestKernel_FatalDisregardsBeforeRelease(t *testing.T) {
	office := model.NewOffice("fatal")
	office.NewManagedObject("X", model.ScopeFunction).WithExtensions("tx")
	office.NewGovernance("G", "tx")
	office.NewFunction("main").WithPre(model.NewDuty("begin", "X").WithGovernances("G"))

	log := &journal{}
	registry := extension.New()
	registry.RegisterSource("X", resourceSource("X", log, nil))
	registry.RegisterGovernance("G", func() governance.Governance { return &recordingGovernance{journal: log} })
	registry.RegisterDuty("begin", func(ctx types.DutyContext) error {
		manager, err := ctx.Governance("G")
		if err != nil {
			return err
		}
		return manager.Activate()
	})
	registry.RegisterFunction("main", func(types.FunctionContext) (interface{}, error) {
		return nil, errors.New("unhandled")
	})
	kernel := startKernel(t, office, registry)

	err := await(t, invoke(t, kernel, "main", nil))
	fatal := &escalation.FatalFailure{}
	require.True(t, errors.As(err, &fatal))
	assert.Equal(t, []string{"govern:X", "disregard", "close:X"}, log.list())
}

func TestKernel_ContractViolation(t *testing.T) {
	var testCases = []struct {
		description string
		duty        types.Duty
	}{
		{
			description: "enforce inactive governance",
			duty: func(ctx types.DutyContext) error {
				manager, err := ctx.Governance("G")
				if err != nil {
					return err
				}
				return manager.Enforce()
			},
		},
		{
			description: "swallowed violation",
			duty: func(ctx types.DutyContext) error {
				manager, err := ctx.Governance("G")
				if err != nil {
					return err
				}
				_ = manager.Disregard()
				return nil
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			office := model.NewOffice("violation")
			office.NewGovernance("G", "tx")
			office.NewFunction("main").WithPre(model.NewDuty("misuse").WithGovernances("G"))
			office.NewFunction("catchAll")
			office.WithThreadEscalation("*", "catchAll").WithEscalation("*", "catchAll")
			caught := false
			registry := extension.New()
			registry.RegisterGovernance("G", func() governance.Governance { return &recordingGovernance{journal: &journal{}} })
			registry.RegisterDuty("misuse", testCase.duty)
			registry.RegisterFunction("main", func(types.FunctionContext) (interface{}, error) { return nil, nil })
			registry.RegisterFunction("catchAll", func(types.FunctionContext) (interface{}, error) {
				caught = true
				return nil, nil
			})
			kernel := startKernel(t, office, registry)

			err := await(t, invoke(t, kernel, "main", nil))
			require.Error(t, err)
			assert.True(t, errors.Is(err, escalation.ErrContractViolation))
			assert.False(t, caught)
		})
	}
}

func TestKernel_Flows(t *testing.T) {
	var testCases = []struct {
		description  string
		subFails     bool
		expectEvents []string
	}{
		{
			description:  "nested flow before post duties",
			expectEvents: []string{"main", "sub", "after"},
		},
		{
			description:  "flow handler resumes parent flow",
			subFails:     true,
			expectEvents: []string{"main", "sub", "subHandler", "after"},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			office := model.NewOffice("flows")
			office.NewFunction("main").
				WithFlow("sub", "sub", false, model.NewEscalation("*", "subHandler")).
				WithPost(model.NewDuty("after"))
			office.NewFunction("sub")
			office.NewFunction("subHandler")
			log := &journal{}
			registry := extension.New()
			registry.RegisterFunction("main", func(ctx types.FunctionContext) (interface{}, error) {
				log.add("main")
				_, err := ctx.DoFlow("sub", "input")
				return nil, err
			})
			registry.RegisterFunction("sub", func(ctx types.FunctionContext) (interface{}, error) {
				log.add("sub")
				if testCase.subFails {
					return nil, errors.New("sub failed")
				}
				return nil, nil
			})
			registry.RegisterFunction("subHandler", func(types.FunctionContext) (interface{}, error) {
				log.add("subHandler")
				return nil, nil
			})
			registry.RegisterDuty("after", func(types.DutyContext) error {
				log.add("after")
				return nil
			})
			kernel := startKernel(t, office, registry)

			require.NoError(t, await(t, invoke(t, kernel, "main", nil)))
			assert.Equal(t, testCase.expectEvents, log.list())
		})
	}
}

func TestKernel_EscalationLevels(t *testing.T) {
	var testCases = []struct {
		description   string
		configure     func(office *model.Office, main *model.Function)
		expectHandler string
		expectFatal   bool
	}{
		{
			description: "function handler",
			configure: func(office *model.Office, main *model.Function) {
				main.WithEscalation("FunctionFailure", "byFunction")
				office.WithThreadEscalation("*", "byThread")
			},
			expectHandler: "byFunction",
		},
		{
			description: "thread handler",
			configure: func(office *model.Office, main *model.Function) {
				office.WithThreadEscalation("*", "byThread").WithEscalation("*", "byProcess")
			},
			expectHandler: "byThread",
		},
		{
			description: "process handler",
			configure: func(office *model.Office, main *model.Function) {
				office.WithThreadEscalation("TimeoutFailure", "byThread").WithEscalation("error", "byProcess")
			},
			expectHandler: "byProcess",
		},
		{
			description: "most specific cause wins",
			configure: func(office *model.Office, main *model.Function) {
				main.WithEscalation("FunctionFailure", "byThread").WithEscalation("IllegalStateError", "byFunction")
			},
			expectHandler: "byFunction",
		},
		{
			description: "unhandled",
			configure:   func(office *model.Office, main *model.Function) {},
			expectFatal: true,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			office := model.NewOffice("levels")
			main := office.NewFunction("main").WithNext("next")
			office.NewFunction("next")
			log := &journal{}
			registry := extension.New()
			registry.RegisterFunction("main", func(types.FunctionContext) (interface{}, error) {
				return nil, &IllegalStateError{}
			})
			for _, name := range []string{"next", "byFunction", "byThread", "byProcess"} {
				name := name
				if name != "next" {
					office.NewFunction(name)
				}
				registry.RegisterFunction(name, func(ctx types.FunctionContext) (interface{}, error) {
					log.add(name)
					return nil, nil
				})
			}
			testCase.configure(office, main)
			kernel := startKernel(t, office, registry)

			err := await(t, invoke(t, kernel, "main", nil))
			if testCase.expectFatal {
				fatal := &escalation.FatalFailure{}
				require.True(t, errors.As(err, &fatal))
				assert.Empty(t, log.list())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{testCase.expectHandler}, log.list())
		})
	}
}

func TestKernel_FunctionTimeout(t *testing.T) {
	office := model.NewOffice("timeout")
	office.NewTeam("slow", model.TeamWorker, 1)
	office.NewFunction("slow").WithTeam("slow").WithTimeout("1s")
	office.NewFunction("late")
	office.WithThreadEscalation("TimeoutFailure", "late")

	handled := make(chan error, 1)
	returned := make(chan error, 1)
	registry := extension.New()
	registry.RegisterFunction("slow", func(ctx types.FunctionContext) (interface{}, error) {
		<-ctx.Done()
		returned <- ctx.Err()
		return nil, ctx.Err()
	})
	registry.RegisterFunction("late", func(ctx types.FunctionContext) (interface{}, error) {
		handled <- ctx.Parameter().(error)
		return nil, nil
	})
	fakeClock := testclock.NewFakeClock(time.Now())
	service := watchdog.New(watchdog.WithClock(fakeClock), watchdog.WithInterval(time.Hour))
	kernel := startKernel(t, office, registry, WithWatchdog(service))

	handle := invoke(t, kernel, "slow", nil)
	require.Eventually(t, func() bool { return service.Pending() == 1 }, time.Second, time.Millisecond)
	fakeClock.Step(2 * time.Second)
	assert.Equal(t, 1, service.Check())

	require.NoError(t, await(t, handle))
	timeout := &escalation.TimeoutFailure{}
	require.True(t, errors.As(<-handled, &timeout))
	assert.Equal(t, "slow", timeout.Function)
	assert.Equal(t, time.Second, timeout.Timeout)
	assert.ErrorIs(t, <-returned, context.Canceled)
}

func TestKernel_Lifecycle(t *testing.T) {
	office := model.NewOffice("lifecycle")
	office.NewFunction("main")
	registry := extension.New()
	registry.RegisterFunction("main", func(types.FunctionContext) (interface{}, error) { return "done", nil })

	var mux sync.Mutex
	var notified []string
	kernel, err := New(office, registry, WithListener(func(process *Process) {
		mux.Lock()
		notified = append(notified, process.State())
		mux.Unlock()
	}))
	require.NoError(t, err)

	_, err = kernel.InvokeFunction(context.Background(), "main", nil)
	assert.ErrorIs(t, err, ErrNotStarted)
	require.NoError(t, kernel.Start(context.Background()))
	_, err = kernel.InvokeFunction(context.Background(), "missing", nil)
	assert.Error(t, err)

	handle, err := kernel.InvokeFunction(context.Background(), "main", nil)
	require.NoError(t, err)
	require.NoError(t, await(t, handle))
	assert.Empty(t, kernel.Processes())
	require.NotNil(t, handle.Process().FinishedAt())

	require.NoError(t, kernel.Shutdown(context.Background()))
	_, err = kernel.InvokeFunction(context.Background(), "main", nil)
	assert.ErrorIs(t, err, ErrClosed)
	mux.Lock()
	assert.Equal(t, []string{StateRunning, StateCompleted}, notified)
	mux.Unlock()
}

func TestKernel_AdmissionPolicy(t *testing.T) {
	office := model.NewOffice("admission")
	office.NewFunction("ingest")
	office.NewFunction("purge")
	registry := extension.New()
	registry.RegisterFunction("ingest", func(types.FunctionContext) (interface{}, error) { return nil, nil })
	registry.RegisterFunction("purge", func(types.FunctionContext) (interface{}, error) { return nil, nil })
	kernel := startKernel(t, office, registry, WithPolicy(&policy.Policy{BlockList: []string{"purge"}}))

	_, err := kernel.InvokeFunction(context.Background(), "purge", nil)
	assert.ErrorIs(t, err, ErrNotAdmitted)
	require.NoError(t, await(t, invoke(t, kernel, "ingest", nil)))

	denied := policy.WithPolicy(context.Background(), &policy.Policy{Mode: policy.ModeDeny})
	_, err = kernel.InvokeFunction(denied, "ingest", nil)
	assert.ErrorIs(t, err, ErrNotAdmitted)
}

func TestNew_UnregisteredLogic(t *testing.T) {
	office := model.NewOffice("invalid")
	office.NewFunction("main")
	_, err := New(office, extension.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "function main: logic main not registered")
}
