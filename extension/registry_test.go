package extension

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/floor/model"
	"github.com/viant/floor/model/types"
	"github.com/viant/floor/service/governance"
	"github.com/viant/floor/service/managed"
	"github.com/viant/floor/service/team"
)

type testContext struct {
	context.Context
	parameter interface{}
}

func (c *testContext) ProcessID() string                  { return "p1" }
func (c *testContext) Parameter() interface{}             { return c.parameter }
func (c *testContext) Object(string) (interface{}, error) { return nil, nil }
func (c *testContext) Join(...types.FlowHandle) error     { return nil }
func (c *testContext) Discard(string) error               { return nil }
func (c *testContext) Logger() logr.Logger                { return logr.Discard() }
func (c *testContext) DoFlow(string, interface{}) (types.FlowHandle, error) {
	return nil, nil
}

func TestRegistry_Builtins(t *testing.T) {
	buffer := &bytes.Buffer{}
	registry := New(WithOutput(buffer))
	ctx := &testContext{Context: context.Background(), parameter: "hello"}

	nopFn, err := registry.Function("nop")
	require.NoError(t, err)
	output, err := nopFn(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", output)

	printFn, err := registry.Function("print")
	require.NoError(t, err)
	_, err = printFn(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", buffer.String())

	_, err = registry.Function("missing")
	assert.Error(t, err)
	_, err = registry.Duty("nop")
	assert.NoError(t, err)
}

func TestRegistry_Proxy(t *testing.T) {
	registry := New()
	registry.RegisterFunction("double", func(ctx types.FunctionContext) (interface{}, error) {
		return ctx.Parameter().(int) * 2, nil
	})
	var calls []string
	registry.RegisterProxy(func(name string, base types.Function) types.Function {
		return func(ctx types.FunctionContext) (interface{}, error) {
			calls = append(calls, name)
			return base(ctx)
		}
	})
	fn, err := registry.Function("double")
	require.NoError(t, err)
	output, err := fn(&testContext{Context: context.Background(), parameter: 4})
	require.NoError(t, err)
	assert.Equal(t, 8, output)
	assert.Equal(t, []string{"double"}, calls)
}

func TestRegistry_Team(t *testing.T) {
	registry := New()
	custom := false
	registry.RegisterTeam("gpu", func(meta *model.Team, options ...team.Option) (team.Team, error) {
		custom = true
		return team.NewPassive(meta, options...)
	})
	aTeam, err := registry.Team(&model.Team{Name: "render", Kind: "gpu"})
	require.NoError(t, err)
	assert.True(t, custom)
	assert.Equal(t, "render", aTeam.Name())

	aTeam, err = registry.Team(&model.Team{Name: "io", Kind: model.TeamWorker, Workers: 2})
	require.NoError(t, err)
	assert.Equal(t, model.TeamWorker, aTeam.Kind())
}

func validOffice() *model.Office {
	office := model.NewOffice("ok")
	office.NewTeam("io", model.TeamWorker, 1)
	office.NewManagedObject("db", model.ScopeProcess)
	office.NewGovernance("tx", "transactional")
	office.NewFunction("main").WithTeam("io").WithObjects("db").WithPre(model.NewDuty("begin").WithGovernances("tx"))
	return office
}

func brokenOffice() *model.Office {
	office := model.NewOffice("broken")
	office.NewTeam("gpu", "gpu", 1)
	office.NewManagedObject("db", model.ScopeProcess)
	office.NewGovernance("tx", "transactional")
	office.NewFunction("main").WithTeam("gpu").WithPre(model.NewDuty("begin"))
	return office
}

func TestRegistry_Validate(t *testing.T) {
	var testCases = []struct {
		description string
		office      *model.Office
		register    func(r *Registry)
		expectErr   []string
	}{
		{
			description: "all registered",
			office:      validOffice(),
			register: func(r *Registry) {
				r.RegisterSource("db", managed.Func(func(context.Context) (interface{}, error) { return 1, nil }))
				r.RegisterGovernance("tx", func() governance.Governance { return nil })
				r.RegisterFunction("main", func(types.FunctionContext) (interface{}, error) { return nil, nil })
				r.RegisterDuty("begin", func(types.DutyContext) error { return nil })
			},
		},
		{
			description: "missing everything",
			office:      brokenOffice(),
			expectErr: []string{
				`team gpu: unsupported kind "gpu"`,
				"managed object db: source db not registered",
				"governance tx: factory tx not registered",
				"function main: logic main not registered",
				"function main: duty begin: logic begin not registered",
			},
		},
	}
	for _, testCase := range testCases {
		require.NoError(t, testCase.office.Init(), testCase.description)
		registry := New()
		if testCase.register != nil {
			testCase.register(registry)
		}
		err := registry.Validate(testCase.office)
		if len(testCase.expectErr) == 0 {
			assert.NoError(t, err, testCase.description)
			continue
		}
		require.Error(t, err, testCase.description)
		for _, expect := range testCase.expectErr {
			assert.Contains(t, err.Error(), expect, testCase.description)
		}
	}
}
