package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/afs"
	"github.com/viant/floor"
	"github.com/viant/floor/extension"
	"github.com/viant/floor/model"
	"github.com/viant/floor/model/types"
	"github.com/viant/floor/service/action/nop"
	"github.com/viant/floor/service/action/printer"
	"github.com/viant/floor/service/dao/office"
	"github.com/viant/floor/service/governance"
	"github.com/viant/floor/service/managed"
	"github.com/viant/floor/service/meta"
	"github.com/viant/floor/tracing"
)

type runOptions struct {
	function  string
	parameter string
	config    string
	timeout   time.Duration
	stub      bool
	trace     string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	options := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <office>",
		Short: "Invoke a function of an office and wait for the process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), root, options, args[0])
		},
	}
	cmd.Flags().StringVarP(&options.function, "function", "f", "", "function to invoke, the first one by default")
	cmd.Flags().StringVarP(&options.parameter, "param", "p", "", "invocation parameter")
	cmd.Flags().StringVarP(&options.config, "config", "c", "", "runtime config (yaml, json or toml)")
	cmd.Flags().DurationVar(&options.timeout, "timeout", time.Minute, "time to wait for the process")
	cmd.Flags().BoolVar(&options.stub, "stub", false, "bind unregistered logic, sources and governances to pass-through stubs")
	cmd.Flags().StringVar(&options.trace, "trace", "", "export spans as JSON to a file")
	return cmd
}

func run(ctx context.Context, root *rootOptions, options *runOptions, URL string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := root.logger()
	metaService := meta.New(afs.New(), "")
	config := floor.DefaultConfig()
	if options.config != "" {
		if err := metaService.Load(ctx, options.config, config); err != nil {
			return err
		}
	}
	anOffice, err := office.New(office.WithMetaService(metaService)).Load(ctx, URL)
	if err != nil {
		return err
	}
	function := options.function
	if function == "" {
		if len(anOffice.Functions) == 0 {
			return fmt.Errorf("office %v has no functions", anOffice.Name)
		}
		function = anOffice.Functions[0].Name
	}
	serviceOptions := []floor.Option{floor.WithOffice(anOffice), floor.WithConfig(config), floor.WithLogger(logger)}
	if options.trace != "" {
		serviceOptions = append(serviceOptions, floor.WithTracing("floor", version, options.trace))
		defer func() {
			if err := tracing.Shutdown(context.Background()); err != nil {
				logger.Error(err, "failed to flush spans")
			}
		}()
	}
	srv := floor.New(serviceOptions...)
	srv.Registry().RegisterFunction(printer.Name, printer.New(root.stdout).Function)
	if options.stub {
		stub(srv.Registry(), anOffice)
	}
	rt := srv.Runtime()
	if err = rt.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := rt.Shutdown(context.Background()); err != nil {
			logger.Error(err, "shutdown failed")
		}
	}()
	var parameter interface{}
	if options.parameter != "" {
		parameter = options.parameter
	}
	handle, err := rt.InvokeFunction(ctx, function, parameter)
	if err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()
	failure := handle.AwaitCompletion(waitCtx)
	snapshot := handle.Progress()
	fmt.Fprintf(root.stdout, "process %v: %v (jobs %d, completed %d, escalations %d, discarded %d)\n",
		handle.ProcessID(), handle.Process().State(), snapshot.TotalJobs, snapshot.CompletedJobs, snapshot.Escalations, snapshot.DiscardedJobs)
	return failure
}

// stub registers pass-through implementations for every name of an
// initialised office the registry cannot resolve
func stub(registry *extension.Registry, anOffice *model.Office) {
	for _, function := range anOffice.Functions {
		logic := function.Logic
		if _, err := registry.Function(logic); err != nil {
			registry.RegisterFunction(logic, func(ctx types.FunctionContext) (interface{}, error) {
				ctx.Logger().Info("stub function", "logic", logic)
				return ctx.Parameter(), nil
			})
		}
		for _, duty := range append(append([]*model.Duty{}, function.Pre...), function.Post...) {
			if _, err := registry.Duty(duty.Logic); err != nil {
				registry.RegisterDuty(duty.Logic, nop.Duty)
			}
		}
	}
	for _, object := range anOffice.ManagedObjects {
		if _, err := registry.Source(object.Source); err != nil {
			properties := object.Properties
			registry.RegisterSource(object.Source, managed.Func(func(context.Context) (interface{}, error) {
				return properties, nil
			}))
		}
	}
	for _, aGovernance := range anOffice.Governances {
		if _, err := registry.Governance(aGovernance.Factory); err != nil {
			registry.RegisterGovernance(aGovernance.Factory, func() governance.Governance { return stubGovernance{} })
		}
	}
}

type stubGovernance struct{}

func (stubGovernance) Govern(context.Context, interface{}) error { return nil }
func (stubGovernance) Enforce(context.Context) error             { return nil }
func (stubGovernance) Disregard(context.Context) error           { return nil }
