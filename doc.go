// Package floor is an in-process execution kernel. An office describes teams,
// managed objects, governances and functions; the runtime invokes functions
// as processes whose jobs run on teams, with scoped managed objects released
// exactly once and failures escalated function, flow, thread then process.
//
//	srv := floor.New(
//		floor.WithOfficeURL("orders.yaml"),
//		floor.WithFunction("receive", receive),
//	)
//	rt := srv.Runtime()
//	_ = rt.Start(ctx)
//	handle, _ := rt.InvokeFunction(ctx, "receive", request)
//	err := handle.AwaitCompletion(ctx)
package floor
