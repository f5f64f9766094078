/*
Package observability exposes Prometheus metrics for the main loop, view-models and commands.

Metrics does not reach into the core packages; it hands out the Hooks values
that dispatch.Loop, viewmodel.Base and command.Relay accept:

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	loop := dispatch.NewLoop(dispatch.WithHooks(metrics.LoopHooks()))
	vm := viewmodel.New(owner, loop, viewmodel.WithHooks(metrics.ViewModelHooks("transfer")))
*/
package observability
