/*
Package mvvm is a small Model-View-ViewModel foundation for Go programs that keep
their presentation state on a single "main" goroutine.

It provides the two pieces every view-model layer rebuilds by hand:

  - Commands (package command): a Relay wraps an action and an optional guard,
    and announces when its guard may have changed through a shared Requery signal.
  - Observable view-models (package viewmodel): a Base raises property change
    notifications, tracks a Busy flag around background work, carries a
    cooperative cancellation flag and marshals work onto the main loop.

The main loop itself lives in package dispatch. A Runtime wires one loop, one
requery signal, the logger and optional Prometheus metrics together.

# Concept

All view-model state changes happen on the main loop. Background work is started
with RunBackground; progress is published back with RunOnMain. Observers attached
with Subscribe run on the goroutine that raised the change; for changes made by
main loop operations that is the main goroutine, and PropertyChanged.Ctx carries
the loop context any nested RunOnMain call must be given.

# Usage

	package main

	import (
		"context"
		"fmt"

		"github.com/aretw0/mvvm"
		"github.com/aretw0/mvvm/pkg/viewmodel"
	)

	type Counter struct {
		*viewmodel.Base
		Value int
	}

	func main() {
		rt := mvvm.New()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		c := &Counter{}
		c.Base = rt.NewBase(c)
		c.Subscribe(func(e viewmodel.PropertyChanged) {
			fmt.Println(e.Name, "changed")
		})

		c.RunBackground(func(ctx context.Context) error {
			return c.RunOnMain(ctx, func(context.Context) error {
				c.Value++
				c.NotifyChanged("Value")
				return nil
			})
		})

		go func() {
			c.Wait()
			cancel()
		}()
		_ = rt.Run(ctx) // the calling goroutine becomes the main loop
	}
*/
package mvvm
