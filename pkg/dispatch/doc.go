/*
Package dispatch provides the main execution context used by view-models.

A Loop is a serialized work queue. Exactly one goroutine runs it (by calling
Run), and that goroutine is "main": every operation submitted through Invoke or
Post executes there, one at a time, in submission order.

# Re-entrancy

Operations receive a context that identifies the loop they run on. Calling
Invoke with that context from inside an operation still goes through the queue:
the call pumps earlier items inline until its own item has run, so ordering is
preserved and the loop never waits on itself. Contexts handed to other
goroutines should be passed through Detach first.

# Failures

Invoke returns the operation's error to the caller. Panics are recovered and
returned as *PanicError. Failures of posted operations have no caller and are
reported through the loop's logger and Hooks.OnUnhandled.
*/
package dispatch
