/*
Package command implements the relay command used to bind UI actions to view-model logic.

A Relay wraps an Action and an optional Guard. Invokers ask CanExecute before
calling Execute; the relay itself never re-checks the guard.

Guards are re-evaluated when the process-wide Requery signal fires. A relay does
not keep subscribers of its own: OnCanExecuteChanged forwards to its Requery.
*/
package command
