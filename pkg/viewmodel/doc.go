/*
Package viewmodel provides the observable base embedded by every view-model.

A concrete view-model embeds *Base and binds it to itself and to the main
dispatcher:

	type Transfer struct {
		*viewmodel.Base
		progress *viewmodel.Property[int]
	}

	func NewTransfer(main dispatch.Dispatcher) *Transfer {
		t := &Transfer{}
		t.Base = viewmodel.New(t, main)
		t.progress = viewmodel.NewProperty(t.Base, "Progress", 0)
		return t
	}

# Busy and cancellation

Busy is Idle until RunBackground starts an operation. The transition to Working
and back happens on the main context and each one notifies "Busy". Both
transitions also reset the cancellation flag. Cancel only raises the flag;
operations poll Cancelled and stop themselves.

# Background modes

SerializeOnMain (the default) runs the whole operation on the main loop: the
spawned goroutine only hands the bracketed operation over and waits. OffMain
runs the operation on the spawned goroutine and marshals only the busy
transitions; such operations must use RunOnMain for any state observers can see.

# Property names

Builds tagged mvvmdebug verify every name passed to NotifyChanged against the
owner's exported fields and getters and the names registered with
WithProperties or NewProperty. Unknown names log a warning, or panic with
*InvalidPropertyError when WithStrictPropertyNames is set. Other builds skip the
check unless WithPropertyVerification enables it.
*/
package viewmodel
