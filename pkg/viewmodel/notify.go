package viewmodel

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// PropertyChanged is delivered to subscribers when a property changes.
type PropertyChanged struct {
	Source any
	Name   string
	// Ctx is the context the change was raised with. Changes raised by an
	// operation on the main loop carry its context, which a handler must pass
	// to RunOnMain. Never nil.
	Ctx context.Context
}

// Handler receives property change events on the goroutine that raised them.
type Handler func(PropertyChanged)

type listener struct {
	id uint64
	h  Handler
}

// InvalidPropertyError reports a notification for a name the owner does not expose.
type InvalidPropertyError struct {
	Type string
	Name string
}

func (e *InvalidPropertyError) Error() string {
	return fmt.Sprintf("viewmodel: invalid property name %q on %s", e.Name, e.Type)
}

// Subscribe registers h for property change events and returns a function that
// removes it. Subscriptions live until removed.
func (b *Base) Subscribe(h Handler) func() {
	if h == nil {
		return func() {}
	}
	id := b.nextID.Add(1)

	b.lmu.Lock()
	b.listeners = append(b.listeners, listener{id: id, h: h})
	b.lmu.Unlock()

	return func() {
		b.lmu.Lock()
		defer b.lmu.Unlock()
		for i, l := range b.listeners {
			if l.id == id {
				b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// NotifyChanged delivers a change of name to every current subscriber before
// returning. With verification enabled an unknown name warns, or panics in
// strict mode, before delivery. Handlers see a background context; use
// NotifyChangedContext from main loop operations.
func (b *Base) NotifyChanged(name string) {
	b.NotifyChangedContext(context.Background(), name)
}

// NotifyChangedContext is NotifyChanged with the context handed to handlers
// in PropertyChanged.Ctx.
func (b *Base) NotifyChangedContext(ctx context.Context, name string) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.verify {
		if err := b.VerifyPropertyName(name); err != nil {
			if b.strict {
				panic(err)
			}
			b.logger.Warn("Invalid property name", "viewmodel", b.name, "property", name)
		}
	}

	b.lmu.RLock()
	listeners := make([]listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.lmu.RUnlock()

	evt := PropertyChanged{Source: b.owner, Name: name, Ctx: ctx}
	for _, l := range listeners {
		l.h(evt)
	}
}

// VerifyPropertyName returns an *InvalidPropertyError unless name is an
// exported field or getter of the owner or a registered property name.
func (b *Base) VerifyPropertyName(name string) error {
	if _, ok := b.names.Load(name); ok {
		return nil
	}
	t := reflect.TypeOf(b.owner)
	if hasProperty(t, name) {
		return nil
	}
	return &InvalidPropertyError{Type: t.String(), Name: name}
}

type propertyKey struct {
	t    reflect.Type
	name string
}

var propertyCache sync.Map

func hasProperty(t reflect.Type, name string) bool {
	key := propertyKey{t: t, name: name}
	if v, ok := propertyCache.Load(key); ok {
		return v.(bool)
	}
	found := lookupProperty(t, name)
	propertyCache.Store(key, found)
	return found
}

func lookupProperty(t reflect.Type, name string) bool {
	// Method sets from reflect only hold exported methods.
	if m, ok := t.MethodByName(name); ok {
		if m.Type.NumIn() == 1 && m.Type.NumOut() >= 1 {
			return true
		}
	}
	st := t
	for st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return false
	}
	// Embedded fields (the Base itself) are not properties.
	f, ok := st.FieldByName(name)
	return ok && f.IsExported() && !f.Anonymous
}
