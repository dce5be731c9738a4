package object

import (
	"log/slog"
	"sync/atomic"
)

var nextID atomic.Uint64

// Environment is one scope. Scopes only ever point outwards, so a closure keeps
// its defining scope alive for as long as the function value exists.
type Environment struct {
	ID       uint64
	Bindings map[string]*Binding
	Outer    *Environment
}

// Binding is the mutable cell behind a name. Assignment replaces Value; the
// object previously stored there is never modified.
type Binding struct {
	Value Object
}

func nextEnvID() uint64 {
	return nextID.Add(1)
}

func NewEnvironment() *Environment {
	return &Environment{
		ID:       nextEnvID(),
		Bindings: make(map[string]*Binding),
	}
}

// NewEnclosedEnvironment creates a child scope of outer.
func NewEnclosedEnvironment(outer *Environment) *Environment {
	env := NewEnvironment()
	env.Outer = outer
	return env
}

func (e *Environment) GetBinding(name string) (*Binding, bool) {
	for env := e; env != nil; env = env.Outer {
		if binding, ok := env.Bindings[name]; ok {
			return binding, true
		}
	}
	return nil, false
}

func (e *Environment) Get(name string) (Object, bool) {
	binding, ok := e.GetBinding(name)
	if !ok {
		return nil, false
	}
	return binding.Value, true
}

// Define binds name in this scope, shadowing any outer binding of the same name.
// Redefining a name in the same scope replaces its binding.
func (e *Environment) Define(name string, val Object) Object {
	e.Bindings[name] = &Binding{Value: val}
	slog.Debug("binding value",
		slog.String("name", name),
		slog.Any("type", val.Type()),
		slog.Uint64("env", e.ID))
	return val
}

// Assign stores val in the nearest scope that already binds name. When no scope
// does, the name is defined here.
func (e *Environment) Assign(name string, val Object) Object {
	if binding, ok := e.GetBinding(name); ok {
		binding.Value = val
		slog.Debug("assigning bound value",
			slog.String("name", name),
			slog.Any("type", val.Type()))
		return val
	}
	return e.Define(name, val)
}
