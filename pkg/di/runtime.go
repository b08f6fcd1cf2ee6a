// Package di wires the command handlers to their dependencies through a samber/do
// injector that is built fresh for every invocation.
package di

import "github.com/samber/do/v2"

// Injector is the dependency container handed to command handlers.
type Injector = do.Injector

// Module registers providers on an injector.
type Module func(Injector) error

// Runtime holds the modules applied to every invocation.
type Runtime struct {
	modules []Module
}

// New returns a Runtime applying modules in order.
func New(modules ...Module) *Runtime {
	return &Runtime{modules: modules}
}

// Invoke builds an injector from the base modules followed by extraModules, runs
// handler with it and shuts the injector down afterwards. Nil modules are skipped.
func (r *Runtime) Invoke(handler func(Injector) error, extraModules ...Module) error {
	injector := do.New()
	defer func() { _ = injector.Shutdown() }()

	modules := make([]Module, 0, len(r.modules)+len(extraModules))
	modules = append(modules, r.modules...)
	modules = append(modules, extraModules...)

	for _, module := range modules {
		if module == nil {
			continue
		}

		err := module(injector)
		if err != nil {
			return err
		}
	}

	return handler(injector)
}
