package directives

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

var (
	ErrProcessorNotRegistered = errors.Base("no directive processor registered")
	ErrAssemblyNotResolved    = errors.Base("could not resolve assembly")
	ErrTypeNotFound           = errors.Base("directive processor type not found")
)

// Factory creates a fresh processor instance for one run.
type Factory func() Processor

// ExternalProcessor names a processor supplied outside this module: the type
// to instantiate and the assembly reference that provides it.
type ExternalProcessor struct {
	TypeName string
	Assembly string
}

// AssemblyResolver turns an assembly reference into a loadable location. An
// empty location means the reference could not be resolved.
type AssemblyResolver interface {
	ResolveAssemblyReference(ctx context.Context, reference string) (string, error)
}

// Loader instantiates processor types from a resolved location.
type Loader interface {
	LoadProcessor(ctx context.Context, location, typeName string) (Factory, error)
}

// TypeTable is a Loader backed by compiled-in factories keyed by type name.
type TypeTable map[string]Factory

func (t TypeTable) LoadProcessor(ctx context.Context, location, typeName string) (Factory, error) {
	f, ok := t[typeName]
	if !ok {
		return nil, errors.Errorf("%w: '%s' in '%s'", ErrTypeNotFound, typeName, location)
	}
	return f, nil
}

// Registry maps processor names to factories. It may be shared by concurrent
// runs; external processors are resolved on first use and cached.
type Registry struct {
	mu       sync.RWMutex
	builtins map[string]Factory
	external map[string]ExternalProcessor
	resolved map[string]Factory

	assemblies AssemblyResolver
	loader     Loader
}

type RegistryOption func(*Registry)

func WithAssemblyResolver(r AssemblyResolver) RegistryOption {
	return func(reg *Registry) {
		reg.assemblies = r
	}
}

func WithLoader(l Loader) RegistryOption {
	return func(reg *Registry) {
		reg.loader = l
	}
}

// NewRegistry returns a registry with the parameter processor registered.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		builtins: map[string]Factory{
			ParameterProcessorName: func() Processor { return NewParameterProcessor() },
		},
		external: map[string]ExternalProcessor{},
		resolved: map[string]Factory{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds an in-process processor, replacing any earlier one.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builtins[name] = f
	delete(r.resolved, name)
}

// AddExternal declares a processor that is loaded through the registry's
// AssemblyResolver and Loader.
func (r *Registry) AddExternal(name, typeName, assembly string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ext := ExternalProcessor{TypeName: typeName, Assembly: assembly}
	if prev, ok := r.external[name]; ok && prev == ext {
		return
	}
	r.external[name] = ext
	delete(r.resolved, name)
}

// Names lists every registered processor name in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builtins)+len(r.external))
	for n := range r.builtins {
		names = append(names, n)
	}
	for n := range r.external {
		if _, ok := r.builtins[n]; !ok {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Resolve returns the factory registered as name.
func (r *Registry) Resolve(ctx context.Context, name string) (Factory, error) {
	r.mu.RLock()
	if f, ok := r.builtins[name]; ok {
		r.mu.RUnlock()
		return f, nil
	}
	if f, ok := r.resolved[name]; ok {
		r.mu.RUnlock()
		return f, nil
	}
	ext, ok := r.external[name]
	assemblies, loader := r.assemblies, r.loader
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Errorf("%w as '%s'", ErrProcessorNotRegistered, name)
	}

	location := ""
	if assemblies != nil {
		var err error
		location, err = assemblies.ResolveAssemblyReference(ctx, ext.Assembly)
		if err != nil {
			return nil, errors.Errorf("%w '%s' for directive processor '%s': %s", ErrAssemblyNotResolved, ext.Assembly, name, err.Error())
		}
	}
	if location == "" {
		return nil, errors.Errorf("%w '%s' for directive processor '%s'", ErrAssemblyNotResolved, ext.Assembly, name)
	}

	if loader == nil {
		return nil, errors.Errorf("%w: no loader for '%s'", ErrTypeNotFound, ext.TypeName)
	}
	f, err := loader.LoadProcessor(ctx, location, ext.TypeName)
	if err != nil {
		return nil, errors.Errorf("loading directive processor '%s': %w", name, err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("processor", name).
		Str("type", ext.TypeName).
		Str("location", location).
		Msg("resolved external directive processor")

	r.mu.Lock()
	r.resolved[name] = f
	r.mu.Unlock()
	return f, nil
}

// New resolves name and creates an initialized processor.
func (r *Registry) New(ctx context.Context, name string) (Processor, error) {
	f, err := r.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	p := f()
	if err := p.Initialize(ctx); err != nil {
		return nil, errors.Errorf("initializing directive processor '%s': %w", name, err)
	}
	return p, nil
}
