package collection

import (
	"errors"

	"github.com/keithlinneman/linnemanlabs-content/internal/xerrors"
)

// Registry is an immutable name to Definition mapping. Accessors return
// copies, so callers cannot change a registry after New.
type Registry struct {
	order []string
	defs  map[string]Definition
}

// New registers defs in order. Duplicate names and definitions that did
// not come from Define are configuration errors; all of them are reported.
func New(defs ...Definition) (*Registry, error) {
	r := &Registry{
		order: make([]string, 0, len(defs)),
		defs:  make(map[string]Definition, len(defs)),
	}

	var errs []error
	for _, d := range defs {
		if !d.Loader.Compiled() {
			errs = append(errs, xerrors.Wrapf(ErrInvalidDefinition, "collection %q was not built with Define", d.Name))
			continue
		}
		if _, dup := r.defs[d.Name]; dup {
			errs = append(errs, xerrors.Wrapf(ErrDuplicateCollection, "collection %q", d.Name))
			continue
		}
		r.order = append(r.order, d.Name)
		r.defs[d.Name] = d
	}

	if err := errors.Join(errs...); err != nil {
		return nil, xerrors.WithStack(err)
	}
	return r, nil
}

// MustNew is New that panics on error.
func MustNew(defs ...Definition) *Registry {
	r, err := New(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the definition registered under name.
func (r *Registry) Get(name string) (Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Names returns collection names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Definitions returns every definition in registration order.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.defs[n])
	}
	return out
}

func (r *Registry) Len() int { return len(r.order) }
