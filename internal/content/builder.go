package content

import (
	"context"
	"io/fs"
	"sort"
	"time"

	"github.com/keithlinneman/linnemanlabs-content/internal/collection"
	"github.com/keithlinneman/linnemanlabs-content/internal/cryptoutil"
	"github.com/keithlinneman/linnemanlabs-content/internal/loader"
	"github.com/keithlinneman/linnemanlabs-content/internal/xerrors"
)

// BuildMetrics is implemented by the metrics package to observe builds.
type BuildMetrics interface {
	SetCollectionEntries(collection string, n int)
	IncValidationFailures(collection string, n int)
	ObserveBuildDuration(seconds float64)
}

// Builder turns a content root into a Snapshot.
type Builder struct {
	registry *collection.Registry
	opts     []loader.Option
	metrics  BuildMetrics
}

func NewBuilder(reg *collection.Registry, metrics BuildMetrics, opts ...loader.Option) *Builder {
	return &Builder{registry: reg, opts: opts, metrics: metrics}
}

// Build loads every collection of the registry from fsys. Any invalid entry
// fails the build; the returned error joins every *loader.EntryError.
func (b *Builder) Build(ctx context.Context, fsys fs.FS, meta Meta) (*Snapshot, error) {
	if fsys == nil {
		return nil, xerrors.New("build: nil content filesystem")
	}

	start := time.Now()
	cols, err := loader.New(fsys, b.opts...).LoadAll(ctx, b.registry)
	if b.metrics != nil {
		b.metrics.ObserveBuildDuration(time.Since(start).Seconds())
		for name, entries := range cols {
			b.metrics.SetCollectionEntries(name, len(entries))
		}
		for name, n := range countEntryErrors(err) {
			b.metrics.IncValidationFailures(name, n)
		}
	}
	if err != nil {
		return nil, err
	}

	meta.Hash = contentHash(cols)
	if meta.BuiltAt.IsZero() {
		meta.BuiltAt = time.Now().UTC()
	}

	snap := &Snapshot{
		FS:          fsys,
		Collections: cols,
		Meta:        meta,
	}
	snap.buildIndex()
	return snap, nil
}

// EntryErrors flattens err into its per-file errors.
func EntryErrors(err error) []*loader.EntryError {
	var out []*loader.EntryError
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if ee, ok := e.(*loader.EntryError); ok {
			out = append(out, ee)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)
	return out
}

func countEntryErrors(err error) map[string]int {
	out := map[string]int{}
	for _, ee := range EntryErrors(err) {
		out[ee.Collection]++
	}
	return out
}

func contentHash(cols map[string][]loader.Entry) string {
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)

	d := cryptoutil.NewDigest()
	for _, name := range names {
		for _, e := range cols[name] {
			d.Add(name, e.ID, e.Digest)
		}
	}
	return d.Hex()
}
