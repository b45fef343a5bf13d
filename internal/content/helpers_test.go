package content

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/keithlinneman/linnemanlabs-content/internal/sitecontent"
)

func md(s string) *fstest.MapFile { return &fstest.MapFile{Data: []byte(s)} }

// validTree returns a content root with one entry in every site collection.
func validTree() fstest.MapFS {
	return fstest.MapFS{
		"about.md":         md("---\ntitle: About\ndescription: Who\n---\nHi\n"),
		"blog/hello.md":    md("---\ntitle: Hello\ndescription: First post\npubDate: 2024-01-01\n---\n# Hello\n"),
		"projects/tool.md": md("---\ntitle: Tool\ndescription: A tool\npubDate: 2023-06-01\n---\n"),
		"projects/_wip.md": md("---\ntitle: WIP\n---\n"),
	}
}

func invalidTree() fstest.MapFS {
	tree := validTree()
	tree["blog/broken.md"] = md("---\ntitle: Broken\ndescription: no date\n---\n")
	return tree
}

func newTestBuilder() *Builder { return NewBuilder(sitecontent.Registry(), nil) }

// fakeSource serves whatever tree and fingerprint the test sets.
type fakeSource struct {
	mu      sync.Mutex
	fp      string
	tree    fs.FS
	fpErr   error
	openErr error
	opens   int
}

func newFakeSource(fp string, tree fs.FS) *fakeSource { return &fakeSource{fp: fp, tree: tree} }

func (f *fakeSource) Kind() SourceKind { return SourceDir }

func (f *fakeSource) Fingerprint(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fpErr != nil {
		return "", f.fpErr
	}
	return f.fp, nil
}

func (f *fakeSource) Open(_ context.Context, fp string) (fs.FS, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.openErr != nil {
		return nil, f.openErr
	}
	if fp != f.fp {
		return nil, errors.New("stale fingerprint")
	}
	return f.tree, nil
}

func (f *fakeSource) set(fp string, tree fs.FS) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fp, f.tree = fp, tree
}

func (f *fakeSource) setFingerprintErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fpErr = err
}

func (f *fakeSource) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func mustBuild(t *testing.T, tree fs.FS, fp string) *Snapshot {
	t.Helper()
	snap, err := newTestBuilder().Build(t.Context(), tree, Meta{Fingerprint: fp, Source: SourceDir})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return snap
}

type fakeMetrics struct {
	mu          sync.Mutex
	polls       int
	swaps       int
	errs        map[string]int
	stale       bool
	entries     map[string]int
	failures    map[string]int
	buildTimes  int
	loadTimes   int
	lastSuccess float64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{errs: map[string]int{}, entries: map[string]int{}, failures: map[string]int{}}
}

func (m *fakeMetrics) IncWatcherPolls()                { m.mu.Lock(); m.polls++; m.mu.Unlock() }
func (m *fakeMetrics) IncWatcherSwaps()                { m.mu.Lock(); m.swaps++; m.mu.Unlock() }
func (m *fakeMetrics) IncWatcherError(t string)        { m.mu.Lock(); m.errs[t]++; m.mu.Unlock() }
func (m *fakeMetrics) ObserveLoadDuration(float64)     { m.mu.Lock(); m.loadTimes++; m.mu.Unlock() }
func (m *fakeMetrics) SetWatcherLastSuccess(s float64) { m.mu.Lock(); m.lastSuccess = s; m.mu.Unlock() }
func (m *fakeMetrics) SetWatcherStale(s bool)          { m.mu.Lock(); m.stale = s; m.mu.Unlock() }
func (m *fakeMetrics) SetCollectionEntries(c string, n int) {
	m.mu.Lock()
	m.entries[c] = n
	m.mu.Unlock()
}
func (m *fakeMetrics) IncValidationFailures(c string, n int) {
	m.mu.Lock()
	m.failures[c] += n
	m.mu.Unlock()
}
func (m *fakeMetrics) ObserveBuildDuration(float64) { m.mu.Lock(); m.buildTimes++; m.mu.Unlock() }

func (m *fakeMetrics) swapCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.swaps
}
