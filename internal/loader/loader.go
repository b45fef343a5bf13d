package loader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/keithlinneman/linnemanlabs-content/internal/collection"
	"github.com/keithlinneman/linnemanlabs-content/internal/log"
	"github.com/keithlinneman/linnemanlabs-content/internal/pathutil"
	"github.com/keithlinneman/linnemanlabs-content/internal/xerrors"
)

const defaultMaxFileSize = 4 << 20

var (
	// ErrDuplicateID means two files of one collection map to the same entry ID.
	ErrDuplicateID  = errors.New("duplicate entry id")
	ErrFileTooLarge = errors.New("content file too large")
)

var yamlFrontmatter = frontmatter.NewFormat("---", "---", yaml.Unmarshal)

// Loader reads collection entries from a content root.
type Loader struct {
	fsys        fs.FS
	md          goldmark.Markdown
	tracer      trace.Tracer
	maxFileSize int64
}

type Option func(*Loader)

// WithMaxFileSize caps the size of a single content file.
func WithMaxFileSize(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxFileSize = n
		}
	}
}

// WithTracer overrides the tracer used for load spans.
func WithTracer(t trace.Tracer) Option {
	return func(l *Loader) {
		if t != nil {
			l.tracer = t
		}
	}
}

// New returns a Loader reading from fsys, the content root.
func New(fsys fs.FS, opts ...Option) *Loader {
	l := &Loader{
		fsys:        fsys,
		md:          newMarkdown(),
		tracer:      otel.Tracer("linnemanlabs/loader"),
		maxFileSize: defaultMaxFileSize,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LoadAll loads every collection of reg. The result always holds an entry
// slice per collection; err joins the errors of all collections.
func (l *Loader) LoadAll(ctx context.Context, reg *collection.Registry) (map[string][]Entry, error) {
	out := make(map[string][]Entry, reg.Len())
	var errs []error
	for _, def := range reg.Definitions() {
		entries, err := l.LoadCollection(ctx, def)
		out[def.Name] = entries
		if err != nil {
			errs = append(errs, err)
		}
	}
	return out, errors.Join(errs...)
}

// LoadCollection loads every file selected by def, sorted by ID. Files that
// fail are left out of the result and reported as joined *EntryError values.
func (l *Loader) LoadCollection(ctx context.Context, def collection.Definition) ([]Entry, error) {
	ctx, span := l.tracer.Start(ctx, "loader.collection",
		trace.WithAttributes(
			attribute.String("collection.name", def.Name),
			attribute.String("collection.base", def.Loader.Base),
		),
	)
	defer span.End()

	lg := log.FromContext(ctx).With("collection", def.Name)

	files, err := l.discover(def)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "discover failed")
		return nil, err
	}

	entries := make([]Entry, 0, len(files))
	byID := make(map[string]string, len(files))
	var errs []error

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e, err := l.loadFile(def, file)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if prev, dup := byID[e.ID]; dup {
			errs = append(errs, &EntryError{
				Collection: def.Name,
				File:       file,
				Err:        xerrors.Wrapf(ErrDuplicateID, "%q already defined by %s", e.ID, prev),
			})
			continue
		}
		byID[e.ID] = file
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	span.SetAttributes(
		attribute.Int("collection.files", len(files)),
		attribute.Int("collection.entries", len(entries)),
		attribute.Int("collection.errors", len(errs)),
	)

	if len(errs) > 0 {
		err := errors.Join(errs...)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid entries")
		return entries, err
	}

	lg.Debug(ctx, "collection loaded", "entries", len(entries))
	return entries, nil
}

// discover lists the files of def relative to the content root. A missing
// base directory yields an empty collection.
func (l *Loader) discover(def collection.Definition) ([]string, error) {
	base := def.Loader.Base
	var files []string

	err := fs.WalkDir(l.fsys, base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == base && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}

		name := d.Name()
		if p != base && pathutil.Excluded(name) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel := relTo(base, p)
		if def.Loader.Match(rel) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.Wrapf(err, "walk %s for collection %q", base, def.Name)
	}

	sort.Strings(files)
	return files, nil
}

func relTo(base, p string) string {
	if base == "." {
		return p
	}
	return strings.TrimPrefix(p, base+"/")
}

// LoadFile loads a single file of def; file is relative to the content root.
func (l *Loader) LoadFile(ctx context.Context, def collection.Definition, file string) (Entry, error) {
	_, span := l.tracer.Start(ctx, "loader.file",
		trace.WithAttributes(
			attribute.String("collection.name", def.Name),
			attribute.String("content.file", file),
		),
	)
	defer span.End()

	e, err := l.loadFile(def, file)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid entry")
	}
	return e, err
}

func (l *Loader) loadFile(def collection.Definition, file string) (Entry, error) {
	fail := func(err error) (Entry, error) {
		return Entry{}, &EntryError{Collection: def.Name, File: file, Err: err}
	}

	raw, err := l.read(file)
	if err != nil {
		return fail(err)
	}

	data := map[string]any{}
	body, err := frontmatter.Parse(bytes.NewReader(raw), &data, yamlFrontmatter)
	if err != nil {
		return fail(xerrors.Wrap(err, "parse frontmatter"))
	}
	if data == nil {
		data = map[string]any{}
	}

	shape := def.Shape(fileImages{fsys: l.fsys, file: file})
	validated, err := shape.ParseMap(data)
	if err != nil {
		return fail(err)
	}

	if strings.EqualFold(path.Ext(file), ".mdx") {
		if body, err = stripESM(bytes.NewReader(body), len(body)+1); err != nil {
			return fail(xerrors.Wrap(err, "strip mdx imports"))
		}
	}

	var html bytes.Buffer
	if err := l.md.Convert(body, &html); err != nil {
		return fail(xerrors.Wrap(err, "render markdown"))
	}

	sum := sha256.Sum256(raw)

	rel := relTo(def.Loader.Base, file)
	return Entry{
		Collection: def.Name,
		ID:         strings.TrimSuffix(rel, path.Ext(rel)),
		File:       file,
		Data:       validated,
		Body:       string(body),
		HTML:       html.String(),
		Digest:     hex.EncodeToString(sum[:]),
	}, nil
}

func (l *Loader) read(file string) ([]byte, error) {
	f, err := l.fsys.Open(file)
	if err != nil {
		return nil, xerrors.Wrap(err, "open")
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, l.maxFileSize+1))
	if err != nil {
		return nil, xerrors.Wrap(err, "read")
	}
	if int64(len(raw)) > l.maxFileSize {
		return nil, xerrors.Wrapf(ErrFileTooLarge, "exceeds %d bytes", l.maxFileSize)
	}
	return raw, nil
}
