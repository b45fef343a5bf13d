package content

import (
	"context"
	"io/fs"

	"github.com/keithlinneman/linnemanlabs-content/internal/xerrors"
)

// Source is where a content tree comes from.
type Source interface {
	Kind() SourceKind
	// Fingerprint identifies the current revision of the content tree.
	// It changes whenever the tree changes.
	Fingerprint(ctx context.Context) (string, error)
	// Open returns the content root for the given fingerprint.
	Open(ctx context.Context, fingerprint string) (fs.FS, error)
}

// Load builds a snapshot of the source's current revision.
func Load(ctx context.Context, src Source, b *Builder) (*Snapshot, error) {
	fp, err := src.Fingerprint(ctx)
	if err != nil {
		return nil, xerrors.Wrap(err, "fingerprint content source")
	}
	return loadFingerprint(ctx, src, b, fp)
}

func loadFingerprint(ctx context.Context, src Source, b *Builder, fp string) (*Snapshot, error) {
	fsys, err := src.Open(ctx, fp)
	if err != nil {
		return nil, xerrors.Wrapf(err, "open content source at %s", truncHash(fp))
	}
	return b.Build(ctx, fsys, Meta{Fingerprint: fp, Source: src.Kind()})
}

// LoadIntoManager builds the current revision and makes it active.
func LoadIntoManager(ctx context.Context, src Source, b *Builder, mgr *Manager, opts ValidationOptions) error {
	snap, err := Load(ctx, src, b)
	if err != nil {
		return err
	}
	if err := ValidateSnapshot(snap, opts); err != nil {
		return err
	}
	mgr.Set(*snap)
	return nil
}
