package source

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/keithlinneman/linnemanlabs-content/internal/content"
	"github.com/keithlinneman/linnemanlabs-content/internal/cryptoutil"
	"github.com/keithlinneman/linnemanlabs-content/internal/log"
	"github.com/keithlinneman/linnemanlabs-content/internal/xerrors"
)

// Dir serves content from a local directory.
type Dir struct {
	root string
	fsys fs.FS
}

// NewDir returns a source for the directory at root.
func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, xerrors.Wrapf(err, "resolve content dir %s", root)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, xerrors.Wrapf(err, "content dir %s", root)
	}
	if !st.IsDir() {
		return nil, xerrors.Newf("content dir %s is not a directory", root)
	}
	return &Dir{root: abs, fsys: os.DirFS(abs)}, nil
}

func (d *Dir) Kind() content.SourceKind { return content.SourceDir }

func (d *Dir) Root() string { return d.root }

// Fingerprint hashes the path, size and modification time of every file.
func (d *Dir) Fingerprint(ctx context.Context) (string, error) {
	return fingerprintFS(ctx, d.fsys)
}

// Open returns the directory; a directory has no older revisions to select.
func (d *Dir) Open(context.Context, string) (fs.FS, error) { return d.fsys, nil }

func fingerprintFS(ctx context.Context, fsys fs.FS) (string, error) {
	dg := cryptoutil.NewDigest()
	err := fs.WalkDir(fsys, ".", func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() {
			return nil
		}
		info, err := e.Info()
		if err != nil {
			return err
		}
		dg.Add(p, strconv.FormatInt(info.Size(), 10), strconv.FormatInt(info.ModTime().UnixNano(), 10))
		return nil
	})
	if err != nil {
		return "", xerrors.Wrap(err, "fingerprint content dir")
	}
	return dg.Hex(), nil
}

// Changes streams a notification whenever something below the directory
// changes. Bursts of events are coalesced into a single pending
// notification. The channel is closed when ctx is done or the underlying
// watcher fails.
func (d *Dir) Changes(ctx context.Context) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, xerrors.Wrap(err, "create fs watcher")
	}
	if err := addTree(w, d.root); err != nil {
		_ = w.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	lg := log.FromContext(ctx)

	go func() {
		defer close(out)
		defer w.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case evt, ok := <-w.Events:
				if !ok {
					return
				}
				if evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) {
					continue
				}
				if evt.Has(fsnotify.Create) {
					if st, err := os.Stat(evt.Name); err == nil && st.IsDir() {
						if err := addTree(w, evt.Name); err != nil {
							lg.Warn(ctx, "content dir: cannot watch new directory", "dir", evt.Name, "error", err)
						}
					}
				}
				select {
				case out <- struct{}{}:
				default:
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				lg.Error(ctx, err, "content dir: watcher error")
			}
		}
	}()

	return out, nil
}

// addTree watches dir and every directory below it. fsnotify is not
// recursive.
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !e.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(e.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(p); err != nil {
			return xerrors.Wrapf(err, "watch %s", p)
		}
		return nil
	})
}
