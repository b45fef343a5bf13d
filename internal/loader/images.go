package loader

import (
	"errors"
	"image"
	"io/fs"
	"path"
	"strings"

	// image formats accepted for hero images
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/keithlinneman/linnemanlabs-content/internal/schema"
	"github.com/keithlinneman/linnemanlabs-content/internal/xerrors"
)

var imageExts = map[string]string{
	".png":  "png",
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".gif":  "gif",
	".webp": "webp",
	".svg":  "svg",
}

// fileImages resolves image references for the entry stored at file.
// Relative references are relative to the entry's directory, references
// starting with '/' are relative to the content root, http(s) URLs are
// returned as remote images without being fetched.
type fileImages struct {
	fsys fs.FS
	file string
}

func (r fileImages) ResolveImage(ref string) (schema.ImageRef, error) {
	ref = strings.TrimSpace(ref)

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return schema.ImageRef{Src: ref, Remote: true}, nil
	}

	var p string
	if rooted, ok := strings.CutPrefix(ref, "/"); ok {
		p = path.Clean(rooted)
	} else {
		p = path.Join(path.Dir(r.file), ref)
	}
	if !fs.ValidPath(p) || p == "." {
		return schema.ImageRef{}, xerrors.Newf("image %q is outside the content root", ref)
	}

	format, ok := imageExts[strings.ToLower(path.Ext(p))]
	if !ok {
		return schema.ImageRef{}, xerrors.Newf("image %q has an unsupported extension", ref)
	}

	f, err := r.fsys.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return schema.ImageRef{}, xerrors.Newf("image not found: %s", ref)
		}
		return schema.ImageRef{}, xerrors.Wrapf(err, "open image %q", ref)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return schema.ImageRef{}, xerrors.Wrapf(err, "stat image %q", ref)
	}
	if st.IsDir() {
		return schema.ImageRef{}, xerrors.Newf("image %q is a directory", ref)
	}

	if format == "svg" {
		return schema.ImageRef{Src: p, Format: format}, nil
	}

	cfg, decoded, err := image.DecodeConfig(f)
	if err != nil {
		return schema.ImageRef{}, xerrors.Wrapf(err, "decode image %q", ref)
	}

	return schema.ImageRef{Src: p, Width: cfg.Width, Height: cfg.Height, Format: decoded}, nil
}
