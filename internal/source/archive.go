package source

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"path"
	"strings"
	"testing/fstest"

	"github.com/keithlinneman/linnemanlabs-content/internal/xerrors"
)

const (
	// maxBundleSize is the maximum size of a compressed content bundle from s3
	maxBundleSize int64 = 50 * 1024 * 1024 // 50MB

	// maxSingleFile is the maximum size of a single file in the bundle
	maxSingleFile int64 = 10 * 1024 * 1024 // 10MB

	// maxTotalExtract is the maximum total size of extracted content
	maxTotalExtract int64 = 100 * 1024 * 1024 // 100MB
)

var errTooLarge = errors.New("size limit exceeded")

// readWithHash reads all bytes from r up to maxSize, computing SHA256 as it
// reads. Returns the data and its hex-encoded hash.
func readWithHash(r io.Reader, maxSize int64) ([]byte, string, error) {
	h := sha256.New()
	tr := io.TeeReader(io.LimitReader(r, maxSize+1), h)

	data, err := io.ReadAll(tr)
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > maxSize {
		return nil, "", xerrors.Wrapf(errTooLarge, "bundle exceeds %d bytes", maxSize)
	}

	return data, hex.EncodeToString(h.Sum(nil)), nil
}

type extractLimits struct {
	file  int64
	total int64
}

var defaultLimits = extractLimits{file: maxSingleFile, total: maxTotalExtract}

// extractTarGzToMem extracts a .tar.gz archive to an in-memory filesystem.
// Only regular files and directories are accepted.
func extractTarGzToMem(data []byte, limits extractLimits) (fs.FS, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, xerrors.Wrap(err, "open gzip")
	}
	defer gr.Close()

	mfs := make(fstest.MapFS)
	tr := tar.NewReader(gr)

	var totalBytes int64

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, xerrors.Wrap(err, "read tar header")
		}

		name, err := cleanArchivePath(hdr.Name)
		if err != nil {
			return nil, err
		}
		if name == "" {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			// directories are implicit in MapFS
			continue

		case tar.TypeReg:
			if hdr.Size > limits.file {
				return nil, xerrors.Wrapf(errTooLarge, "file %s is %d bytes, limit %d", name, hdr.Size, limits.file)
			}

			body, err := io.ReadAll(io.LimitReader(tr, limits.file+1))
			if err != nil {
				return nil, xerrors.Wrapf(err, "read %s", name)
			}
			if int64(len(body)) > limits.file {
				return nil, xerrors.Wrapf(errTooLarge, "file %s exceeds %d bytes", name, limits.file)
			}

			totalBytes += int64(len(body))
			if totalBytes > limits.total {
				return nil, xerrors.Wrapf(errTooLarge, "extracted content exceeds %d bytes", limits.total)
			}

			mfs[name] = &fstest.MapFile{
				Data: body,
				Mode: hdr.FileInfo().Mode().Perm(),
			}

		default:
			return nil, xerrors.Newf("unsupported file type in archive: %s (type=%d)", name, hdr.Typeflag)
		}
	}

	return mfs, nil
}

// cleanArchivePath normalizes an archive member name to an fs.FS path.
// It returns "" for the archive root.
func cleanArchivePath(name string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(name, "./"))
	if clean == "." || clean == "" {
		return "", nil
	}
	if path.IsAbs(clean) {
		return "", xerrors.Newf("absolute path in archive: %s", name)
	}
	if !fs.ValidPath(clean) {
		return "", xerrors.Newf("path traversal in archive: %s", name)
	}
	return clean, nil
}
