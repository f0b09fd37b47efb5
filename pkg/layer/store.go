// Package layer implements the content-addressed layer store: raw tar
// blobs keyed by the SHA-256 of their uncompressed bytes, lazily expanded
// into an extracted/ directory on first use.
package layer

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/combust-labs/darker/pkg/derrors"
	"github.com/combust-labs/darker/pkg/paths"
)

const gzipMagic0, gzipMagic1 = 0x1f, 0x8b

// Store is the content-addressed layer store.
type Store struct {
	layout *paths.Layout
	logger hclog.Logger
}

// New returns a layer Store rooted at the given path layout.
func New(layout *paths.Layout, logger hclog.Logger) *Store {
	return &Store{layout: layout, logger: logger.Named("layer-store")}
}

// NormalizeDigest strips an optional "sha256:" prefix, returning the bare
// hex form used for on-disk lookups and equality.
func NormalizeDigest(digest string) string {
	return strings.TrimPrefix(digest, "sha256:")
}

// Exists reports whether a layer tar is present for digest.
func (s *Store) Exists(digest string) bool {
	digest = NormalizeDigest(digest)
	_, err := os.Stat(s.layout.LayerTar(digest))
	return err == nil
}

// StoreBlob writes r's contents as the layer tar for digest, decompressing
// it first if it is gzip-compressed (detected by magic bytes, not by
// content-type header).
func (s *Store) StoreBlob(digest string, r io.Reader) error {
	digest = NormalizeDigest(digest)
	dir := s.layout.LayerDir(digest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed creating layer directory")
	}

	br := newPeekReader(r)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return errors.Wrap(err, "failed peeking layer blob")
	}

	reader, decErr := maybeDecompress(br, magic)
	if decErr != nil {
		return decErr
	}

	tmp := filepath.Join(dir, "layer.tar.tmp")
	f, createErr := os.Create(tmp)
	if createErr != nil {
		return errors.Wrap(createErr, "failed creating temp layer tar")
	}
	if _, copyErr := io.Copy(f, reader); copyErr != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrap(copyErr, "failed writing layer tar")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "failed closing layer tar")
	}
	return os.Rename(tmp, s.layout.LayerTar(digest))
}

func maybeDecompress(r *peekReader, magic []byte) (io.Reader, error) {
	if len(magic) == 2 && magic[0] == gzipMagic0 && magic[1] == gzipMagic1 {
		return newGzipReader(r)
	}
	return r, nil
}

// CreateFromDir tars up dir's contents, computes the digest of the
// resulting tar, and persists it as a new layer. Returns the bare hex
// digest.
func (s *Store) CreateFromDir(dir string) (string, error) {
	tmpTar, err := os.CreateTemp(s.layout.TmpDir(), "layer-*.tar")
	if err != nil {
		return "", errors.Wrap(err, "failed creating temp tar file")
	}
	tmpPath := tmpTar.Name()
	defer os.Remove(tmpPath)

	tw := tar.NewWriter(tmpTar)
	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		hdr, hdrErr := tar.FileInfoHeader(info, "")
		if hdrErr != nil {
			return hdrErr
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			f, openErr := os.Open(path)
			if openErr != nil {
				return openErr
			}
			defer f.Close()
			if _, err := io.Copy(tw, f); err != nil {
				return err
			}
		}
		return nil
	})
	if walkErr != nil {
		tw.Close()
		tmpTar.Close()
		return "", errors.Wrap(walkErr, "failed building layer tar")
	}
	if err := tw.Close(); err != nil {
		tmpTar.Close()
		return "", errors.Wrap(err, "failed finalizing layer tar")
	}
	if _, err := tmpTar.Seek(0, io.SeekStart); err != nil {
		tmpTar.Close()
		return "", errors.Wrap(err, "failed rewinding temp tar")
	}

	digest, digestErr := computeDigest(tmpTar)
	tmpTar.Close()
	if digestErr != nil {
		return "", digestErr
	}

	destDir := s.layout.LayerDir(digest)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", errors.Wrap(err, "failed creating layer directory")
	}
	if err := copyFile(tmpPath, s.layout.LayerTar(digest)); err != nil {
		return "", errors.Wrap(err, "failed persisting layer tar")
	}
	return digest, nil
}

// ComputeDigest returns the "sha256:<hex>" digest of the file at path.
func ComputeDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "failed opening file for digest")
	}
	defer f.Close()
	hex, err := computeDigest(f)
	if err != nil {
		return "", err
	}
	return "sha256:" + hex, nil
}

func computeDigest(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", errors.Wrap(err, "failed computing digest")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Extract idempotently expands the layer tar into extracted/, returning
// its path. Whiteout entries are skipped; per-entry failures are demoted
// to debug logs and extraction continues; ownership and xattrs are never
// applied.
func (s *Store) Extract(digest string) (string, error) {
	digest = NormalizeDigest(digest)
	extractedDir := s.layout.LayerExtracted(digest)
	if info, err := os.Stat(extractedDir); err == nil && info.IsDir() {
		return extractedDir, nil
	}

	tarPath := s.layout.LayerTar(digest)
	f, err := os.Open(tarPath)
	if err != nil {
		return "", &derrors.LayerError{Digest: digest, Message: "failed opening layer tar", Cause: err}
	}
	defer f.Close()

	tmpDir := extractedDir + ".tmp"
	os.RemoveAll(tmpDir)
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return "", &derrors.LayerError{Digest: digest, Message: "failed creating extraction dir", Cause: err}
	}

	tr := tar.NewReader(f)
	for {
		hdr, nextErr := tr.Next()
		if nextErr == io.EOF {
			break
		}
		if nextErr != nil {
			s.logger.Debug("layer extraction: bad tar entry, stopping", "digest", digest, "reason", nextErr)
			break
		}
		if strings.Contains(filepath.Base(hdr.Name), ".wh.") {
			continue
		}
		if err := extractEntry(tmpDir, hdr, tr); err != nil {
			s.logger.Debug("layer extraction: entry failed, continuing", "digest", digest, "entry", hdr.Name, "reason", err)
			continue
		}
	}

	if err := os.Rename(tmpDir, extractedDir); err != nil {
		return "", &derrors.LayerError{Digest: digest, Message: "failed finalizing extraction", Cause: err}
	}
	return extractedDir, nil
}

func extractEntry(destDir string, hdr *tar.Header, r io.Reader) error {
	target := filepath.Join(destDir, filepath.Clean("/"+hdr.Name))
	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, 0755)
	case tar.TypeSymlink:
		os.MkdirAll(filepath.Dir(target), 0755)
		os.Remove(target)
		return os.Symlink(hdr.Linkname, target)
	case tar.TypeLink:
		os.MkdirAll(filepath.Dir(target), 0755)
		linkTarget := filepath.Join(destDir, filepath.Clean("/"+hdr.Linkname))
		return os.Link(linkTarget, target)
	case tar.TypeReg, tar.TypeRegA:
		os.MkdirAll(filepath.Dir(target), 0755)
		out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, r)
		return err
	default:
		// Character/block devices, fifos etc.: not meaningfully
		// representable without root; skip, matching the source's
		// "continue past individual entry errors" policy.
		return nil
	}
}

// Remove deletes the layer directory for digest.
func (s *Store) Remove(digest string) error {
	digest = NormalizeDigest(digest)
	return os.RemoveAll(s.layout.LayerDir(digest))
}

// List enumerates the bare hex digests of all stored layers.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.layout.LayersDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed listing layers directory")
	}
	result := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			result = append(result, e.Name())
		}
	}
	return result, nil
}

// TotalSize returns the sum, in bytes, of every stored layer tar.
func (s *Store) TotalSize() (int64, error) {
	digests, err := s.List()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, digest := range digests {
		info, statErr := os.Stat(s.layout.LayerTar(digest))
		if statErr != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// Size returns the size in bytes of the stored tar for digest.
func (s *Store) Size(digest string) (int64, error) {
	digest = NormalizeDigest(digest)
	info, err := os.Stat(s.layout.LayerTar(digest))
	if err != nil {
		return 0, errors.Wrap(err, "failed stating layer tar")
	}
	return info.Size(), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
