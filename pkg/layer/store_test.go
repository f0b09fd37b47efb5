package layer

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/combust-labs/darker/pkg/paths"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	tmp := t.TempDir()
	layout := paths.New(tmp)
	require.NoError(t, os.MkdirAll(layout.LayersDir(), 0755))
	require.NoError(t, os.MkdirAll(layout.TmpDir(), 0755))
	return New(layout, hclog.NewNullLogger()), tmp
}

func buildTar(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func TestStoreBlobAndExtract(t *testing.T) {
	store, _ := newTestStore(t)

	raw := buildTar(t, map[string]string{"hello.txt": "hi there"})
	digest, err := computeDigest(bytes.NewReader(raw))
	require.NoError(t, err)

	require.NoError(t, store.StoreBlob(digest, bytes.NewReader(raw)))
	require.True(t, store.Exists(digest))

	extractedDir, err := store.Extract(digest)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(extractedDir, "hello.txt"))
	require.NoError(t, err)
	require.Equal(t, "hi there", string(content))
}

func TestStoreBlobDecompressesGzip(t *testing.T) {
	store, _ := newTestStore(t)

	raw := buildTar(t, map[string]string{"a.txt": "a"})
	var gzbuf bytes.Buffer
	gw := gzip.NewWriter(&gzbuf)
	_, err := gw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	digest, err := computeDigest(bytes.NewReader(raw))
	require.NoError(t, err)

	require.NoError(t, store.StoreBlob(digest, bytes.NewReader(gzbuf.Bytes())))

	stored, err := os.ReadFile(store.layout.LayerTar(digest))
	require.NoError(t, err)
	require.Equal(t, raw, stored)
}

func TestExtractSkipsWhiteouts(t *testing.T) {
	store, _ := newTestStore(t)

	raw := buildTar(t, map[string]string{
		"keep.txt":    "keep",
		".wh.gone.txt": "",
	})
	digest, err := computeDigest(bytes.NewReader(raw))
	require.NoError(t, err)
	require.NoError(t, store.StoreBlob(digest, bytes.NewReader(raw)))

	extractedDir, err := store.Extract(digest)
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(extractedDir, ".wh.gone.txt"))
	require.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(extractedDir, "keep.txt"))
	require.NoError(t, statErr)
}

func TestExtractIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)

	raw := buildTar(t, map[string]string{"f.txt": "x"})
	digest, err := computeDigest(bytes.NewReader(raw))
	require.NoError(t, err)
	require.NoError(t, store.StoreBlob(digest, bytes.NewReader(raw)))

	first, err := store.Extract(digest)
	require.NoError(t, err)
	second, err := store.Extract(digest)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestCreateFromDirRoundTrip(t *testing.T) {
	store, tmp := newTestStore(t)

	srcDir := filepath.Join(tmp, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "file.txt"), []byte("payload"), 0644))

	digest, err := store.CreateFromDir(srcDir)
	require.NoError(t, err)
	require.True(t, store.Exists(digest))

	extractedDir, err := store.Extract(digest)
	require.NoError(t, err)
	content, err := os.ReadFile(filepath.Join(extractedDir, "file.txt"))
	require.NoError(t, err)
	require.Equal(t, "payload", string(content))
}
