package registry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/combust-labs/darker/pkg/image"
	"github.com/combust-labs/darker/pkg/layer"
	"github.com/combust-labs/darker/pkg/paths"
)

func TestSelectPlatformPrefersHostArchLinux(t *testing.T) {
	entries := []image.ManifestDescriptor{
		{Digest: "sha256:other", Platform: &image.Platform{OS: "windows", Architecture: hostArch()}},
		{Digest: "sha256:match", Platform: &image.Platform{OS: "linux", Architecture: hostArch()}},
	}
	selected := selectPlatform(entries)
	require.Equal(t, "sha256:match", selected.Digest)
}

func TestSelectPlatformFallsBackToFirst(t *testing.T) {
	entries := []image.ManifestDescriptor{
		{Digest: "sha256:first", Platform: &image.Platform{OS: "weird", Architecture: "weirdarch"}},
		{Digest: "sha256:second", Platform: &image.Platform{OS: "weird2", Architecture: "weirdarch2"}},
	}
	selected := selectPlatform(entries)
	require.Equal(t, "sha256:first", selected.Digest)
}

func TestPullFetchesManifestConfigAndLayers(t *testing.T) {
	layerBytes := []byte("fake-tar-bytes")
	configBytes, err := json.Marshal(image.Config{Architecture: "amd64", OS: "linux"})
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/library/alpine/manifests/3.18", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", image.MediaTypeOCIManifestV1)
		manifest := image.Manifest{
			SchemaVersion: 2,
			Config:        image.Descriptor{Digest: "sha256:configdigest"},
			Layers:        []image.Descriptor{{Digest: "sha256:layerdigest"}},
		}
		json.NewEncoder(w).Encode(manifest)
	})
	mux.HandleFunc("/v2/library/alpine/blobs/sha256:configdigest", func(w http.ResponseWriter, r *http.Request) {
		w.Write(configBytes)
	})
	mux.HandleFunc("/v2/library/alpine/blobs/sha256:layerdigest", func(w http.ResponseWriter, r *http.Request) {
		w.Write(layerBytes)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	// server.Listener.Addr() is "127.0.0.1:PORT"; rewrite to "localhost:PORT"
	// so Reference.RegistryURL() picks the plain-http branch.
	addr := server.Listener.Addr().String()
	port := addr[len("127.0.0.1:"):]
	ref := &image.Reference{Registry: "localhost:" + port, Repository: "library/alpine", Tag: "3.18"}

	tmp := t.TempDir()
	layout := paths.New(tmp)
	require.NoError(t, layout.EnsureDirectories())
	layers := layer.New(layout, hclog.NewNullLogger())

	client := New(hclog.NewNullLogger())

	result, err := client.Pull(ref, layers, nil)
	require.NoError(t, err)
	require.Equal(t, "configdigest", result.ImageID)
	require.True(t, layers.Exists("sha256:layerdigest"))
}
