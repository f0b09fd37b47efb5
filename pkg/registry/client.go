// Package registry implements a hand-rolled OCI/Docker Distribution v2
// HTTP client: auth token exchange, manifest/index fetch with platform
// selection, and blob fetch with transparent gzip decompression. This is
// deliberately not built on an existing registry SDK — the point of the
// exercise is the hand-rolled protocol client.
//
// Known gap: only anonymous access and the Docker Hub bearer-token flow
// are supported. A WWW-Authenticate realm-challenge parser for other
// registries requiring bearer tokens is not implemented.
package registry

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/combust-labs/darker/pkg/derrors"
	"github.com/combust-labs/darker/pkg/image"
	"github.com/combust-labs/darker/pkg/layer"
)

const userAgent = "darker/0.1.0"

// Client is a Distribution-API v2 HTTP client.
type Client struct {
	http   *http.Client
	logger hclog.Logger
}

// New returns a registry Client.
func New(logger hclog.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: logger.Named("registry"),
	}
}

// ProgressFunc is invoked once per layer as it is pulled; index is
// zero-based.
type ProgressFunc func(index, total int, digest string)

// PullResult carries what a successful pull produced.
type PullResult struct {
	ImageID        string
	Manifest       *image.Manifest
	Config         *image.Config
	ManifestDigest string
	ManifestRaw    []byte
	ConfigRaw      []byte
}

// Pull resolves ref, fetches its manifest (selecting a platform if it is
// a multi-arch index), fetches the config and every layer not already
// present in layers, and returns the result. Callers persist the image
// record; Pull itself only deals with the wire protocol and the layer
// store.
func (c *Client) Pull(ref *image.Reference, layers *layer.Store, progress ProgressFunc) (*PullResult, error) {
	token, authErr := c.getAuthToken(ref)
	if authErr != nil {
		return nil, errors.Wrap(authErr, "failed obtaining registry auth token")
	}

	manifest, manifestRaw, manifestDigest, err := c.fetchManifest(ref, token)
	if err != nil {
		return nil, err
	}

	configRaw, err := c.fetchBlob(ref, manifest.Config.Digest, token)
	if err != nil {
		return nil, errors.Wrap(err, "failed fetching image config")
	}
	cfg := &image.Config{}
	if err := json.Unmarshal(configRaw, cfg); err != nil {
		return nil, errors.Wrap(err, "failed parsing image config")
	}

	total := len(manifest.Layers)
	for i, l := range manifest.Layers {
		if progress != nil {
			progress(i, total, l.Digest)
		}
		if layers.Exists(l.Digest) {
			continue
		}
		if err := c.fetchLayer(ref, l.Digest, token, layers); err != nil {
			return nil, errors.Wrapf(err, "failed fetching layer %s", l.Digest)
		}
	}

	imageID := layer.NormalizeDigest(manifest.Config.Digest)

	return &PullResult{
		ImageID:        imageID,
		Manifest:       manifest,
		Config:         cfg,
		ManifestDigest: manifestDigest,
		ManifestRaw:    manifestRaw,
		ConfigRaw:      configRaw,
	}, nil
}

// Push always fails: registry push is unimplemented, per spec.
func (c *Client) Push(ref *image.Reference) error {
	return derrors.ErrUnsupported
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (c *Client) getAuthToken(ref *image.Reference) (string, error) {
	if ref.Registry != "docker.io" {
		return "", nil
	}
	url := fmt.Sprintf("https://auth.docker.io/token?service=registry.docker.io&scope=repository:%s:pull", ref.Repository)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed building auth request")
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "failed sending auth request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &derrors.RegistryError{StatusCode: resp.StatusCode, Message: "auth token request failed"}
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", errors.Wrap(err, "failed parsing auth token response")
	}
	return tr.Token, nil
}

func (c *Client) authedRequest(method, url, token, accept string) (*http.Request, error) {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) fetchManifest(ref *image.Reference, token string) (*image.Manifest, []byte, string, error) {
	tagOrDigest := ref.Tag
	if ref.Digest != "" {
		tagOrDigest = ref.Digest
	}
	url := fmt.Sprintf("%s/v2/%s/manifests/%s", ref.RegistryURL(), ref.Repository, tagOrDigest)
	req, err := c.authedRequest(http.MethodGet, url, token, image.ManifestAccept)
	if err != nil {
		return nil, nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, "", errors.Wrap(err, "failed fetching manifest")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, "", &derrors.RegistryError{StatusCode: resp.StatusCode, Message: "manifest fetch failed"}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, "", errors.Wrap(err, "failed reading manifest body")
	}

	contentType := resp.Header.Get("Content-Type")
	if isIndexMediaType(contentType) {
		var idx image.Index
		if err := json.Unmarshal(body, &idx); err != nil {
			return nil, nil, "", errors.Wrap(err, "failed parsing manifest index")
		}
		selected := selectPlatform(idx.Manifests)
		return c.fetchManifestByDigest(ref, selected.Digest, token)
	}

	var manifest image.Manifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return nil, nil, "", errors.Wrap(err, "failed parsing manifest")
	}
	digest := resp.Header.Get("Docker-Content-Digest")
	return &manifest, body, digest, nil
}

func (c *Client) fetchManifestByDigest(ref *image.Reference, digest, token string) (*image.Manifest, []byte, string, error) {
	url := fmt.Sprintf("%s/v2/%s/manifests/%s", ref.RegistryURL(), ref.Repository, digest)
	req, err := c.authedRequest(http.MethodGet, url, token, image.SingleManifestAccept)
	if err != nil {
		return nil, nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, "", errors.Wrap(err, "failed fetching selected manifest")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, "", &derrors.RegistryError{StatusCode: resp.StatusCode, Message: "selected manifest fetch failed"}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, "", errors.Wrap(err, "failed reading selected manifest body")
	}
	var manifest image.Manifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return nil, nil, "", errors.Wrap(err, "failed parsing selected manifest")
	}
	return &manifest, body, digest, nil
}

func isIndexMediaType(contentType string) bool {
	return strings.Contains(contentType, "manifest.list") || strings.Contains(contentType, "image.index")
}

// selectPlatform implements the documented selection order: prefer
// os∈{linux,darwin} && arch==host → any arch==host → first entry.
func selectPlatform(entries []image.ManifestDescriptor) image.ManifestDescriptor {
	hostArch := hostArch()

	for _, e := range entries {
		if e.Platform == nil {
			continue
		}
		if (e.Platform.OS == "linux" || e.Platform.OS == "darwin") && e.Platform.Architecture == hostArch {
			return e
		}
	}
	for _, e := range entries {
		if e.Platform != nil && e.Platform.Architecture == hostArch {
			return e
		}
	}
	return entries[0]
}

func hostArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "amd64"
	case "arm64":
		return "arm64"
	case "arm":
		return "arm"
	case "386":
		return "386"
	default:
		return runtime.GOARCH
	}
}

func (c *Client) fetchBlob(ref *image.Reference, digest, token string) ([]byte, error) {
	url := fmt.Sprintf("%s/v2/%s/blobs/%s", ref.RegistryURL(), ref.Repository, digest)
	req, err := c.authedRequest(http.MethodGet, url, token, "")
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed fetching blob")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &derrors.RegistryError{StatusCode: resp.StatusCode, Message: "blob fetch failed"}
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) fetchLayer(ref *image.Reference, digest, token string, layers *layer.Store) error {
	url := fmt.Sprintf("%s/v2/%s/blobs/%s", ref.RegistryURL(), ref.Repository, digest)
	req, err := c.authedRequest(http.MethodGet, url, token, "")
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed fetching layer blob")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &derrors.RegistryError{StatusCode: resp.StatusCode, Message: "layer fetch failed"}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed reading layer body")
	}

	var reader io.Reader = bytes.NewReader(body)
	if len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b {
		gz, gzErr := gzip.NewReader(bytes.NewReader(body))
		if gzErr != nil {
			return errors.Wrap(gzErr, "failed opening gzip layer")
		}
		defer gz.Close()
		reader = gz
	}

	return layers.StoreBlob(digest, reader)
}

// EnsureTmpDir creates and returns the tmp directory under root, a
// scratch location for staging downloads. Nothing in this module calls
// it: Pull reads layer bodies into memory.
func EnsureTmpDir(root string) (string, error) {
	dir := filepath.Join(root, "tmp")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "failed creating tmp directory")
	}
	return dir, nil
}
