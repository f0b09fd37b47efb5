package image

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/combust-labs/darker/pkg/derrors"
	"github.com/combust-labs/darker/pkg/flock"
	"github.com/combust-labs/darker/pkg/layer"
	"github.com/combust-labs/darker/pkg/paths"
)

// RunConfig holds the command defaults carried by an image: the pieces a
// container inherits unless overridden at create/run time.
type RunConfig struct {
	Cmd          []string          `json:"cmd,omitempty"`
	Entrypoint   []string          `json:"entrypoint,omitempty"`
	Env          []string          `json:"env,omitempty"`
	WorkingDir   string            `json:"working_dir,omitempty"`
	User         string            `json:"user,omitempty"`
	ExposedPorts []string          `json:"exposed_ports,omitempty"`
	Labels       map[string]string `json:"labels,omitempty"`
}

// Metadata is the darker-specific sidecar persisted at metadata.json.
type Metadata struct {
	ID          string    `json:"id"`
	Repository  string    `json:"repository,omitempty"`
	Tag         string    `json:"tag,omitempty"`
	Digest      string    `json:"digest,omitempty"`
	Created     time.Time `json:"created"`
	Size        int64     `json:"size"`
	Layers      []string  `json:"layers"`
	Config      RunConfig `json:"config"`
}

// Index is the mutable images.json sidecar.
type Index struct {
	Tags      map[string]string `json:"tags"`
	ShortIDs  map[string]string `json:"short_ids"`
}

func newIndex() *Index {
	return &Index{Tags: map[string]string{}, ShortIDs: map[string]string{}}
}

// Store is the content-addressed image store.
type Store struct {
	layout *paths.Layout
	layers *layer.Store
	logger hclog.Logger
}

// New returns an image Store.
func New(layout *paths.Layout, layers *layer.Store, logger hclog.Logger) *Store {
	return &Store{layout: layout, layers: layers, logger: logger.Named("image-store")}
}

func (s *Store) loadIndex() (*Index, error) {
	data, err := os.ReadFile(s.layout.ImageIndex())
	if err != nil {
		if os.IsNotExist(err) {
			return newIndex(), nil
		}
		return nil, errors.Wrap(err, "failed reading image index")
	}
	idx := newIndex()
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, errors.Wrap(err, "failed parsing image index")
	}
	if idx.Tags == nil {
		idx.Tags = map[string]string{}
	}
	if idx.ShortIDs == nil {
		idx.ShortIDs = map[string]string{}
	}
	return idx, nil
}

func (s *Store) saveIndex(idx *Index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed serializing image index")
	}
	return os.WriteFile(s.layout.ImageIndex(), data, 0644)
}

// withIndexLock serializes read-modify-write access to images.json
// across processes via an flock on a sidecar .lock file, so two
// concurrent `darker` invocations don't race updating tag/short-id
// bindings.
func (s *Store) withIndexLock(fn func(*Index) error) error {
	lock := flock.New(s.layout.ImageIndex() + ".lock")
	if err := lock.Acquire(); err != nil {
		return errors.Wrap(err, "failed acquiring image index lock")
	}
	defer lock.Release()

	idx, err := s.loadIndex()
	if err != nil {
		return err
	}
	if err := fn(idx); err != nil {
		return err
	}
	return s.saveIndex(idx)
}

func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}

// Store persists a new image record and registers it in the indexes.
func (s *Store) Store(id, repository, tag, manifestDigest string, layers []string, size int64, cfg RunConfig) error {
	dir := s.layout.ImageDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed creating image directory")
	}

	meta := &Metadata{
		ID:         id,
		Repository: repository,
		Tag:        tag,
		Digest:     manifestDigest,
		Created:    time.Now().UTC(),
		Size:       size,
		Layers:     layers,
		Config:     cfg,
	}
	if err := s.saveMetadata(meta); err != nil {
		return err
	}

	return s.withIndexLock(func(idx *Index) error {
		idx.ShortIDs[shortID(id)] = id
		if repository != "" && tag != "" {
			idx.Tags[repository+":"+tag] = id
		}
		return nil
	})
}

func (s *Store) saveMetadata(meta *Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed serializing image metadata")
	}
	return os.WriteFile(s.layout.ImageMetadata(meta.ID), data, 0644)
}

// LoadMetadata reads an image's metadata.json.
func (s *Store) LoadMetadata(id string) (*Metadata, error) {
	data, err := os.ReadFile(s.layout.ImageMetadata(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, derrors.ErrImageNotFound
		}
		return nil, errors.Wrap(err, "failed reading image metadata")
	}
	meta := &Metadata{}
	if err := json.Unmarshal(data, meta); err != nil {
		return nil, errors.Wrap(err, "failed parsing image metadata")
	}
	return meta, nil
}

// SaveConfig persists config.json for an image (the raw OCI config blob,
// distinct from the darker-specific RunConfig embedded in Metadata).
func (s *Store) SaveConfig(id string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed serializing image config")
	}
	return os.WriteFile(s.layout.ImageConfig(id), data, 0644)
}

// LoadConfig reads config.json for an image.
func (s *Store) LoadConfig(id string) (*Config, error) {
	data, err := os.ReadFile(s.layout.ImageConfig(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, derrors.ErrImageNotFound
		}
		return nil, errors.Wrap(err, "failed reading image config")
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed parsing image config")
	}
	return cfg, nil
}

// SaveManifest persists the raw manifest.json as fetched from the
// registry, verbatim.
func (s *Store) SaveManifest(id string, raw []byte) error {
	return os.WriteFile(s.layout.ImageManifest(id), raw, 0644)
}

// Tag rebinds repository:tag to point at id, overwriting any prior
// binding.
func (s *Store) Tag(id, repository, tag string) error {
	meta, err := s.LoadMetadata(id)
	if err != nil {
		return err
	}
	meta.Repository = repository
	meta.Tag = tag
	if err := s.saveMetadata(meta); err != nil {
		return err
	}
	return s.withIndexLock(func(idx *Index) error {
		idx.Tags[repository+":"+tag] = id
		return nil
	})
}

// Find resolves a name-or-id to an image ID using the documented
// resolution order: exact "repo:tag" → implicit ":latest" → short-ID →
// linear full-ID scan → stripped-ID directory existence.
func (s *Store) Find(nameOrID string) (string, error) {
	idx, err := s.loadIndex()
	if err != nil {
		return "", err
	}

	if id, ok := idx.Tags[nameOrID]; ok {
		return id, nil
	}
	if !strings.Contains(nameOrID, ":") {
		if id, ok := idx.Tags[nameOrID+":latest"]; ok {
			return id, nil
		}
	}
	if id, ok := idx.ShortIDs[shortID(nameOrID)]; ok {
		return id, nil
	}
	for _, id := range idx.ShortIDs {
		if id == nameOrID {
			return id, nil
		}
	}
	stripped := strings.TrimPrefix(nameOrID, "sha256:")
	if _, err := os.Stat(s.layout.ImageDir(stripped)); err == nil {
		return stripped, nil
	}
	return "", derrors.ErrImageNotFound
}

// FindImage resolves a full reference string (e.g. "alpine:3.18") to an
// image ID, special-casing "scratch".
func (s *Store) FindImage(ref string) (string, error) {
	if IsScratch(ref) {
		return "scratch", nil
	}
	return s.Find(ref)
}

// List enumerates every image's metadata, skipping entries that fail to
// parse.
func (s *Store) List() ([]*Metadata, error) {
	entries, err := os.ReadDir(s.layout.ImagesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed listing images directory")
	}
	result := make([]*Metadata, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := s.LoadMetadata(e.Name())
		if err != nil {
			s.logger.Debug("skipping unreadable image metadata", "id", e.Name(), "reason", err)
			continue
		}
		result = append(result, meta)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Created.Before(result[j].Created) })
	return result, nil
}

// Remove deletes the image directory and its index entries. If
// pruneLayers is set, any layer digest no longer referenced by a
// remaining image is also deleted (a real mark-and-sweep refcount, a
// deliberate strengthening of the source's acknowledged no-op prune).
func (s *Store) Remove(id string, pruneLayers bool) error {
	meta, err := s.LoadMetadata(id)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(s.layout.ImageDir(id)); err != nil {
		return errors.Wrap(err, "failed removing image directory")
	}

	lockErr := s.withIndexLock(func(idx *Index) error {
		delete(idx.ShortIDs, shortID(id))
		for key, val := range idx.Tags {
			if val == id {
				delete(idx.Tags, key)
			}
		}
		return nil
	})
	if lockErr != nil {
		return lockErr
	}

	if !pruneLayers {
		return nil
	}
	return s.pruneUnreferenced(meta.Layers)
}

// pruneUnreferenced deletes any of candidateLayers that no remaining
// image references.
func (s *Store) pruneUnreferenced(candidateLayers []string) error {
	remaining, err := s.List()
	if err != nil {
		return err
	}
	referenced := map[string]bool{}
	for _, meta := range remaining {
		for _, l := range meta.Layers {
			referenced[l] = true
		}
	}
	for _, digest := range candidateLayers {
		if !referenced[digest] {
			if err := s.layers.Remove(digest); err != nil {
				s.logger.Debug("failed pruning layer", "digest", digest, "reason", err)
			}
		}
	}
	return nil
}

// ImageDir exposes the directory path for an image, for callers
// (e.g. the rootfs builder) that need the raw path.
func (s *Store) ImageDir(id string) string {
	return s.layout.ImageDir(id)
}
