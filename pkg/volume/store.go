// Package volume implements the named-directory volume store: the same
// find/store/load/remove/list shape as the image and container stores,
// with a single "local" driver.
package volume

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/combust-labs/darker/pkg/derrors"
	"github.com/combust-labs/darker/pkg/paths"
)

// Metadata is a volume's _metadata.json sidecar.
type Metadata struct {
	Name       string            `json:"name"`
	Driver     string            `json:"driver"`
	Mountpoint string            `json:"mountpoint"`
	Created    time.Time         `json:"created"`
	Labels     map[string]string `json:"labels,omitempty"`
}

// Store manages named volume directories.
type Store struct {
	layout *paths.Layout
	logger hclog.Logger
}

// New returns a volume Store.
func New(layout *paths.Layout, logger hclog.Logger) *Store {
	return &Store{layout: layout, logger: logger.Named("volume-store")}
}

// Create makes a new named volume with the "local" driver.
func (s *Store) Create(name string, labels map[string]string) (*Metadata, error) {
	dir := s.layout.Volume(name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed creating volume directory")
	}
	meta := &Metadata{
		Name:       name,
		Driver:     "local",
		Mountpoint: dir,
		Created:    time.Now().UTC(),
		Labels:     labels,
	}
	if err := s.save(meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func (s *Store) save(meta *Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed serializing volume metadata")
	}
	return os.WriteFile(s.layout.VolumeMetadata(meta.Name), data, 0644)
}

// Find looks up a volume's metadata by name.
func (s *Store) Find(name string) (*Metadata, error) {
	data, err := os.ReadFile(s.layout.VolumeMetadata(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, derrors.ErrVolumeNotFound
		}
		return nil, errors.Wrap(err, "failed reading volume metadata")
	}
	meta := &Metadata{}
	if err := json.Unmarshal(data, meta); err != nil {
		return nil, errors.Wrap(err, "failed parsing volume metadata")
	}
	return meta, nil
}

// List enumerates every volume's metadata.
func (s *Store) List() ([]*Metadata, error) {
	entries, err := os.ReadDir(s.layout.VolumesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed listing volumes directory")
	}
	result := make([]*Metadata, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := s.Find(e.Name())
		if err != nil {
			s.logger.Debug("skipping unreadable volume metadata", "name", e.Name(), "reason", err)
			continue
		}
		result = append(result, meta)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Remove deletes a volume's directory.
func (s *Store) Remove(name string) error {
	if _, err := s.Find(name); err != nil {
		return err
	}
	return os.RemoveAll(s.layout.Volume(name))
}
