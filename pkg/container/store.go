package container

import (
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/combust-labs/darker/pkg/derrors"
	"github.com/combust-labs/darker/pkg/flock"
	"github.com/combust-labs/darker/pkg/paths"
)

// Index is the mutable containers.json sidecar.
type Index struct {
	Names    map[string]string `json:"names"`
	ShortIDs map[string]string `json:"short_ids"`
}

func newIndex() *Index {
	return &Index{Names: map[string]string{}, ShortIDs: map[string]string{}}
}

// Store is the container config/state store.
type Store struct {
	layout *paths.Layout
	logger hclog.Logger
}

// New returns a container Store.
func New(layout *paths.Layout, logger hclog.Logger) *Store {
	return &Store{layout: layout, logger: logger.Named("container-store")}
}

// NewID generates a fresh random 128-bit hex container ID.
func NewID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", errors.Wrap(err, "failed generating container id")
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}

func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}

func (s *Store) loadIndex() (*Index, error) {
	data, err := os.ReadFile(s.layout.ContainerIndex())
	if err != nil {
		if os.IsNotExist(err) {
			return newIndex(), nil
		}
		return nil, errors.Wrap(err, "failed reading container index")
	}
	idx := newIndex()
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, errors.Wrap(err, "failed parsing container index")
	}
	if idx.Names == nil {
		idx.Names = map[string]string{}
	}
	if idx.ShortIDs == nil {
		idx.ShortIDs = map[string]string{}
	}
	return idx, nil
}

func (s *Store) saveIndex(idx *Index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed serializing container index")
	}
	return os.WriteFile(s.layout.ContainerIndex(), data, 0644)
}

// withIndexLock serializes read-modify-write access to containers.json
// across processes via an flock on a sidecar .lock file.
func (s *Store) withIndexLock(fn func(*Index) error) error {
	lock := flock.New(s.layout.ContainerIndex() + ".lock")
	if err := lock.Acquire(); err != nil {
		return errors.Wrap(err, "failed acquiring container index lock")
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

// Exists reports whether a container config exists for id.
func (s *Store) Exists(id string) bool {
	_, err := os.Stat(s.layout.ContainerConfig(id))
	return err == nil
}

// Create persists a new container's config and initial state, and
// registers it in the name/short-id indexes. Fails with
// derrors.ErrContainerExists if the name is already taken.
func (s *Store) Create(cfg Config) error {
	return s.withIndexLock(func(idx *Index) error {
		if _, taken := idx.Names[cfg.Name]; taken {
			return derrors.ErrContainerExists
		}

		if err := os.MkdirAll(s.layout.ContainerDir(cfg.ID), 0755); err != nil {
			return errors.Wrap(err, "failed creating container directory")
		}
		if err := s.saveConfig(&cfg); err != nil {
			return err
		}
		initial := DefaultState()
		if err := s.SaveState(cfg.ID, &initial); err != nil {
			return err
		}

		idx.Names[cfg.Name] = cfg.ID
		idx.ShortIDs[shortID(cfg.ID)] = cfg.ID
		return nil
	})
}

func (s *Store) saveConfig(cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed serializing container config")
	}
	return os.WriteFile(s.layout.ContainerConfig(cfg.ID), data, 0644)
}

// LoadConfig reads a container's config.json.
func (s *Store) LoadConfig(id string) (*Config, error) {
	data, err := os.ReadFile(s.layout.ContainerConfig(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, derrors.ErrContainerNotFound
		}
		return nil, errors.Wrap(err, "failed reading container config")
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed parsing container config")
	}
	return cfg, nil
}

// LoadState reads a container's state.json.
func (s *Store) LoadState(id string) (*State, error) {
	data, err := os.ReadFile(s.layout.ContainerState(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, derrors.ErrContainerNotFound
		}
		return nil, errors.Wrap(err, "failed reading container state")
	}
	state := &State{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, errors.Wrap(err, "failed parsing container state")
	}
	return state, nil
}

// SaveState persists state.json durably: write to a temp file, fsync,
// then atomically rename over the target, so a transition is never
// observed half-written.
func (s *Store) SaveState(id string, state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed serializing container state")
	}
	target := s.layout.ContainerState(id)
	tmp := target + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "failed opening temp state file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.Wrap(err, "failed writing temp state file")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrap(err, "failed syncing temp state file")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "failed closing temp state file")
	}
	return os.Rename(tmp, target)
}

// Find resolves a name-or-id to a container ID: name exact → short-ID →
// full-ID among short-ID values → direct directory existence.
func (s *Store) Find(nameOrID string) (string, error) {
	idx, err := s.loadIndex()
	if err != nil {
		return "", err
	}
	if id, ok := idx.Names[nameOrID]; ok {
		return id, nil
	}
	if id, ok := idx.ShortIDs[shortID(nameOrID)]; ok {
		return id, nil
	}
	for _, id := range idx.ShortIDs {
		if id == nameOrID {
			return id, nil
		}
	}
	if s.Exists(nameOrID) {
		return nameOrID, nil
	}
	return "", derrors.ErrContainerNotFound
}

// List enumerates every container's config, skipping entries that fail
// to parse.
func (s *Store) List() ([]*Config, error) {
	entries, err := os.ReadDir(s.layout.ContainersDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed listing containers directory")
	}
	result := make([]*Config, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		cfg, err := s.LoadConfig(e.Name())
		if err != nil {
			s.logger.Debug("skipping unreadable container config", "id", e.Name(), "reason", err)
			continue
		}
		result = append(result, cfg)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Created.Before(result[j].Created) })
	return result, nil
}

// Remove deletes a container's directory and its index entries
// unconditionally. Callers must check the container's lifecycle state
// themselves; the store has no notion of running/stopped.
func (s *Store) Remove(id string) error {
	cfg, err := s.LoadConfig(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(s.layout.ContainerDir(id)); err != nil {
		return errors.Wrap(err, "failed removing container directory")
	}
	return s.withIndexLock(func(idx *Index) error {
		delete(idx.Names, cfg.Name)
		delete(idx.ShortIDs, shortID(id))
		return nil
	})
}
