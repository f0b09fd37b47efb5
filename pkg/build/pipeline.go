package build

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/combust-labs/darker/pkg/image"
	"github.com/combust-labs/darker/pkg/layer"
	"github.com/combust-labs/darker/pkg/paths"
	"github.com/combust-labs/darker/pkg/registry"
)

// Options configures a single Evaluate call.
type Options struct {
	Instructions []Instruction
	ContextDir   string // build context root, for COPY/ADD source resolution
	Repository   string
	Tag          string
	Progress     registry.ProgressFunc
}

// Result is the outcome of a build: the new image ID and the resolved
// run configuration baked into it.
type Result struct {
	ImageID string
	Config  image.RunConfig
}

// evalState accumulates the effect of each instruction as the pipeline
// walks the instruction list, single-stage, top to bottom.
type evalState struct {
	baseImageID string
	layers      []string
	env         []string
	workdir     string
	user        string
	cmd         []string
	entrypoint  []string
	labels      map[string]string
	exposed     []string
	volumes     []string
}

// Pipeline evaluates a parsed instruction list against the image and
// layer stores, producing a new image. RUN steps are recorded into the
// image's history but never executed; FROM pulls (or reuses) the base
// image; COPY/ADD each materialize exactly one new layer from the
// build context.
type Pipeline struct {
	layout   *paths.Layout
	images   *image.Store
	layers   *layer.Store
	registry *registry.Client
	logger   hclog.Logger
}

// New returns a build Pipeline.
func New(layout *paths.Layout, images *image.Store, layers *layer.Store, reg *registry.Client, logger hclog.Logger) *Pipeline {
	return &Pipeline{layout: layout, images: images, layers: layers, registry: reg, logger: logger.Named("build")}
}

// Evaluate runs opts.Instructions start to finish and stores the
// resulting image.
func (p *Pipeline) Evaluate(opts Options) (*Result, error) {
	state := &evalState{workdir: "/", labels: map[string]string{}}
	var history []image.History

	for _, raw := range opts.Instructions {
		switch inst := raw.(type) {
		case From:
			if err := p.applyFrom(state, inst, opts.Progress); err != nil {
				return nil, err
			}
			history = append(history, image.History{CreatedBy: "FROM " + inst.BaseImage})
		case Run:
			history = append(history, image.History{CreatedBy: "RUN " + inst.Command, EmptyLayer: true})
		case Copy:
			if err := p.applyCopy(state, opts.ContextDir, inst.Source, inst.Target); err != nil {
				return nil, err
			}
			history = append(history, image.History{CreatedBy: "COPY " + inst.Source + " " + inst.Target})
		case Add:
			if err := p.applyCopy(state, opts.ContextDir, inst.Source, inst.Target); err != nil {
				return nil, err
			}
			history = append(history, image.History{CreatedBy: "ADD " + inst.Source + " " + inst.Target})
		case Env:
			state.env = setEnv(state.env, inst.Name, inst.Value)
		case Workdir:
			state.workdir = resolveWorkdir(state.workdir, inst.Value)
		case Cmd:
			state.cmd = inst.Values
		case Entrypoint:
			state.entrypoint = inst.Values
		case User:
			state.user = inst.Value
		case Label:
			state.labels[inst.Key] = inst.Value
		case Expose:
			state.exposed = append(state.exposed, inst.RawValue)
		case Volume:
			state.volumes = append(state.volumes, inst.Values...)
		case Arg:
			// build-time only, never baked into the resulting image env.
		}
	}

	runConfig := image.RunConfig{
		Cmd:          state.cmd,
		Entrypoint:   state.entrypoint,
		Env:          state.env,
		WorkingDir:   state.workdir,
		User:         state.user,
		ExposedPorts: state.exposed,
		Labels:       state.labels,
	}

	id, err := p.computeImageID(state.layers, runConfig, history)
	if err != nil {
		return nil, err
	}

	cfg := &image.Config{
		Architecture: hostArch(),
		OS:           "linux",
		RootFS:       image.RootFS{Type: "layers", DiffIDs: state.layers},
		History:      history,
		Config: &image.ConfigSpec{
			Cmd:          runConfig.Cmd,
			Entrypoint:   runConfig.Entrypoint,
			Env:          runConfig.Env,
			WorkingDir:   runConfig.WorkingDir,
			User:         runConfig.User,
			Labels:       runConfig.Labels,
			ExposedPorts: exposedPortSet(runConfig.ExposedPorts),
			Volumes:      volumeSet(state.volumes),
		},
	}
	if err := p.images.SaveConfig(id, cfg); err != nil {
		return nil, err
	}

	var size int64
	for _, digest := range state.layers {
		sz, err := p.layers.Size(digest)
		if err != nil {
			return nil, err
		}
		size += sz
	}

	if err := p.images.Store(id, opts.Repository, opts.Tag, "", state.layers, size, runConfig); err != nil {
		return nil, err
	}

	return &Result{ImageID: id, Config: runConfig}, nil
}

func (p *Pipeline) applyFrom(state *evalState, inst From, progress registry.ProgressFunc) error {
	if image.IsScratch(inst.BaseImage) {
		state.baseImageID = "scratch"
		return nil
	}

	id, err := p.images.FindImage(inst.BaseImage)
	if err == nil {
		return p.inheritBase(state, id)
	}

	if p.registry == nil {
		return errors.Wrapf(err, "base image %s not found locally and no registry client configured", inst.BaseImage)
	}
	ref, parseErr := image.ParseReference(inst.BaseImage)
	if parseErr != nil {
		return parseErr
	}
	result, pullErr := p.registry.Pull(ref, p.layers, progress)
	if pullErr != nil {
		return errors.Wrapf(pullErr, "failed pulling base image %s", inst.BaseImage)
	}

	var layerDigests []string
	for _, l := range result.Manifest.Layers {
		layerDigests = append(layerDigests, l.Digest)
	}
	var size int64
	for _, d := range layerDigests {
		sz, _ := p.layers.Size(d)
		size += sz
	}
	runCfg := image.RunConfig{}
	if result.Config.Config != nil {
		runCfg = image.RunConfig{
			Cmd:        result.Config.Config.Cmd,
			Entrypoint: result.Config.Config.Entrypoint,
			Env:        result.Config.Config.Env,
			WorkingDir: result.Config.Config.WorkingDir,
			User:       result.Config.Config.User,
		}
	}
	if err := p.images.SaveConfig(result.ImageID, result.Config); err != nil {
		return err
	}
	if err := p.images.Store(result.ImageID, ref.Repository, ref.Tag, result.ManifestDigest, layerDigests, size, runCfg); err != nil {
		return err
	}
	return p.inheritBase(state, result.ImageID)
}

func (p *Pipeline) inheritBase(state *evalState, baseID string) error {
	state.baseImageID = baseID
	if image.IsScratch(baseID) {
		return nil
	}
	meta, err := p.images.LoadMetadata(baseID)
	if err != nil {
		return errors.Wrapf(err, "failed loading base image %s metadata", baseID)
	}
	state.layers = append([]string{}, meta.Layers...)
	state.env = append([]string{}, meta.Config.Env...)
	if meta.Config.WorkingDir != "" {
		state.workdir = meta.Config.WorkingDir
	}
	state.user = meta.Config.User
	state.cmd = meta.Config.Cmd
	state.entrypoint = meta.Config.Entrypoint
	for k, v := range meta.Config.Labels {
		state.labels[k] = v
	}
	return nil
}

// applyCopy stages the resolved context source into a temp directory
// matching its target path, then hands the whole directory to the
// layer store as one new content-addressed layer.
func (p *Pipeline) applyCopy(state *evalState, contextDir, source, target string) error {
	srcPath := filepath.Join(contextDir, source)
	info, err := os.Stat(srcPath)
	if err != nil {
		return errors.Wrapf(err, "failed resolving build-context source %s", source)
	}

	stageDir, err := os.MkdirTemp(p.layout.TmpDir(), "copy-layer-")
	if err != nil {
		return errors.Wrap(err, "failed creating staging directory")
	}
	defer os.RemoveAll(stageDir)

	dest := filepath.Join(stageDir, strings.TrimPrefix(target, "/"))
	if info.IsDir() {
		if err := copyDirInto(srcPath, dest); err != nil {
			return err
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return err
		}
		if err := copyFileInto(srcPath, dest); err != nil {
			return err
		}
	}

	digest, err := p.layers.CreateFromDir(stageDir)
	if err != nil {
		return errors.Wrap(err, "failed materializing layer from build context")
	}
	state.layers = append(state.layers, digest)
	return nil
}

func (p *Pipeline) computeImageID(layers []string, cfg image.RunConfig, history []image.History) (string, error) {
	payload := struct {
		Layers  []string          `json:"layers"`
		Config  image.RunConfig   `json:"config"`
		History []image.History   `json:"history"`
	}{Layers: layers, Config: cfg, History: history}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "failed serializing image identity payload")
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i, e := range env {
		if strings.HasPrefix(e, prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}

func resolveWorkdir(current, next string) string {
	if strings.HasPrefix(next, "/") {
		return next
	}
	return filepath.Join(current, next)
}

func exposedPortSet(ports []string) map[string]struct{} {
	if len(ports) == 0 {
		return nil
	}
	set := map[string]struct{}{}
	for _, p := range ports {
		set[p] = struct{}{}
	}
	return set
}

func volumeSet(volumes []string) map[string]struct{} {
	if len(volumes) == 0 {
		return nil
	}
	set := map[string]struct{}{}
	for _, v := range volumes {
		set[v] = struct{}{}
	}
	return set
}

func copyDirInto(src, dst string) error {
	return filepath.Walk(src, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(src, path)
		if relErr != nil {
			return relErr
		}
		target := filepath.Join(dst, rel)
		if fi.IsDir() {
			return os.MkdirAll(target, fi.Mode())
		}
		return copyFileInto(path, target)
	})
}

func copyFileInto(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
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
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dst, info.Mode())
}

func hostArch() string {
	return runtime.GOARCH
}
