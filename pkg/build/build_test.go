package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/combust-labs/darker/pkg/image"
	"github.com/combust-labs/darker/pkg/layer"
	"github.com/combust-labs/darker/pkg/paths"
)

func TestReadBytesRecognisesCoreInstructions(t *testing.T) {
	src := `FROM scratch
ENV FOO=bar BAZ=qux
WORKDIR /srv
COPY . /srv/app
CMD ["/bin/echo", "hi"]
`
	instructions, err := ReadBytes([]byte(src))
	require.NoError(t, err)
	require.Len(t, instructions, 5)

	from, ok := instructions[0].(From)
	require.True(t, ok)
	assert.Equal(t, "scratch", from.BaseImage)

	env1, ok := instructions[1].(Env)
	require.True(t, ok)
	assert.Equal(t, "FOO", env1.Name)
	assert.Equal(t, "bar", env1.Value)

	env2, ok := instructions[2].(Env)
	require.True(t, ok)
	assert.Equal(t, "BAZ", env2.Name)

	wd, ok := instructions[3].(Workdir)
	require.True(t, ok)
	assert.Equal(t, "/srv", wd.Value)
}

func TestReadBytesFromWithStage(t *testing.T) {
	src := "FROM golang:1.21 as builder\n"
	instructions, err := ReadBytes([]byte(src))
	require.NoError(t, err)
	require.Len(t, instructions, 1)
	from := instructions[0].(From)
	assert.Equal(t, "golang:1.21", from.BaseImage)
	assert.Equal(t, "builder", from.StageName)
}

func TestReadResolvesLocalFileAndDockerignore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Containerfile"), []byte("FROM scratch\nCMD [\"/bin/true\"]\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".dockerignore"), []byte("*.log\n"), 0644))

	result, err := Read(filepath.Join(dir, "Containerfile"), t.TempDir())
	require.NoError(t, err)
	require.Len(t, result.Instructions, 2)
	assert.Equal(t, []string{"*.log"}, result.ExcludePatterns)
}

func TestReadFallsBackToLiteralString(t *testing.T) {
	result, err := Read("FROM scratch\nCMD [\"/bin/true\"]\n", t.TempDir())
	require.NoError(t, err)
	require.Len(t, result.Instructions, 2)
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	tmp := t.TempDir()
	layout := paths.New(tmp)
	require.NoError(t, layout.EnsureDirectories())
	layers := layer.New(layout, hclog.NewNullLogger())
	images := image.New(layout, layers, hclog.NewNullLogger())
	return New(layout, images, layers, nil, hclog.NewNullLogger())
}

func TestEvaluateScratchCmdOnly(t *testing.T) {
	pipeline := newTestPipeline(t)

	instructions, err := ReadBytes([]byte("FROM scratch\nCMD [\"/bin/echo\", \"hi\"]\n"))
	require.NoError(t, err)

	result, err := pipeline.Evaluate(Options{
		Instructions: instructions,
		Repository:   "scratch-echo",
		Tag:          "latest",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.ImageID)
	assert.Equal(t, []string{"/bin/echo", "hi"}, result.Config.Cmd)
	assert.Empty(t, result.Config.Env)

	meta, err := pipeline.images.LoadMetadata(result.ImageID)
	require.NoError(t, err)
	assert.Empty(t, meta.Layers)
	assert.Equal(t, "scratch-echo", meta.Repository)
}

func TestEvaluateCopyMaterializesLayer(t *testing.T) {
	pipeline := newTestPipeline(t)

	contextDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(contextDir, "app"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(contextDir, "app", "main"), []byte("#!/bin/sh\necho hi\n"), 0755))

	instructions, err := ReadBytes([]byte("FROM scratch\nCOPY app /srv/app\nCMD [\"/srv/app/main\"]\n"))
	require.NoError(t, err)

	result, err := pipeline.Evaluate(Options{
		Instructions: instructions,
		ContextDir:   contextDir,
		Repository:   "copy-test",
		Tag:          "latest",
	})
	require.NoError(t, err)

	meta, err := pipeline.images.LoadMetadata(result.ImageID)
	require.NoError(t, err)
	require.Len(t, meta.Layers, 1)

	extracted, err := pipeline.layers.Extract(meta.Layers[0])
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(extracted, "srv", "app", "main"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "echo hi")
}

func TestEvaluateEnvLastWriterWins(t *testing.T) {
	pipeline := newTestPipeline(t)
	instructions, err := ReadBytes([]byte("FROM scratch\nENV FOO=one\nENV FOO=two\nCMD [\"/bin/true\"]\n"))
	require.NoError(t, err)

	result, err := pipeline.Evaluate(Options{Instructions: instructions})
	require.NoError(t, err)
	assert.Equal(t, []string{"FOO=two"}, result.Config.Env)
}
