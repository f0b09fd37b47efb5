package image

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReferenceChain(t *testing.T) {
	inputs := []string{"alpine", "alpine:3.18", "myuser/myapp:v1.0", "ghcr.io/owner/repo:tag", "localhost:5000/x"}
	wantRegistry := []string{"docker.io", "docker.io", "docker.io", "ghcr.io", "localhost:5000"}
	wantRepo := []string{"library/alpine", "library/alpine", "myuser/myapp", "owner/repo", "x"}
	wantTag := []string{"latest", "3.18", "v1.0", "tag", "latest"}

	for i, in := range inputs {
		ref, err := ParseReference(in)
		require.NoError(t, err, in)
		assert.Equal(t, wantRegistry[i], ref.Registry, in)
		assert.Equal(t, wantRepo[i], ref.Repository, in)
		assert.Equal(t, wantTag[i], ref.Tag, in)
	}
}

func TestParseReferenceRoundTrip(t *testing.T) {
	for _, in := range []string{"alpine", "alpine:3.18", "myuser/myapp:v1.0", "ghcr.io/owner/repo:tag", "localhost:5000/x"} {
		ref, err := ParseReference(in)
		require.NoError(t, err)
		again, err := ParseReference(ref.FullName())
		require.NoError(t, err)
		assert.Equal(t, ref, again, in)
	}
}

func TestParseReferenceRegistryPort(t *testing.T) {
	ref, err := ParseReference("localhost:5000/foo")
	require.NoError(t, err)
	assert.Equal(t, "localhost:5000", ref.Registry)
	assert.Equal(t, "foo", ref.Repository)
	assert.Equal(t, "latest", ref.Tag)
}

func TestParseReferenceEmpty(t *testing.T) {
	_, err := ParseReference("")
	assert.Error(t, err)
}
