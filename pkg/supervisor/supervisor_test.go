package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func TestShellEscape(t *testing.T) {
	cases := map[string]string{
		"":               "''",
		"hello":          "'hello'",
		"it's":           `'it'\''s'`,
		"$HOME; rm -rf /": `'$HOME; rm -rf /'`,
	}
	for in, want := range cases {
		require.Equal(t, want, ShellEscape(in), in)
	}
}

func TestBuildEnvironmentDefaultsAndOverrides(t *testing.T) {
	env := BuildEnvironment("myhost", "", []string{"PATH=/custom/path", "FOO=bar"}, []string{"FOO=baz"})

	asMap := map[string]string{}
	for _, kv := range env {
		k, v, _ := splitEnv(kv)
		asMap[k] = v
	}

	require.Equal(t, defaultHome, asMap["HOME"])
	require.Equal(t, "/custom/path", asMap["PATH"])
	require.Equal(t, "xterm", asMap["TERM"])
	require.Equal(t, "myhost", asMap["HOSTNAME"])
	require.Equal(t, "baz", asMap["FOO"]) // invocation env wins over image env
}

func TestResolveRootlessPath(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "usr/bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "usr/bin", "mytool"), []byte("#!/bin/sh\n"), 0755))

	resolved := ResolveRootlessPath("mytool", tmp)
	require.Equal(t, filepath.Join(tmp, "usr/bin", "mytool"), resolved)

	resolved = ResolveRootlessPath("/does/not/exist", tmp)
	require.Equal(t, "/does/not/exist", resolved)
}

func TestSpawnForegroundCapturesOutput(t *testing.T) {
	tmp := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	code, err := SpawnForeground(ctx, hclog.NewNullLogger(), ForegroundOptions{
		Command:    []string{"/bin/echo", "hello-world"},
		Rootfs:     tmp,
		WorkingDir: "/",
		Env:        BuildEnvironment("h", "", nil, nil),
	})
	require.NoError(t, err)
	require.Equal(t, 0, code)
}

func TestSpawnDetachedRecordsShellEscapedPayload(t *testing.T) {
	tmp := t.TempDir()
	logPath := filepath.Join(tmp, "container.log")
	pidPath := filepath.Join(tmp, "container.pid")

	// A single argv element containing shell metacharacters. Because
	// SpawnDetached shell-escapes every interpolated field, this must
	// reach /bin/echo as one literal argument and never be reinterpreted
	// by the outer launcher shell.
	pid, err := SpawnDetached(DetachedOptions{
		Command:    []string{"/bin/echo", "$HOME; rm -rf /"},
		Rootfs:     tmp,
		WorkingDir: "/",
		Env:        BuildEnvironment("h", "", nil, nil),
		LogPath:    logPath,
		PIDPath:    pidPath,
	})
	require.NoError(t, err)
	require.Greater(t, pid, 0)

	// Give the background shell a moment to run and flush its log.
	deadline := time.Now().Add(3 * time.Second)
	var content []byte
	for time.Now().Before(deadline) {
		content, _ = os.ReadFile(logPath)
		if len(content) > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	require.True(t, strings.Contains(string(content), "$HOME; rm -rf /"))

	recordedPID, err := ReadPID(pidPath)
	require.NoError(t, err)
	require.Equal(t, pid, recordedPID)
}
