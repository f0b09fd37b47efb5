// Package supervisor launches container payload processes: foreground
// (parent waits, tees output, returns exit code) and detached (payload
// outlives the parent, PID recorded to a file), in either a rootless
// host-namespace mode or a root-only chroot mode.
package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/combust-labs/darker/pkg/derrors"
)

var searchDirs = []string{"bin", "usr/bin", "usr/local/bin", "sbin", "usr/sbin"}

const (
	defaultPath = "/usr/local/bin:/usr/bin:/bin:/usr/sbin:/sbin"
	defaultHome = "/root"
)

// ForegroundOptions configures a foreground spawn.
type ForegroundOptions struct {
	Command     []string
	Rootfs      string
	WorkingDir  string
	Env         []string // image config env + invocation env, last-writer-wins already applied by caller on top of defaults
	TTY         bool
	Interactive bool
	LogPath     string // optional
	Chroot      bool   // root-only chroot pre-exec
	Hostname    string
	Term        string
}

// BuildEnvironment assembles the final environment: defaults, then
// imageEnv, then invocationEnv, last writer wins per key.
func BuildEnvironment(hostname, term string, imageEnv, invocationEnv []string) []string {
	merged := map[string]string{
		"HOME":     defaultHome,
		"PATH":     defaultPath,
		"TERM":     termOrDefault(term),
		"HOSTNAME": hostname,
	}
	order := []string{"HOME", "PATH", "TERM", "HOSTNAME"}

	apply := func(pairs []string) {
		for _, kv := range pairs {
			k, v, ok := splitEnv(kv)
			if !ok {
				continue
			}
			if _, existed := merged[k]; !existed {
				order = append(order, k)
			}
			merged[k] = v
		}
	}
	apply(imageEnv)
	apply(invocationEnv)

	result := make([]string, 0, len(order))
	for _, k := range order {
		result = append(result, k+"="+merged[k])
	}
	return result
}

func termOrDefault(term string) string {
	if term != "" {
		return term
	}
	return "xterm"
}

func splitEnv(kv string) (string, string, bool) {
	idx := strings.Index(kv, "=")
	if idx < 0 {
		return "", "", false
	}
	return kv[:idx], kv[idx+1:], true
}

// ResolveRootlessPath rewrites cmd0 to a host-absolute path: if absolute,
// tries rootfs+cmd0 first, falling back to cmd0 literal; if relative,
// searches the standard in-rootfs bin directories.
func ResolveRootlessPath(cmd0, rootfs string) string {
	if filepath.IsAbs(cmd0) {
		candidate := filepath.Join(rootfs, cmd0)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		return cmd0
	}
	for _, dir := range searchDirs {
		candidate := filepath.Join(rootfs, dir, cmd0)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return cmd0
}

// ResolveChrootPath resolves cmd0 to a container-relative path for use
// inside a chroot. If cmd0 is already absolute it is used as-is; else
// the standard in-container bin directories are searched.
func ResolveChrootPath(cmd0, rootfs string) string {
	if strings.HasPrefix(cmd0, "/") {
		return cmd0
	}
	for _, dir := range searchDirs {
		if _, err := os.Stat(filepath.Join(rootfs, dir, cmd0)); err == nil {
			return "/" + dir + "/" + cmd0
		}
	}
	return "/" + cmd0
}

// SpawnForeground launches the payload, waits for it, and returns its
// exit code. If tty or interactive, the child inherits the parent's
// stdio; otherwise output is teed to the tool's own stdout/stderr and,
// if LogPath is set, stdout lines are appended to the log file.
func SpawnForeground(ctx context.Context, logger hclog.Logger, opts ForegroundOptions) (int, error) {
	if len(opts.Command) == 0 {
		return 1, &derrors.SpawnError{Message: "empty command"}
	}

	cmd, err := buildExecCmd(ctx, opts)
	if err != nil {
		return 1, err
	}

	if opts.TTY || opts.Interactive {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		runErr := cmd.Run()
		return exitCodeFromError(runErr)
	}

	cmd.Stdin = nil
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 1, &derrors.SpawnError{Message: "failed opening stdout pipe", Cause: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 1, &derrors.SpawnError{Message: "failed opening stderr pipe", Cause: err}
	}

	if err := cmd.Start(); err != nil {
		return 1, &derrors.SpawnError{Message: "failed starting process", Cause: err}
	}

	var logFile *os.File
	if opts.LogPath != "" {
		logFile, err = os.OpenFile(opts.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			logger.Warn("failed opening log file, continuing without it", "reason", err)
			logFile = nil
		}
	}
	if logFile != nil {
		defer logFile.Close()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go teeStream(&wg, stdout, os.Stdout, logFile)
	go teeStream(&wg, stderr, os.Stderr, nil)
	wg.Wait()

	runErr := cmd.Wait()
	return exitCodeFromError(runErr)
}

// teeStream copies lines from src to mirror and, if logFile is non-nil,
// appends each line (with trailing newline) to it too. This must be an
// independent goroutine per stream, not a single select loop, so a slow
// stream never starves the other.
func teeStream(wg *sync.WaitGroup, src io.Reader, mirror io.Writer, logFile *os.File) {
	defer wg.Done()
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		fmt.Fprintln(mirror, line)
		if logFile != nil {
			fmt.Fprintln(logFile, line)
		}
	}
}

func exitCodeFromError(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 1, &derrors.SpawnError{Message: "process wait failed", Cause: err}
}

func buildExecCmd(ctx context.Context, opts ForegroundOptions) (*exec.Cmd, error) {
	if opts.Chroot {
		if os.Geteuid() != 0 {
			return nil, &derrors.SpawnError{Message: "chroot mode requires root"}
		}
		payload := ResolveChrootPath(opts.Command[0], opts.Rootfs)
		workdir := opts.WorkingDir
		if _, err := os.Stat(filepath.Join(opts.Rootfs, workdir)); err != nil {
			workdir = "/"
		}
		escapedArgs := make([]string, 0, len(opts.Command)-1)
		for _, a := range opts.Command[1:] {
			escapedArgs = append(escapedArgs, ShellEscape(a))
		}
		inner := fmt.Sprintf("cd %s && exec %s %s", ShellEscape(workdir), ShellEscape(payload), strings.Join(escapedArgs, " "))
		cmd := exec.CommandContext(ctx, "chroot", opts.Rootfs, "/bin/sh", "-c", inner)
		cmd.Env = opts.Env
		return cmd, nil
	}

	payload := ResolveRootlessPath(opts.Command[0], opts.Rootfs)
	cmd := exec.CommandContext(ctx, payload, opts.Command[1:]...)
	cmd.Env = opts.Env

	workdir := filepath.Join(opts.Rootfs, opts.WorkingDir)
	if _, err := os.Stat(workdir); err == nil {
		cmd.Dir = workdir
	} else {
		cmd.Dir = opts.Rootfs
	}
	return cmd, nil
}

// DetachedOptions configures a detached spawn.
type DetachedOptions struct {
	Command    []string
	Rootfs     string
	WorkingDir string
	Env        []string // "KEY=VALUE" pairs, fully assembled by the caller
	LogPath    string
	PIDPath    string
}

// SpawnDetached launches the payload inside a shell so it survives the
// parent, using a single interpolated command string. Every interpolated
// field is passed through ShellEscape; this is the one place in the
// whole module where that is not optional.
func SpawnDetached(opts DetachedOptions) (int, error) {
	if len(opts.Command) == 0 {
		return 0, &derrors.SpawnError{Message: "empty command"}
	}

	payload := ResolveRootlessPath(opts.Command[0], opts.Rootfs)
	workdir := filepath.Join(opts.Rootfs, opts.WorkingDir)
	if _, err := os.Stat(workdir); err != nil {
		workdir = opts.Rootfs
	}

	var envExports strings.Builder
	for _, kv := range opts.Env {
		k, v, ok := splitEnv(kv)
		if !ok {
			continue
		}
		envExports.WriteString("export " + k + "=" + ShellEscape(v) + " && ")
	}

	escapedArgs := make([]string, 0, len(opts.Command)-1)
	for _, a := range opts.Command[1:] {
		escapedArgs = append(escapedArgs, ShellEscape(a))
	}

	shellCmd := fmt.Sprintf("cd %s && %s%s %s >> %s 2>&1 & echo $!",
		ShellEscape(workdir),
		envExports.String(),
		ShellEscape(payload),
		strings.Join(escapedArgs, " "),
		ShellEscape(opts.LogPath),
	)

	cmd := exec.Command("/bin/sh", "-c", shellCmd)
	out, err := cmd.Output()
	if err != nil {
		return 0, &derrors.SpawnError{Message: "failed launching detached process", Cause: err}
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, &derrors.SpawnError{Message: "failed parsing detached pid", Cause: err}
	}

	if opts.PIDPath != "" {
		if err := WritePID(opts.PIDPath, pid); err != nil {
			return pid, err
		}
	}
	return pid, nil
}

// WritePID persists pid to path.
func WritePID(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)), 0644)
}

// ReadPID reads a previously persisted PID.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// IsRunning probes whether pid is alive via signal 0, per the
// documented (racy but acceptable for single-shot CLI) approach.
func IsRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil
}

// Stop sends SIGTERM, waits up to timeout, then sends SIGKILL if the
// process is still alive. Never returns an error: per the design note,
// stop never fails on unresponsive children.
func Stop(pid int, timeout time.Duration) {
	process, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	process.Signal(syscall.SIGTERM)
	time.Sleep(timeout)
	if IsRunning(pid) {
		process.Signal(syscall.SIGKILL)
	}
}
