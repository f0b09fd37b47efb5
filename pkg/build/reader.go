package build

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/builder/dockerignore"
	"github.com/moby/buildkit/frontend/dockerfile/parser"
	git "github.com/go-git/go-git/v5"
	"github.com/pkg/errors"
)

// ReadResult is a parsed container-file plus any .dockerignore exclude
// patterns found alongside it.
type ReadResult struct {
	Instructions    []Instruction
	ExcludePatterns []string
}

// Read resolves input as a container-file source: a local file path, a
// literal container-file string, a plain http(s) URL, or a
// git+http(s)/git+ssh/ssh/git:// URL of the form
// "git+https://host/org/repo.git:/path/to/Dockerfile[#ref]", matching
// the teacher's build-context reader.
func Read(input, tempDir string) (*ReadResult, error) {
	switch {
	case strings.HasPrefix(input, "git+http://"),
		strings.HasPrefix(input, "git+https://"),
		strings.HasPrefix(input, "git+ssh://"),
		strings.HasPrefix(input, "git://"),
		strings.HasPrefix(input, "ssh://"):
		return readFromGit(input, tempDir)
	case strings.HasPrefix(input, "http://"), strings.HasPrefix(input, "https://"):
		return readFromHTTP(input)
	}

	stat, statErr := os.Stat(input)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			instructions, err := ReadBytes([]byte(input))
			if err != nil {
				return nil, err
			}
			return &ReadResult{Instructions: instructions}, nil
		}
		return nil, errors.Wrap(statErr, "failed stating container-file input")
	}
	if stat.IsDir() {
		return nil, errors.Errorf("%s is a directory, expected a file", input)
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return nil, errors.Wrap(err, "failed reading container-file")
	}
	excludes, err := readExcludes(filepath.Dir(input))
	if err != nil {
		return nil, err
	}
	instructions, err := ReadBytes(data)
	if err != nil {
		return nil, err
	}
	return &ReadResult{Instructions: instructions, ExcludePatterns: excludes}, nil
}

func readFromHTTP(input string) (*ReadResult, error) {
	resp, err := http.Get(input)
	if err != nil {
		return nil, errors.Wrap(err, "failed fetching remote container-file")
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed reading remote container-file body")
	}
	instructions, err := ReadBytes(data)
	if err != nil {
		return nil, err
	}
	return &ReadResult{Instructions: instructions}, nil
}

func readFromGit(input, tempDir string) (*ReadResult, error) {
	u, err := parseGitSourceURL(input)
	if err != nil {
		return nil, err
	}

	dest := filepath.Join(tempDir, "sources")
	repo, err := git.PlainClone(dest, false, &git.CloneOptions{URL: u.repoURL})
	if err != nil {
		return nil, errors.Wrap(err, "failed cloning build-context repository")
	}
	if u.ref != "" {
		if err := checkoutRef(repo, u.ref); err != nil {
			return nil, err
		}
	}

	filePath := filepath.Join(dest, u.pathInRepo)
	stat, statErr := os.Stat(filePath)
	if statErr != nil {
		return nil, errors.Wrap(statErr, "failed stating container-file in cloned repository")
	}
	if stat.IsDir() {
		return nil, errors.Errorf("%s is a directory, expected a file", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed reading cloned container-file")
	}
	excludes, err := readExcludes(filepath.Dir(filePath))
	if err != nil {
		return nil, err
	}
	instructions, err := ReadBytes(data)
	if err != nil {
		return nil, err
	}
	return &ReadResult{Instructions: instructions, ExcludePatterns: excludes}, nil
}

type gitSource struct {
	repoURL    string
	pathInRepo string
	ref        string
}

func parseGitSourceURL(input string) (*gitSource, error) {
	withoutScheme := input
	ref := ""
	if idx := strings.LastIndex(input, "#"); idx != -1 {
		ref = input[idx+1:]
		withoutScheme = input[:idx]
	}

	colonParts := strings.SplitN(withoutScheme, ":", 2)
	// Re-split carefully: the scheme itself contains a colon
	// (git+https://...), so find the LAST colon that introduces the
	// in-repo path, which always starts with '/'.
	lastColon := strings.LastIndex(withoutScheme, ":/")
	if lastColon == -1 || len(colonParts) < 2 {
		return nil, errors.Errorf("invalid git build-context URL: %s, expected .../repo.git:/path/to/file", input)
	}
	repoURL := withoutScheme[:lastColon]
	pathInRepo := withoutScheme[lastColon+1:]

	repoURL = strings.TrimPrefix(repoURL, "git+")

	return &gitSource{repoURL: repoURL, pathInRepo: pathInRepo, ref: ref}, nil
}

func checkoutRef(repo *git.Repository, ref string) error {
	remotes, err := repo.Remotes()
	if err != nil || len(remotes) == 0 {
		return errors.Wrap(err, "failed listing remotes")
	}
	refs, err := remotes[0].List(&git.ListOptions{})
	if err != nil {
		return errors.Wrap(err, "failed listing remote refs")
	}
	for _, r := range refs {
		if r.Hash().String() == ref || strings.HasSuffix(r.Name().String(), "/"+ref) {
			worktree, wtErr := repo.Worktree()
			if wtErr != nil {
				return errors.Wrap(wtErr, "failed fetching worktree")
			}
			return worktree.Checkout(&git.CheckoutOptions{Hash: r.Hash()})
		}
	}
	return errors.Errorf("ref %s not found", ref)
}

func readExcludes(dir string) ([]string, error) {
	path := filepath.Join(dir, ".dockerignore")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed opening .dockerignore")
	}
	defer f.Close()
	patterns, err := dockerignore.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(err, "failed parsing .dockerignore")
	}
	return patterns, nil
}

// ReadBytes parses container-file content into an Instruction slice
// using the Dockerfile parser, recognising FROM, RUN, COPY, ADD, ENV,
// WORKDIR, CMD, ENTRYPOINT, EXPOSE, USER, LABEL, ARG, VOLUME
// case-insensitively; line continuations and comments are handled by
// the parser itself.
func ReadBytes(data []byte) ([]Instruction, error) {
	result, err := parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed parsing container-file")
	}

	var out []Instruction
	for _, child := range result.AST.Children {
		values := nodeValues(child)
		flags := parseFlags(child.Flags)

		switch child.Value {
		case "from":
			switch len(values) {
			case 1:
				out = append(out, From{BaseImage: values[0]})
			case 3:
				out = append(out, From{BaseImage: values[0], StageName: values[2]})
			default:
				return out, fmt.Errorf("invalid FROM at line %d", child.StartLine)
			}
		case "run":
			for _, v := range values {
				out = append(out, Run{Command: v})
			}
		case "copy":
			if len(values) != 2 {
				return out, fmt.Errorf("invalid COPY at line %d", child.StartLine)
			}
			out = append(out, Copy{Source: values[0], Target: values[1], Stage: flags["--from"]})
		case "add":
			if len(values) != 2 {
				return out, fmt.Errorf("invalid ADD at line %d", child.StartLine)
			}
			out = append(out, Add{Source: values[0], Target: values[1]})
		case "env":
			if len(values)%2 != 0 {
				return out, fmt.Errorf("invalid ENV at line %d", child.StartLine)
			}
			for i := 0; i < len(values); i += 2 {
				out = append(out, Env{Name: values[i], Value: values[i+1]})
			}
		case "workdir":
			if len(values) == 0 {
				return out, fmt.Errorf("invalid WORKDIR at line %d", child.StartLine)
			}
			out = append(out, Workdir{Value: values[0]})
		case "cmd":
			out = append(out, Cmd{Values: values})
		case "entrypoint":
			out = append(out, Entrypoint{Values: values})
		case "expose":
			for _, v := range values {
				out = append(out, Expose{RawValue: v})
			}
		case "user":
			if len(values) == 0 {
				return out, fmt.Errorf("invalid USER at line %d", child.StartLine)
			}
			out = append(out, User{Value: values[0]})
		case "label":
			if len(values)%2 != 0 {
				return out, fmt.Errorf("invalid LABEL at line %d", child.StartLine)
			}
			for i := 0; i < len(values); i += 2 {
				out = append(out, Label{Key: values[i], Value: values[i+1]})
			}
		case "arg":
			for _, v := range values {
				name, def, hasDefault := splitArg(v)
				out = append(out, Arg{Name: name, DefaultValue: def, HasDefault: hasDefault})
			}
		case "volume":
			out = append(out, Volume{Values: values})
		default:
			// healthcheck, onbuild, maintainer, shell, stopsignal:
			// recognised by the parser but outside this design's scope.
		}
	}
	return out, nil
}

func nodeValues(node *parser.Node) []string {
	var values []string
	for current := node.Next; current != nil; current = current.Next {
		values = append(values, current.Value)
	}
	return values
}

func parseFlags(flags []string) map[string]string {
	out := map[string]string{}
	for _, f := range flags {
		f = strings.TrimPrefix(f, "--")
		parts := strings.SplitN(f, "=", 2)
		if len(parts) == 2 {
			out["--"+parts[0]] = parts[1]
		}
	}
	return out
}

func splitArg(raw string) (name, def string, hasDefault bool) {
	parts := strings.SplitN(raw, "=", 2)
	if len(parts) == 2 {
		return parts[0], parts[1], true
	}
	return parts[0], "", false
}
