package configs

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/subosito/gotenv"
)

// RunCommandConfig is the run command configuration.
type RunCommandConfig struct {
	flagBase

	AutoRemove  bool
	EnvFiles    []string
	EnvVars     map[string]string
	Image       string
	Interactive bool
	Name        string
	TTY         bool
	WorkingDir  string
	Hostname    string
}

// NewRunCommandConfig returns new command configuration.
func NewRunCommandConfig() *RunCommandConfig {
	return &RunCommandConfig{}
}

// FlagSet returns an instance of the flag set for the configuration.
func (c *RunCommandConfig) FlagSet() *pflag.FlagSet {
	if c.initFlagSet() {
		c.flagSet.BoolVar(&c.AutoRemove, "rm", false, "Automatically remove the container when it exits")
		c.flagSet.StringArrayVar(&c.EnvFiles, "env-file", []string{}, "Full path to an environment file to apply to the container, multiple OK")
		c.flagSet.StringToStringVar(&c.EnvVars, "env", map[string]string{}, "Additional environment variables to apply to the container, multiple OK")
		c.flagSet.StringVarP(&c.Name, "name", "", "", "Assign a name to the container")
		c.flagSet.BoolVarP(&c.Interactive, "interactive", "i", false, "Keep STDIN open")
		c.flagSet.BoolVarP(&c.TTY, "tty", "t", false, "Allocate a pseudo-TTY")
		c.flagSet.StringVarP(&c.WorkingDir, "workdir", "w", "", "Working directory inside the container")
		c.flagSet.StringVar(&c.Hostname, "hostname", "", "Container host name")
	}
	return c.flagSet
}

// MergedEnvironment reads every --env-file in order, then applies
// --env entries on top, last writer wins. A leading "export " on a key
// read from a file is stripped.
func (c *RunCommandConfig) MergedEnvironment() (map[string]string, error) {
	merged := map[string]string{}
	for _, path := range c.EnvFiles {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed opening env file %s", path)
		}
		parsed, err := gotenv.StrictParse(f)
		f.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "failed parsing env file %s", path)
		}
		for k, v := range parsed {
			merged[strings.TrimPrefix(k, "export ")] = v
		}
	}
	for k, v := range c.EnvVars {
		merged[k] = v
	}
	return merged, nil
}

// ExecCommandConfig is the exec command configuration.
type ExecCommandConfig struct {
	flagBase

	EnvVars     map[string]string
	Interactive bool
	TTY         bool
	User        string
	WorkingDir  string
}

// NewExecCommandConfig returns new command configuration.
func NewExecCommandConfig() *ExecCommandConfig {
	return &ExecCommandConfig{}
}

// FlagSet returns an instance of the flag set for the configuration.
func (c *ExecCommandConfig) FlagSet() *pflag.FlagSet {
	if c.initFlagSet() {
		c.flagSet.StringToStringVar(&c.EnvVars, "env", map[string]string{}, "Additional environment variables, multiple OK")
		c.flagSet.BoolVarP(&c.Interactive, "interactive", "i", false, "Keep STDIN open")
		c.flagSet.BoolVarP(&c.TTY, "tty", "t", false, "Allocate a pseudo-TTY")
		c.flagSet.StringVarP(&c.User, "user", "u", "", "Username or UID to run as")
		c.flagSet.StringVarP(&c.WorkingDir, "workdir", "w", "", "Working directory inside the container")
	}
	return c.flagSet
}

// BuildCommandConfig is the build command configuration.
type BuildCommandConfig struct {
	flagBase

	BuildArgs  map[string]string
	File       string
	Tag        string
	NoCache    bool
}

// NewBuildCommandConfig returns new command configuration.
func NewBuildCommandConfig() *BuildCommandConfig {
	return &BuildCommandConfig{}
}

// FlagSet returns an instance of the flag set for the configuration.
func (c *BuildCommandConfig) FlagSet() *pflag.FlagSet {
	if c.initFlagSet() {
		c.flagSet.StringToStringVar(&c.BuildArgs, "build-arg", map[string]string{}, "Build arguments, multiple OK (accepted but not applied to the build)")
		c.flagSet.StringVarP(&c.File, "file", "f", "Dockerfile", "Local or remote (http/https/git) path to the container-file")
		c.flagSet.StringVarP(&c.Tag, "tag", "t", "", "Name and optionally tag (name:tag) of the resulting image")
		c.flagSet.BoolVar(&c.NoCache, "no-cache", false, "Unused placeholder: every build runs uncached")
	}
	return c.flagSet
}
