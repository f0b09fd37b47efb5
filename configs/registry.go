package configs

import (
	"os"

	"github.com/spf13/pflag"
	"github.com/subosito/gotenv"
)

// RegistryConfig holds the registry-pull settings: a --platform value
// (parsed but not applied; pulls always select the index entry for the
// host architecture) and an optional .env file carrying DOCKER_HUB_USERNAME /
// DOCKER_HUB_PASSWORD for authenticated pulls (read but not yet wired
// into the anonymous/bearer-token pull path; see the registry client's
// documented auth gap).
type RegistryConfig struct {
	flagBase

	AuthEnvFile string
	Platform    string
}

// NewRegistryConfig returns a new registry configuration.
func NewRegistryConfig() *RegistryConfig {
	return &RegistryConfig{}
}

// FlagSet returns an instance of the flag set for the configuration.
func (c *RegistryConfig) FlagSet() *pflag.FlagSet {
	if c.initFlagSet() {
		c.flagSet.StringVar(&c.AuthEnvFile, "auth-env-file", "", "Path to a .env file with registry credentials")
		c.flagSet.StringVar(&c.Platform, "platform", "", "Platform, e.g. linux/arm64 (accepted but not applied; pulls select by host architecture)")
	}
	return c.flagSet
}

// LoadAuth reads AuthEnvFile, if set, returning its key/value pairs.
func (c *RegistryConfig) LoadAuth() (map[string]string, error) {
	if c.AuthEnvFile == "" {
		return nil, nil
	}
	f, err := os.Open(c.AuthEnvFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return gotenv.StrictParse(f)
}
