package configs

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// DataRootConfig contains the darker data-root directory settings: the
// parent of containers/, images/, layers/, and volumes/.
type DataRootConfig struct {
	flagBase
	ValidatingConfig

	DataRoot string
}

// NewDataRootConfig returns a new data-root configuration.
func NewDataRootConfig() *DataRootConfig {
	return &DataRootConfig{}
}

// FlagSet returns an instance of the flag set for the configuration.
func (c *DataRootConfig) FlagSet() *pflag.FlagSet {
	if c.initFlagSet() {
		home, _ := os.UserHomeDir()
		c.flagSet.StringVar(&c.DataRoot, "data-root", home+"/.darker", "darker data-root directory")
	}
	return c.flagSet
}

// Validate validates the correctness of the configuration.
func (c *DataRootConfig) Validate() error {
	if c.DataRoot == "" || c.DataRoot == "/" {
		return fmt.Errorf("--data-root cannot be empty or /")
	}
	return nil
}
