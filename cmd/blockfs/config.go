package main

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const envVarPrefix = "BLOCKFS"

type Config struct {
	Image             string `envconfig:"BLOCKFS_IMAGE"               yaml:"image"`
	TotalBlocks       uint32 `envconfig:"BLOCKFS_TOTAL_BLOCKS"        yaml:"totalBlocks"`
	InodeBitmapBlocks uint32 `envconfig:"BLOCKFS_INODE_BITMAP_BLOCKS" yaml:"inodeBitmapBlocks"`
}

const (
	defaultTotalBlocks       = 8192
	defaultInodeBitmapBlocks = 1
)

// LoadConfig reads the optional yaml config file (the --config flag or
// $BLOCKFS_CONFIG_FILE), then lets environment variables override it.
func LoadConfig(configFile string) (*Config, error) {
	if configFile == "" {
		configFile = os.Getenv(envVarPrefix + "_CONFIG_FILE")
	}

	var c Config
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf(
				"reading config file `%s`: %w",
				configFile,
				err,
			)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf(
				"parsing config file `%s`: %w",
				configFile,
				err,
			)
		}
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if c.TotalBlocks == 0 {
		c.TotalBlocks = defaultTotalBlocks
	}
	if c.InodeBitmapBlocks == 0 {
		c.InodeBitmapBlocks = defaultInodeBitmapBlocks
	}
	return &c, nil
}
