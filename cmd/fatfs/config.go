package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const (
	envVarPrefix = "FATFS"
	appName      = "fatfs"
)

type Config struct {
	Image  string `envconfig:"IMAGE"  yaml:"image"`
	Debug  uint64 `envconfig:"DEBUG"  yaml:"debug"`
	Format string `envconfig:"FORMAT" yaml:"format"`
}

// LoadConfig reads the optional YAML config file named by FATFS_CONFIG_FILE
// (default ~/.config/fatfs.yaml) and then applies FATFS_* environment
// variables on top of it.
func LoadConfig() (*Config, error) {
	configFile := os.Getenv(envVarPrefix + "_CONFIG_FILE")
	if configFile == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			configFile = filepath.Join(home, ".config", appName+".yaml")
		}
	}

	c := Config{Format: "text"}
	if configFile != "" {
		data, err := ioutil.ReadFile(configFile)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err == nil {
			if err := yaml.UnmarshalStrict(data, &c); err != nil {
				return nil, fmt.Errorf("unmarshaling config file: %w", err)
			}
		}
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	return &c, c.Validate()
}

func (c *Config) Validate() error {
	switch c.Format {
	case "text", "yaml":
		return nil
	default:
		return fmt.Errorf("invalid format `%s`: want text or yaml", c.Format)
	}
}
