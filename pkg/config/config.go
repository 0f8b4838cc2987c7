/*
Package config locates the external tools that the rest of the toolkit
shells out to. Locations can be overridden with a TOML file; anything
left blank falls back to the bare binary name, to be found on PATH.
*/
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds the locations of the external binaries.
type Config struct {

	// Path to the mash binary.
	Mash string `toml:"mash"`

	// Directory containing the BLAST+ binaries (blastn, makeblastdb,
	// ...). Empty means PATH.
	BlastDir string `toml:"blast"`

	// Path to the Rscript binary used for MANOVA.
	Rscript string `toml:"rscript"`
}

// Default returns a Config that resolves every tool from PATH.
func Default() *Config {
	return &Config{
		Mash:    "mash",
		Rscript: "Rscript",
	}
}

// Load reads a TOML config file. An empty path returns Default. Fields
// missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	conf := Default()

	if path == "" {
		return conf, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(b, conf); err != nil {
		return nil, err
	}

	if conf.Mash == "" {
		conf.Mash = "mash"
	}
	if conf.Rscript == "" {
		conf.Rscript = "Rscript"
	}

	return conf, nil
}

// BlastTool returns the path to a named BLAST+ binary, honouring
// BlastDir when set.
func (c *Config) BlastTool(name string) string {
	if c.BlastDir == "" {
		return name
	}
	return filepath.Join(c.BlastDir, name)
}
