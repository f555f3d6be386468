package internal

import (
	"fmt"

	"github.com/castorhq/castor/internal/api"
	"github.com/castorhq/castor/internal/database"
	"github.com/castorhq/castor/internal/ingest"
	"github.com/castorhq/castor/internal/probe"
	"github.com/castorhq/castor/internal/storage"
	"github.com/castorhq/castor/internal/thumbnail"
	"github.com/ilyakaznacheev/cleanenv"
)

// CastorConfig is the struct used to contain the various user config
// supplied by file, or manually inside the code.
type CastorConfig struct {
	Ingest     ingest.Config           `yaml:"ingest"`
	Probe      probe.Config            `yaml:"probe"`
	Thumbnail  thumbnail.Config        `yaml:"thumbnail"`
	Storage    storage.Config          `yaml:"storage"`
	Database   database.DatabaseConfig `yaml:"database" env-required:"true"`
	RestConfig api.RestConfig          `yaml:"api"`
}

// LoadFromFile reads a YAML configuration file into a CastorConfig,
// applying environment variable overrides and defaults.
func (config *CastorConfig) LoadFromFile(configPath string) error {
	if err := cleanenv.ReadConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	return nil
}
