// Package config provides configuration loading and management for trendkrig.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"trendkrig/internal/models"
	"trendkrig/pkg/kriging"
	"trendkrig/pkg/variogram"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Grid describes the output surface and its prior trend
	Grid struct {
		// NI and NJ are the number of grid nodes along x and y
		NI int `yaml:"ni"`
		NJ int `yaml:"nj"`

		// XMin and YMin locate the first grid node
		XMin float64 `yaml:"xmin"`
		YMin float64 `yaml:"ymin"`

		// DX and DY are the node spacings
		DX float64 `yaml:"dx"`
		DY float64 `yaml:"dy"`

		// Trend is the constant prior value of every node
		Trend float64 `yaml:"trend"`
	} `yaml:"grid"`

	// Variogram parameters
	Variogram struct {
		// Type is one of constant, exponential, spherical, gaussian, genexp,
		// matern32, matern52 or matern72
		Type string `yaml:"type"`

		// RangeX and RangeY are the correlation ranges in grid coordinates
		RangeX float64 `yaml:"rangeX"`
		RangeY float64 `yaml:"rangeY"`

		// Azimuth rotates the main axes, in degrees
		Azimuth float64 `yaml:"azimuth"`

		// StdDev is the standard deviation of the residual field
		StdDev float64 `yaml:"stdDev"`

		// Power is the exponent of the genexp model
		Power float64 `yaml:"power"`
	} `yaml:"variogram"`

	// Kriging parameters
	Kriging struct {
		// P is the nominal halo size in units of the covariance range
		P float64 `yaml:"p"`

		// KrigAll solves the whole grid as one block
		KrigAll bool `yaml:"krigAll"`

		// GetResiduals writes the kriged residual instead of the full surface
		GetResiduals bool `yaml:"getResiduals"`

		// UseIndexGrid snaps observations to grid nodes before kriging
		UseIndexGrid bool `yaml:"useIndexGrid"`

		// NumCores specifies how many blocks are solved concurrently
		NumCores int `yaml:"numCores"`

		// Folds is the number of cross-validation folds, 0 disables validation
		Folds int `yaml:"folds"`
	} `yaml:"kriging"`

	// Output parameters
	Output struct {
		// Verbose reports block progress on the terminal
		Verbose bool `yaml:"verbose"`

		// LogLevel is a logrus level name
		LogLevel string `yaml:"logLevel"`

		// Image is an optional PNG or JPEG rendering of the result
		Image string `yaml:"image"`

		// Observations is an optional dump of the kriged observation table
		Observations string `yaml:"observations"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Grid.NI = 100
	cfg.Grid.NJ = 100
	cfg.Grid.DX = 1.0
	cfg.Grid.DY = 1.0

	cfg.Variogram.Type = variogram.Spherical.String()
	cfg.Variogram.RangeX = 10.0
	cfg.Variogram.RangeY = 10.0
	cfg.Variogram.StdDev = 1.0
	cfg.Variogram.Power = 1.5

	cfg.Kriging.P = kriging.DefaultP
	cfg.Kriging.NumCores = runtime.NumCPU() // Use all available cores by default

	cfg.Output.Verbose = true
	cfg.Output.LogLevel = "info"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks the configuration for values kriging cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Grid.NI <= 0 || c.Grid.NJ <= 0 {
		errs = append(errs, fmt.Errorf("grid size must be positive, got %dx%d", c.Grid.NI, c.Grid.NJ))
	}
	if !(c.Grid.DX > 0) || !(c.Grid.DY > 0) {
		errs = append(errs, fmt.Errorf("grid spacing must be positive, got %g and %g", c.Grid.DX, c.Grid.DY))
	}
	if !(c.Kriging.P > 0) {
		errs = append(errs, fmt.Errorf("halo size p must be positive, got %g", c.Kriging.P))
	}
	if c.Kriging.Folds == 1 || c.Kriging.Folds < 0 {
		errs = append(errs, fmt.Errorf("folds must be 0 or at least 2, got %d", c.Kriging.Folds))
	}
	if _, err := c.VariogramModel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// VariogramModel builds the variogram described by the configuration
func (c *Config) VariogramModel() (*variogram.Variogram, error) {
	typ, err := variogram.ParseType(c.Variogram.Type)
	if err != nil {
		return nil, err
	}
	return variogram.New(typ, variogram.Params{
		RangeX:  c.Variogram.RangeX,
		RangeY:  c.Variogram.RangeY,
		Azimuth: c.Variogram.Azimuth * math.Pi / 180,
		StdDev:  c.Variogram.StdDev,
		Power:   c.Variogram.Power,
	})
}

// KrigingOptions returns the kriging options of the configuration
func (c *Config) KrigingOptions() kriging.Options {
	opts := kriging.DefaultOptions()
	opts.P = c.Kriging.P
	opts.KrigAll = c.Kriging.KrigAll
	opts.GetResiduals = c.Kriging.GetResiduals
	opts.UseIndexGrid = c.Kriging.UseIndexGrid
	if c.Kriging.NumCores > 0 {
		opts.Workers = c.Kriging.NumCores
	}
	return opts
}

// Surface returns a new surface filled with the configured trend
func (c *Config) Surface() *models.Surface {
	return models.NewSurface(c.Grid.NI, c.Grid.NJ, c.Grid.XMin, c.Grid.YMin, c.Grid.DX, c.Grid.DY, c.Grid.Trend)
}
