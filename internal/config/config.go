package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/raman-lab/fcpr/internal/search"
	"github.com/raman-lab/fcpr/internal/tensor"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/fcpr.defaults.json"

// Config represents the root configuration for processing and orientation
// search. Omitted fields fall back to the defaults returned by the Get*
// methods, so partial files are safe.
type Config struct {
	// Search params
	Tolerance    *float64 `json:"tolerance,omitempty"`
	ThetaRange   *string  `json:"theta_range,omitempty"` // "min:max:step" in degrees
	ChiRange     *string  `json:"chi_range,omitempty"`
	Mode         *string  `json:"mode,omitempty"` // first, best or all
	Workers      *int     `json:"workers,omitempty"`
	Refine       *int     `json:"refine,omitempty"`
	MaxSolutions *int     `json:"max_solutions,omitempty"`

	// Processing params
	EigenOrder  *string `json:"eigen_order,omitempty"`
	Concurrency *int    `json:"concurrency,omitempty"`

	// Outputs
	DatabasePath *string `json:"database_path,omitempty"`
	PlotDir      *string `json:"plot_dir,omitempty"`
	Listen       *string `json:"listen,omitempty"`
	AssetsHost   *string `json:"assets_host,omitempty"` // echarts javascript location for HTML charts
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// Empty returns a Config with all fields set to nil.
func Empty() *Config {
	return &Config{}
}

// Defaults returns a Config with every field populated with its default.
func Defaults() *Config {
	return &Config{
		Tolerance:    ptrFloat64(search.DefaultTolerance),
		ThetaRange:   ptrString("0:360:0.5"),
		ChiRange:     ptrString("0:360:0.5"),
		Mode:         ptrString("first"),
		Workers:      ptrInt(0),
		Refine:       ptrInt(0),
		MaxSolutions: ptrInt(search.DefaultMaxSolutions),
		EigenOrder:   ptrString("ascending"),
		Concurrency:  ptrInt(0),
		DatabasePath: ptrString(""),
		PlotDir:      ptrString(""),
		Listen:       ptrString(":8080"),
		AssetsHost:   ptrString(""),
	}
}

// Load loads a Config from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefault loads the canonical defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefault() *Config {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks every set field and reports all problems at once.
func (c *Config) Validate() error {
	var merr *multierror.Error

	if c.Tolerance != nil && *c.Tolerance <= 0 {
		merr = multierror.Append(merr, fmt.Errorf("tolerance must be positive, got %g", *c.Tolerance))
	}
	if c.ThetaRange != nil && *c.ThetaRange != "" {
		if _, err := search.ParseRangeSpec(*c.ThetaRange); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("invalid theta_range: %w", err))
		}
	}
	if c.ChiRange != nil && *c.ChiRange != "" {
		if _, err := search.ParseRangeSpec(*c.ChiRange); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("invalid chi_range: %w", err))
		}
	}
	if c.Mode != nil {
		if _, err := search.ParseMode(*c.Mode); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if c.EigenOrder != nil {
		if _, err := tensor.ParseOrder(*c.EigenOrder); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	for name, v := range map[string]*int{
		"workers":       c.Workers,
		"refine":        c.Refine,
		"max_solutions": c.MaxSolutions,
		"concurrency":   c.Concurrency,
	} {
		if v != nil && *v < 0 {
			merr = multierror.Append(merr, fmt.Errorf("%s must be non-negative, got %d", name, *v))
		}
	}

	return merr.ErrorOrNil()
}

// Merge overlays every non-nil field of o onto c.
func (c *Config) Merge(o *Config) {
	if o == nil {
		return
	}
	if o.Tolerance != nil {
		c.Tolerance = o.Tolerance
	}
	if o.ThetaRange != nil {
		c.ThetaRange = o.ThetaRange
	}
	if o.ChiRange != nil {
		c.ChiRange = o.ChiRange
	}
	if o.Mode != nil {
		c.Mode = o.Mode
	}
	if o.Workers != nil {
		c.Workers = o.Workers
	}
	if o.Refine != nil {
		c.Refine = o.Refine
	}
	if o.MaxSolutions != nil {
		c.MaxSolutions = o.MaxSolutions
	}
	if o.EigenOrder != nil {
		c.EigenOrder = o.EigenOrder
	}
	if o.Concurrency != nil {
		c.Concurrency = o.Concurrency
	}
	if o.DatabasePath != nil {
		c.DatabasePath = o.DatabasePath
	}
	if o.PlotDir != nil {
		c.PlotDir = o.PlotDir
	}
	if o.Listen != nil {
		c.Listen = o.Listen
	}
	if o.AssetsHost != nil {
		c.AssetsHost = o.AssetsHost
	}
}

// GetTolerance returns the tolerance value or the default.
func (c *Config) GetTolerance() float64 {
	if c.Tolerance == nil || *c.Tolerance <= 0 {
		return search.DefaultTolerance
	}
	return *c.Tolerance
}

// GetGrid returns the theta/chi grid, falling back to the default axis on
// unset or malformed ranges.
func (c *Config) GetGrid() search.Grid {
	g := search.DefaultGrid()
	if c.ThetaRange != nil && *c.ThetaRange != "" {
		if r, err := search.ParseRangeSpec(*c.ThetaRange); err == nil {
			g.Theta = r
		}
	}
	if c.ChiRange != nil && *c.ChiRange != "" {
		if r, err := search.ParseRangeSpec(*c.ChiRange); err == nil {
			g.Chi = r
		}
	}
	return g
}

// GetMode returns the search mode or ModeFirst.
func (c *Config) GetMode() search.Mode {
	if c.Mode == nil {
		return search.ModeFirst
	}
	m, err := search.ParseMode(*c.Mode)
	if err != nil {
		return search.ModeFirst
	}
	return m
}

// GetWorkers returns the per-search worker count; 0 means GOMAXPROCS.
func (c *Config) GetWorkers() int {
	if c.Workers == nil || *c.Workers < 0 {
		return 0
	}
	return *c.Workers
}

// GetRefine returns the number of refinement passes.
func (c *Config) GetRefine() int {
	if c.Refine == nil || *c.Refine < 0 {
		return 0
	}
	return *c.Refine
}

// GetMaxSolutions returns the ModeAll cap.
func (c *Config) GetMaxSolutions() int {
	if c.MaxSolutions == nil || *c.MaxSolutions <= 0 {
		return search.DefaultMaxSolutions
	}
	return *c.MaxSolutions
}

// GetEigenOrder returns the principal value ordering.
func (c *Config) GetEigenOrder() tensor.Order {
	if c.EigenOrder == nil {
		return tensor.OrderAscending
	}
	o, err := tensor.ParseOrder(*c.EigenOrder)
	if err != nil {
		return tensor.OrderAscending
	}
	return o
}

// GetConcurrency returns the number of table rows solved at once; 0 means automatic.
func (c *Config) GetConcurrency() int {
	if c.Concurrency == nil || *c.Concurrency < 0 {
		return 0
	}
	return *c.Concurrency
}

// GetDatabasePath returns the SQLite path; empty disables persistence.
func (c *Config) GetDatabasePath() string {
	if c.DatabasePath == nil {
		return ""
	}
	return *c.DatabasePath
}

// GetPlotDir returns the directory for per-row residual maps; empty disables them.
func (c *Config) GetPlotDir() string {
	if c.PlotDir == nil {
		return ""
	}
	return *c.PlotDir
}

// GetListen returns the HTTP listen address.
func (c *Config) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8080"
	}
	return *c.Listen
}

// GetAssetsHost returns the echarts asset host; empty means the go-echarts CDN.
func (c *Config) GetAssetsHost() string {
	if c.AssetsHost == nil {
		return ""
	}
	return *c.AssetsHost
}

// SearchOptions assembles search.Options from the config.
func (c *Config) SearchOptions() search.Options {
	return search.Options{
		Mode:         c.GetMode(),
		Workers:      c.GetWorkers(),
		Refine:       c.GetRefine(),
		MaxSolutions: c.GetMaxSolutions(),
	}
}
