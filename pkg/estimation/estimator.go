// Package estimation runs the complete trend kriging workflow: it loads
// scattered observations, builds the prior trend surface, kriges it and
// writes the result, optionally with a cross-validation of the setup.
package estimation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"trendkrig/internal/models"
	"trendkrig/pkg/config"
	"trendkrig/pkg/kriging"
	"trendkrig/pkg/variogram"
	"trendkrig/pkg/visualization"
)

// Params holds the inputs and outputs of an estimation run
type Params struct {
	// InputFile is a CSV file of x,y,z observations
	InputFile string

	// TrendFile is an optional Irap Classic ASCII surface used as prior
	// trend. When empty the grid section of Config defines a constant trend.
	TrendFile string

	// OutputFile is where the kriged surface is written in Irap Classic
	// ASCII format
	OutputFile string

	// Config holds the variogram, kriging and output settings
	Config *config.Config

	// Progress is called after each solved block
	Progress kriging.ProgressCallback
}

// Estimator runs the estimation workflow:
// 1. Loading observations
// 2. Building the prior trend surface and the variogram
// 3. Cross-validating the setup (when folds are configured)
// 4. Kriging the surface
// 5. Writing the surface, the observation table and the image
type Estimator struct {
	params *Params

	points  []models.Point
	surface *models.Surface
	vario   *variogram.Variogram

	report  *kriging.Report
	metrics *ValidationMetrics
}

// NewEstimator creates an estimator. A nil Config uses the defaults.
func NewEstimator(params *Params) *Estimator {
	if params.Config == nil {
		params.Config = config.DefaultConfig()
	}
	return &Estimator{params: params}
}

// Process runs the complete estimation pipeline
func (e *Estimator) Process(ctx context.Context) error {
	cfg := e.params.Config
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logrus.Infof("Step 1: Loading observations from %s", e.params.InputFile)
	points, err := LoadPoints(e.params.InputFile)
	if err != nil {
		return fmt.Errorf("failed to load observations: %w", err)
	}
	e.points = points
	logrus.Infof("Loaded %d observations", len(points))

	logrus.Infof("Step 2: Building prior trend and variogram")
	if err := e.buildPrior(); err != nil {
		return err
	}

	if cfg.Kriging.Folds > 0 {
		logrus.Infof("Step 3: Cross-validating with %d folds", cfg.Kriging.Folds)
		m, err := CrossValidate(ctx, e.surface, e.points, e.vario, cfg.KrigingOptions(), cfg.Kriging.Folds)
		if err != nil {
			return fmt.Errorf("cross-validation failed: %w", err)
		}
		e.metrics = &m
	}

	logrus.Infof("Step 4: Kriging %dx%d surface", e.surface.NI, e.surface.NJ)
	opts := cfg.KrigingOptions()
	opts.Progress = e.params.Progress
	report, err := kriging.KrigPoints(ctx, e.surface, e.points, e.vario, opts)
	if err != nil {
		return fmt.Errorf("kriging failed: %w", err)
	}
	e.report = report

	logrus.Infof("Step 5: Writing results")
	if err := SaveIrap(e.surface, e.params.OutputFile); err != nil {
		return err
	}
	if path := cfg.Output.Observations; path != "" {
		if err := e.saveObservations(path); err != nil {
			logrus.Warnf("Failed to save observation table: %v", err)
		}
	}
	if path := cfg.Output.Image; path != "" {
		if err := visualization.SaveGrid(&e.surface.Grid2D, path); err != nil {
			logrus.Warnf("Failed to save image: %v", err)
		}
	}

	return nil
}

// buildPrior loads or creates the prior surface and the variogram
func (e *Estimator) buildPrior() error {
	cfg := e.params.Config
	if e.params.TrendFile != "" {
		s, err := LoadIrap(e.params.TrendFile)
		if err != nil {
			return fmt.Errorf("failed to load trend: %w", err)
		}
		if n := undefinedNodes(s); n > 0 {
			return fmt.Errorf("trend %s has %d undefined nodes, a prior must be defined everywhere", e.params.TrendFile, n)
		}
		e.surface = s
	} else {
		e.surface = cfg.Surface()
	}

	v, err := cfg.VariogramModel()
	if err != nil {
		return fmt.Errorf("invalid variogram: %w", err)
	}
	e.vario = v
	return nil
}

// undefinedNodes counts the nodes of s holding MissingValue
func undefinedNodes(s *models.Surface) int {
	n := 0
	for _, z := range s.Data {
		if z == models.MissingValue {
			n++
		}
	}
	return n
}

// saveObservations writes the observation table in the form it is kriged
func (e *Estimator) saveObservations(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if e.params.Config.Kriging.UseIndexGrid {
		return kriging.WriteToFile(kriging.NewNodalDataFromPoints(e.points, e.surface), path)
	}
	return kriging.WriteToFile(kriging.NewContinuousDataFromPoints(e.points, e.surface), path)
}

// GetSurface returns the kriged surface, nil before Process
func (e *Estimator) GetSurface() *models.Surface {
	return e.surface
}

// GetReport returns the kriging report, nil before Process
func (e *Estimator) GetReport() *kriging.Report {
	return e.report
}

// GetMetrics returns the cross-validation metrics. ok is false when no
// validation was run.
func (e *Estimator) GetMetrics() (m ValidationMetrics, ok bool) {
	if e.metrics == nil {
		return ValidationMetrics{}, false
	}
	return *e.metrics, true
}
