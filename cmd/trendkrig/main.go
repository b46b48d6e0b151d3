package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"trendkrig/pkg/config"
	"trendkrig/pkg/estimation"
)

var (
	logLevel string // Log verbosity level

	// krig flags
	configPath       string  // YAML configuration file
	inputFile        string  // CSV file of x,y,z observations
	outputFile       string  // Irap Classic ASCII output surface
	trendFile        string  // Optional Irap Classic ASCII prior trend
	imageFile        string  // Optional PNG or JPEG rendering
	observationsFile string  // Optional observation table dump
	numCores         int     // Number of blocks solved concurrently
	haloP            float64 // Halo size in units of the covariance range
	folds            int     // Cross-validation folds
	krigAll          bool    // Solve the grid as one block
	residuals        bool    // Write the kriged residual only
	indexGrid        bool    // Snap observations to grid nodes
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "trendkrig",
	Short: "Block-partitioned simple kriging of trend surfaces",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		logrus.SetLevel(level)
		return nil
	},
	SilenceUsage: true,
}

// krigCmd kriges a trend surface from scattered observations
var krigCmd = &cobra.Command{
	Use:   "krig",
	Short: "Krige a trend surface from x,y,z observations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		params := &estimation.Params{
			InputFile:  inputFile,
			TrendFile:  trendFile,
			OutputFile: outputFile,
			Config:     cfg,
		}
		if cfg.Output.Verbose {
			params.Progress = newProgressBar(os.Stdout).update
		}

		est := estimation.NewEstimator(params)
		if err := est.Process(ctx); err != nil {
			return err
		}
		printSummary(est, outputFile)
		return nil
	},
}

// configCmd groups configuration file commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
}

// configInitCmd writes a default configuration file
var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "trendkrig.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.CreateDefaultConfigFile(path); err != nil {
			return err
		}
		logrus.Infof("Default configuration written to %s", path)
		return nil
	},
}

// applyFlags overrides configuration values with explicitly set flags
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("cores") {
		cfg.Kriging.NumCores = numCores
	}
	if flags.Changed("p") {
		cfg.Kriging.P = haloP
	}
	if flags.Changed("folds") {
		cfg.Kriging.Folds = folds
	}
	if flags.Changed("krig-all") {
		cfg.Kriging.KrigAll = krigAll
	}
	if flags.Changed("residuals") {
		cfg.Kriging.GetResiduals = residuals
	}
	if flags.Changed("index-grid") {
		cfg.Kriging.UseIndexGrid = indexGrid
	}
	if flags.Changed("image") {
		cfg.Output.Image = imageFile
	}
	if flags.Changed("observations") {
		cfg.Output.Observations = observationsFile
	}
}

// printSummary prints the kriging report and validation metrics
func printSummary(est *estimation.Estimator, output string) {
	report := est.GetReport()
	fmt.Printf("\nKriging completed in %.2f seconds\n", report.Elapsed.Seconds())
	fmt.Printf("Output surface saved to: %s\n", output)
	fmt.Printf("- Observations: %d\n", report.NumData)
	fmt.Printf("- Blocks: %d (%dx%d layout)\n", report.Blocks, report.BlocksX, report.BlocksY)
	fmt.Printf("- Observations per block: %d target, %d average\n", report.TargetData, report.AvgData)
	fmt.Printf("- Mean halo size: %.2f ranges\n", report.MeanP)
	if report.Fallback {
		fmt.Println("- Fewer blocks than workers, some cores stayed idle")
	}

	if m, ok := est.GetMetrics(); ok {
		fmt.Printf("\nCross-validation (%d observations):\n", m.N)
		fmt.Printf("- RMSE: %.4f\n", m.RMSE)
		fmt.Printf("- MAE: %.4f\n", m.MAE)
		fmt.Printf("- Bias: %.4f\n", m.Bias)
		fmt.Printf("- Correlation: %.3f\n", m.Correlation)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	krigCmd.Flags().StringVar(&configPath, "config", "trendkrig.yaml", "YAML configuration file, defaults are used when missing")
	krigCmd.Flags().StringVarP(&inputFile, "input", "i", "", "CSV file of x,y,z observations")
	krigCmd.Flags().StringVarP(&outputFile, "output", "o", "trend.irap", "Output surface (Irap Classic ASCII)")
	krigCmd.Flags().StringVar(&trendFile, "trend", "", "Prior trend surface (Irap Classic ASCII), overrides the configured grid")
	krigCmd.Flags().StringVar(&imageFile, "image", "", "Render the result to a PNG or JPEG file")
	krigCmd.Flags().StringVar(&observationsFile, "observations", "", "Write the kriged observation table")
	krigCmd.Flags().IntVar(&numCores, "cores", 0, "Number of blocks solved concurrently (default: all available)")
	krigCmd.Flags().Float64Var(&haloP, "p", 2.0, "Halo size in units of the covariance range")
	krigCmd.Flags().IntVar(&folds, "folds", 0, "Cross-validation folds, 0 disables validation")
	krigCmd.Flags().BoolVar(&krigAll, "krig-all", false, "Solve the whole grid as a single block")
	krigCmd.Flags().BoolVar(&residuals, "residuals", false, "Write the kriged residual instead of the surface")
	krigCmd.Flags().BoolVar(&indexGrid, "index-grid", false, "Snap observations to grid nodes")
	_ = krigCmd.MarkFlagRequired("input")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(krigCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
