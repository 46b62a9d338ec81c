package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mrireg/internal/logging"
	"mrireg/pkg/batch"
	"mrireg/pkg/config"
	"mrireg/pkg/discovery"
	"mrireg/pkg/imaging"
	"mrireg/pkg/registration"
	"mrireg/pkg/report"
	"mrireg/pkg/segmentation"
	"mrireg/pkg/standardize"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mrireg",
		Short: "Batch MRI preprocessing and registration",
		Long: `mrireg batch-processes paired MRI studies through intensity
standardization, segmentation, ROI cropping, and cross-modality
registration, one bounded worker per patient.`,
	}
	root.AddCommand(runCmd())
	root.AddCommand(trainCmd())
	root.AddCommand(discoverCmd())
	return root
}

func runCmd() *cobra.Command {
	var (
		configPath string
		outputDir  string
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "run <study-root>",
		Short: "Process every patient under a study root directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if workers > 0 {
				cfg.Processing.Workers = workers
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runBatch(cmd, cfg, args[0], outputDir)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "mrireg.yaml", "path to the YAML configuration file")
	cmd.Flags().StringVar(&outputDir, "output", "output", "batch output directory")
	cmd.Flags().IntVar(&workers, "workers", 0, "override the configured worker count")
	return cmd
}

func runBatch(cmd *cobra.Command, cfg *config.Config, inputDir, outputDir string) error {
	log, err := logging.NewLogger(cfg.Output.Verbose, cfg.Output.LogFile)
	if err != nil {
		return err
	}
	defer log.Close()

	lib := imaging.NewFileLibrary()

	scanner := discovery.NewScanner(cfg.Modalities.Fixed, cfg.Modalities.Moving, log)
	items, err := scanner.Discover(inputDir)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		log.Warn("no complete patients found under %s", inputDir)
		return nil
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Phase barrier: the shared model is trained (or loaded) strictly
	// before fan-out and is read-only afterwards.
	var shared standardize.Standardizer
	if cfg.Standardization.ParameterFile != "" {
		params, err := standardize.LoadParameters(cfg.Standardization.ParameterFile)
		if err != nil {
			return err
		}
		shared, err = standardize.FromParameters(params)
		if err != nil {
			return err
		}
		log.Info("loaded standardization parameters from %s", cfg.Standardization.ParameterFile)
	} else {
		shared, err = batch.TrainSharedStandardizer(items, batch.TrainOptions{
			Library:   lib,
			Method:    cfg.Standardization.Method,
			Modality:  cfg.Modalities.Fixed,
			SampleCap: cfg.Standardization.TrainingSampleCap,
			OutputDir: outputDir,
			Log:       log,
		})
		if err != nil {
			return err
		}
	}

	var regEngine registration.Engine
	if cfg.Registration.Enabled {
		regEngine, err = registration.NewExternalEngine(registration.ExternalOptions{
			ExecutablePath: cfg.Registration.ExecutablePath,
			ParameterFile:  cfg.Registration.ParameterFile,
			Timeout:        time.Duration(cfg.Registration.TimeoutSeconds) * time.Second,
			Library:        lib,
			Log:            log,
		})
		if err != nil {
			return err
		}
	}

	var segmentor segmentation.Segmentor
	if cfg.Segmentation.Enabled {
		segmentor = segmentation.NewThresholdSegmentor()
	}

	process := batch.NewProcessFunc(batch.ProcessorOptions{
		Library:         lib,
		Registration:    regEngine,
		Segmentor:       segmentor,
		Shared:          shared,
		Method:          cfg.Standardization.Method,
		Robust:          cfg.Standardization.Robust,
		ROIPadding:      cfg.Segmentation.ROIPadding,
		ContinueOnError: cfg.Processing.ContinueOnError,
		OutputDir:       outputDir,
		FixedName:       cfg.Modalities.Fixed,
		MovingName:      cfg.Modalities.Moving,
		Log:             log,
	})

	workers := cfg.Processing.Workers
	if cfg.Processing.Sequential {
		workers = 1
	}
	executor := batch.NewExecutor(workers, log)
	result := executor.Run(cmd.Context(), items, process)

	aggregator := &report.Aggregator{OutputDir: outputDir, Configuration: cfg.Echo()}
	paths, err := aggregator.Write(result)
	if err != nil {
		return err
	}

	log.Info("summary: %s", paths.Summary)
	log.Info("results: %s", paths.Results)
	if paths.Errors != "" {
		log.Info("error log: %s", paths.Errors)
	}
	return nil
}

func trainCmd() *cobra.Command {
	var (
		configPath string
		paramsOut  string
		sampleCap  int
	)

	cmd := &cobra.Command{
		Use:   "train <study-root>",
		Short: "Train the Nyul standardization model and save its parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if sampleCap > 0 {
				cfg.Standardization.TrainingSampleCap = sampleCap
			}

			log, err := logging.NewLogger(cfg.Output.Verbose, cfg.Output.LogFile)
			if err != nil {
				return err
			}
			defer log.Close()

			lib := imaging.NewFileLibrary()
			scanner := discovery.NewScanner(cfg.Modalities.Fixed, cfg.Modalities.Moving, log)
			items, err := scanner.Discover(args[0])
			if err != nil {
				return err
			}

			model, err := batch.TrainSharedStandardizer(items, batch.TrainOptions{
				Library:   lib,
				Method:    standardize.MethodNyul,
				Modality:  cfg.Modalities.Fixed,
				SampleCap: cfg.Standardization.TrainingSampleCap,
				Log:       log,
			})
			if err != nil {
				return err
			}

			if err := standardize.SaveParameters(model.Parameters(), paramsOut); err != nil {
				return err
			}
			log.Info("saved parameters to %s", paramsOut)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "mrireg.yaml", "path to the YAML configuration file")
	cmd.Flags().StringVar(&paramsOut, "params", "nyul_parameters.json", "output path for the trained parameters")
	cmd.Flags().IntVar(&sampleCap, "sample-cap", 0, "override the training sample cap")
	return cmd
}

func discoverCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "discover <study-root>",
		Short: "List the complete patients a batch run would process",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			log, err := logging.NewLogger(cfg.Output.Verbose, "")
			if err != nil {
				return err
			}

			scanner := discovery.NewScanner(cfg.Modalities.Fixed, cfg.Modalities.Moving, log)
			items, err := scanner.Discover(args[0])
			if err != nil {
				return err
			}

			for _, item := range items {
				fixed, _ := item.Path(cfg.Modalities.Fixed)
				moving, _ := item.Path(cfg.Modalities.Moving)
				fmt.Printf("%s\n  %s: %s\n  %s: %s\n", item.ID,
					cfg.Modalities.Fixed, fixed, cfg.Modalities.Moving, moving)
			}
			fmt.Printf("%d complete patients\n", len(items))
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "mrireg.yaml", "path to the YAML configuration file")
	return cmd
}
