package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"daytrade/internal/di"
	"daytrade/internal/domain/models"
	drepo "daytrade/internal/domain/repository"
	"daytrade/internal/usecase"
	"daytrade/pkg/config"
	applogger "daytrade/pkg/logger"
)

var configPath string

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "daytrade",
		Short:         "Daily stock direction prediction service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")

	root.AddCommand(serveCmd(), buildDatasetCmd(), trainCmd(), predictCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *applogger.Logger, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config load failed: %w", err)
	}
	l, err := di.ProvideLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, l, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server, Kafka consumer, and stream ingestor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := loadConfig()
			if err != nil {
				return err
			}
			l.Info("starting",
				applogger.String("env", cfg.Environment),
				applogger.String("database", cfg.ClickHouse.Database),
			)

			app, err := di.InitializeApp(cfg)
			if err != nil {
				return fmt.Errorf("app initialization failed: %w", err)
			}
			return app.Run()
		},
	}
}

// newBuilder assembles the dataset builder for one-shot CLI runs. The
// metrics recorder is returned so callers can share it; the prometheus
// collectors register globally and must only be created once.
func newBuilder(cfg *config.Config, l *applogger.Logger) (*usecase.DatasetBuilder, drepo.Metrics, error) {
	ch, err := di.ProvideClickHouseClient(cfg, l)
	if err != nil {
		return nil, nil, err
	}
	marketData, err := di.ProvideMarketData(cfg, l)
	if err != nil {
		return nil, nil, err
	}
	barStore := di.ProvideBarStore(ch, l)
	datasetStore := di.ProvideDatasetStore(ch, l)
	metrics := di.ProvideMetrics()
	return di.ProvideDatasetBuilder(cfg, marketData, barStore, datasetStore, nil, metrics, l), metrics, nil
}

func buildDatasetCmd() *cobra.Command {
	var start, end, output string
	var margin, winsorize float64
	var minDays int

	cmd := &cobra.Command{
		Use:   "build-dataset [symbols...]",
		Short: "Fetch bars, engineer features, and write the dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("winsorize") {
				cfg.Dataset.WinsorizePct = winsorize
			}
			if cmd.Flags().Changed("min-days") {
				cfg.Dataset.MinTradingDays = minDays
			}
			if output != "" {
				cfg.Dataset.OutputPath = output
			}
			builder, _, err := newBuilder(cfg, l)
			if err != nil {
				return err
			}

			symbols := args
			if len(symbols) == 0 {
				symbols = cfg.Market.Symbols
			}
			result, err := builder.Build(cmd.Context(), &models.BuildDatasetRequest{
				Symbols: symbols,
				Start:   start,
				End:     end,
				Margin:  margin,
			})
			if err != nil {
				return err
			}
			return printJSON(result.Info)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "window start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "window end (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&margin, "margin", 0, "up-label return margin")
	cmd.Flags().Float64Var(&winsorize, "winsorize", 0, "winsorize quantile for outlier days")
	cmd.Flags().IntVar(&minDays, "min-days", 0, "minimum trading days per symbol")
	cmd.Flags().StringVar(&output, "output", "", "dataset CSV path")
	return cmd
}

func trainCmd() *cobra.Command {
	var start, end string
	var margin, learningRate float64
	var cvSplits, numLeaves, nEstimators int

	cmd := &cobra.Command{
		Use:   "train [symbols...]",
		Short: "Build the dataset and train the direction model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := loadConfig()
			if err != nil {
				return err
			}
			if cvSplits > 0 {
				cfg.Model.CVSplits = cvSplits
			}
			if numLeaves > 0 {
				cfg.Model.NumLeaves = numLeaves
			}
			if nEstimators > 0 {
				cfg.Model.NEstimators = nEstimators
			}
			if learningRate > 0 {
				cfg.Model.LearningRate = learningRate
			}
			builder, metrics, err := newBuilder(cfg, l)
			if err != nil {
				return err
			}
			trainer := di.ProvideTrainer(cfg, builder, metrics, l)

			symbols := args
			if len(symbols) == 0 {
				symbols = cfg.Market.Symbols
			}
			report, err := trainer.Train(cmd.Context(), &models.TrainRequest{
				Symbols: symbols,
				Start:   start,
				End:     end,
				Margin:  margin,
			})
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "window start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "window end (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&margin, "margin", 0, "up-label return margin")
	cmd.Flags().IntVar(&cvSplits, "cv-splits", 0, "time series CV fold count")
	cmd.Flags().IntVar(&numLeaves, "num-leaves", 0, "max leaves per tree")
	cmd.Flags().IntVar(&nEstimators, "n-estimators", 0, "boosting rounds")
	cmd.Flags().Float64Var(&learningRate, "learning-rate", 0, "shrinkage rate")
	return cmd
}

func predictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict <symbol>",
		Short: "Score the latest bar of a symbol with the trained model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := loadConfig()
			if err != nil {
				return err
			}
			ch, err := di.ProvideClickHouseClient(cfg, l)
			if err != nil {
				return err
			}
			marketData, err := di.ProvideMarketData(cfg, l)
			if err != nil {
				return err
			}
			predictor := di.ProvidePredictor(cfg,
				di.ProvideBarStore(ch, l), marketData, di.ProvideCache(cfg, l), di.ProvideMetrics(), l)

			pred, err := predictor.Predict(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(pred)
		},
	}
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
