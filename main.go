package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/siegeai/autodoc/collector"
	"github.com/siegeai/autodoc/config"
	"github.com/siegeai/autodoc/descriptor"
	"github.com/siegeai/autodoc/metric"
	"github.com/siegeai/autodoc/storage"
)

var (
	configPath      string
	descriptorsPath string
)

var rootCmd = &cobra.Command{
	Use:   "autodoc",
	Short: "Build Swagger documentation from the traffic of a test suite",
	Long: `autodoc accumulates a Swagger 2.0 document from observed HTTP
request/response pairs and serves the published result.

Captures happen in-process through the capture middleware, or offline by
replaying a packet capture of the test run.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", getEnv("AUTODOC_CONFIG", ""), "YAML config file")
	rootCmd.PersistentFlags().StringVar(&descriptorsPath, "descriptors", "", "YAML request descriptors, overrides the config")

	rootCmd.AddCommand(serveCmd, publishCmd, showCmd, replayCmd, mergeCmd, demoCmd)
}

func main() {
	_ = godotenv.Load()
	level := getEnv("AUTODOC_LOG", "info")

	err := setupLogging(level)
	if err != nil {
		slog.Error("could not init logging", "err", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(level string) error {
	var logLevel slog.Level
	err := logLevel.UnmarshalText([]byte(level))
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(h))
	return err
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

// session is what every command works with.
type session struct {
	cfg     *config.Config
	backend storage.Backend
	source  descriptor.Source
}

func openSession() (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	backend, err := cfg.OpenStorage()
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, backend: backend}
	path := cfg.Descriptors
	if descriptorsPath != "" {
		path = descriptorsPath
	}
	if path != "" {
		reg, err := descriptor.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load descriptors: %w", err)
		}
		s.source = reg
	}
	return s, nil
}

func (s *session) collector(m *metric.Metrics) (*collector.Collector, error) {
	opts := []collector.Option{collector.WithMetrics(m)}
	if s.source != nil {
		opts = append(opts, collector.WithDescriptors(s.source))
	}
	return collector.New(s.cfg, s.backend, opts...)
}
