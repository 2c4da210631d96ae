package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nixj9/construction-doc-processor/config"
	"github.com/nixj9/construction-doc-processor/service"
)

var (
	appVersion = "0.1.0"
	cfgFile    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "construction-doc-processor",
	Short: "Classify and process construction drawings and documents",
	Long: `construction-doc-processor classifies submitted files by extension into
drawings (dwg, dxf, rvt, ifc) and text documents (pdf, doc, docx, txt),
extracts their metadata and hands each one to the processor registered for
its type. Every file gets exactly one success or failure record.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(appVersion)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default config.yaml if present)")
}

// loadConfig reads path, or config.yaml when path is empty. Without a file
// only defaults and environment overrides apply.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path == "" {
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newObjectStore connects to MinIO when an endpoint is configured. It
// returns a nil interface otherwise, which disables archiving.
func newObjectStore(ctx context.Context, cfg *config.Config) (service.ObjectStore, error) {
	if cfg.Minio.Endpoint == "" {
		slog.Info("object storage disabled")
		return nil, nil
	}

	minioSvc, err := service.NewMinioService(&cfg.Minio)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MINIO service: %w", err)
	}
	if err := minioSvc.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure MINIO bucket: %w", err)
	}
	return minioSvc, nil
}
