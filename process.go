package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nixj9/construction-doc-processor/model"
	"github.com/nixj9/construction-doc-processor/pkg/logger"
	"github.com/nixj9/construction-doc-processor/service"
)

var (
	outputFormat string
	outputFile   string
	failOnError  bool
)

var processCmd = &cobra.Command{
	Use:   "process FILE...",
	Short: "Process files as one batch and write the result log",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runProcess,
}

func init() {
	processCmd.Flags().StringVar(&outputFormat, "format", service.FormatJSON, "output format: json, msgpack")
	processCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default stdout)")
	processCmd.Flags().BoolVar(&failOnError, "fail-on-error", false, "exit non-zero if any file failed")
}

func runProcess(cmd *cobra.Command, args []string) error {
	if outputFormat != service.FormatJSON && outputFormat != service.FormatMsgpack {
		return fmt.Errorf("unsupported format %q", outputFormat)
	}

	cfg, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}

	// stdout carries the report
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})

	if err := service.CheckExtensionSets(); err != nil {
		return err
	}

	items, err := readItems(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	objectStore, err := newObjectStore(ctx, cfg)
	if err != nil {
		return err
	}
	registry, err := service.BuildRegistry(cfg, objectStore)
	if err != nil {
		return err
	}

	pipeline := service.NewPipeline(registry, service.NewFileMetadataExtractor())
	pipeline.OnOutcome = func(index int, o model.Outcome) {
		slog.Info("file processed", "index", index+1, "total", len(items), "file", o.FileName, "status", o.Status)
	}

	batch := &model.Batch{
		ID:        uuid.New().String(),
		Status:    model.StatusProcessing,
		FileCount: len(items),
		CreatedAt: time.Now(),
	}
	ctx = context.WithValue(ctx, logger.BatchIDKey, batch.ID)

	results := service.NewResultLog()
	runErr := pipeline.Run(ctx, items, results)
	switch {
	case runErr == nil:
		batch.Status = model.StatusCompleted
	case ctx.Err() != nil:
		batch.Status = model.StatusCancelled
		batch.ErrorMsg = "batch cancelled"
	default:
		return runErr
	}
	batch.Processed = results.Len()
	batch.UpdatedAt = time.Now()

	data, _, err := service.EncodeReport(service.NewBatchReport(batch, results), outputFormat)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd.OutOrStdout(), data); err != nil {
		return err
	}

	summary := results.Summary()
	slog.Info("batch finished",
		"batch_id", batch.ID,
		"status", batch.Status,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)

	if runErr != nil {
		return runErr
	}
	if failOnError && summary.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", summary.Failed, summary.Total)
	}
	return nil
}

func readItems(paths []string) ([]*model.Item, error) {
	items := make([]*model.Item, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		items = append(items, &model.Item{
			ID:          uuid.New().String(),
			Name:        filepath.Base(p),
			Size:        int64(len(data)),
			ContentType: http.DetectContentType(data),
			Data:        data,
		})
	}
	return items, nil
}

func writeOutput(stdout io.Writer, data []byte) error {
	if outputFile == "" {
		_, err := stdout.Write(data)
		if err == nil && outputFormat == service.FormatJSON {
			_, err = io.WriteString(stdout, "\n")
		}
		return err
	}
	if err := os.WriteFile(outputFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputFile, err)
	}
	return nil
}
