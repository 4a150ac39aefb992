package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/receiptdu/receiptdu/internal/common"
	"github.com/receiptdu/receiptdu/internal/export"
	"github.com/receiptdu/receiptdu/internal/ingest"
	"github.com/receiptdu/receiptdu/internal/llm"
	"github.com/receiptdu/receiptdu/internal/ocr"
	"github.com/receiptdu/receiptdu/internal/pipeline"
	"github.com/receiptdu/receiptdu/internal/repository"
)

func main() {
	var (
		dir      = flag.String("dir", "", "directory of receipt images to process (required)")
		watch    = flag.Bool("watch", false, "keep watching the directory for new images")
		out      = flag.String("out", "", "write an XLSX summary after the batch (optional)")
		debounce = flag.Duration("debounce", 500*time.Millisecond, "coalesce window for watcher events")
	)
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "Error: -dir is required")
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	db, err := repository.Open(ctx, repository.Config{
		DSN:         cfg.Database.DSN,
		DialTimeout: cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := repository.EnsureSchema(ctx, db, logger); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	receiptsRepo := repository.NewReceiptRepository(db, logger)

	engine := ocr.NewEngine(ocr.Config{
		Tesseract:     cfg.OCR.Tesseract,
		Lang:          cfg.OCR.Lang,
		TessdataDir:   cfg.OCR.TessdataDir,
		PSM:           cfg.OCR.PSM,
		OEM:           cfg.OCR.OEM,
		TSVConfidence: cfg.OCR.TSVConfidence,
	}, logger)

	client := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	processor := pipeline.NewProcessor(engine, client, logger)

	processed := 0
	failures := 0
	handle := func(path string) {
		rec, err := processor.Process(ctx, path)
		if err != nil {
			logger.Error("failed to process receipt", "path", path, "error", err)
			failures++
			return
		}
		res, err := receiptsRepo.Upsert(ctx, rec)
		if err != nil {
			logger.Error("failed to store receipt", "path", path, "error", err)
			failures++
			return
		}
		logger.Info("batch.receipt.done", "path", path, "receipt_id", res.ID, "outcome", res.Outcome())
		processed++
	}

	if *watch {
		logger.Info("watching directory", "dir", *dir)
		events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{*dir},
			InitialScan: true,
			Debounce:    *debounce,
		}, logger)
		if err != nil {
			logger.Error("failed to start watcher", "error", err)
			os.Exit(1)
		}
		for events != nil || errs != nil {
			select {
			case path, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				handle(path)
			case _, ok := <-errs:
				if !ok {
					errs = nil
				}
			}
		}
	} else {
		paths, err := ingest.DiscoverImages(*dir)
		if err != nil {
			logger.Error("failed to scan directory", "dir", *dir, "error", err)
			os.Exit(1)
		}
		logger.Info("starting batch", "dir", *dir, "files", len(paths))
		for _, path := range paths {
			handle(path)
		}
	}

	if *out != "" {
		exportService := export.NewService(receiptsRepo, logger)
		xlsxBytes, err := exportService.ExportReceiptsXLSX(context.Background(), 0)
		if err != nil {
			logger.Error("failed to export receipts", "error", err)
			os.Exit(1)
		}
		outPath := *out
		if filepath.Ext(outPath) == "" {
			outPath += ".xlsx"
		}
		if err := os.WriteFile(outPath, xlsxBytes, 0644); err != nil {
			logger.Error("failed to write output file", "path", outPath, "error", err)
			os.Exit(1)
		}
		logger.Info("batch.export.done", "path", outPath)
	}

	logger.Info("batch complete", "processed", processed, "failures", failures)
	if failures > 0 {
		os.Exit(1)
	}
}
