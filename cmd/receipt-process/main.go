package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/receiptdu/receiptdu/internal/common"
	"github.com/receiptdu/receiptdu/internal/llm"
	"github.com/receiptdu/receiptdu/internal/ocr"
	"github.com/receiptdu/receiptdu/internal/pipeline"
	"github.com/receiptdu/receiptdu/internal/repository"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] IMAGE [IMAGE...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

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

	failures := 0
	for _, path := range flag.Args() {
		rec, err := processor.Process(ctx, path)
		if err != nil {
			logger.Error("failed to process receipt", "path", path, "error", err)
			failures++
			continue
		}
		res, err := receiptsRepo.Upsert(ctx, rec)
		if err != nil {
			logger.Error("failed to store receipt", "path", path, "error", err)
			failures++
			continue
		}
		fmt.Printf("%s: receipt %d %s\n", path, res.ID, res.Outcome())
	}

	if failures > 0 {
		os.Exit(1)
	}
}
