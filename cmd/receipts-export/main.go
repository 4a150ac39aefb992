package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/receiptdu/receiptdu/internal/common"
	"github.com/receiptdu/receiptdu/internal/export"
	"github.com/receiptdu/receiptdu/internal/repository"
)

func main() {
	var (
		out   = flag.String("out", "receipts.xlsx", "output XLSX file path")
		limit = flag.Int("limit", 0, "maximum number of receipts (0 = store default)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	cfg := common.LoadConfig()
	if cfg.Database.DSN == "" {
		logger.Error("DB_URL is required")
		os.Exit(2)
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
	exportService := export.NewService(receiptsRepo, logger)

	xlsxBytes, err := exportService.ExportReceiptsXLSX(ctx, *limit)
	if err != nil {
		logger.Error("failed to export receipts", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0644); err != nil {
		logger.Error("failed to write output file", "path", *out, "error", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %s (%d bytes)\n", *out, len(xlsxBytes))
}
