package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"exercisehub/internal/asset"
	"exercisehub/internal/editorial"
	"exercisehub/internal/exercise"
	"exercisehub/internal/index"
	"exercisehub/internal/overrides"
)

func exportCmd() *cobra.Command {
	var (
		out    string
		format string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the effective catalog (base merged with overrides) to CSV or JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			cat, err := index.LoadCatalog(cfg.Data.IndexPath, cfg.Data.CatalogPath)
			if err != nil {
				return err
			}
			kv, closeKV, err := openKV(ctx, cfg.Store, logger)
			if err != nil {
				return err
			}
			defer closeKV()

			svc := exercise.NewService(cat, overrides.NewStore(kv, logger),
				exercise.WithAssets(asset.NewResolver(os.DirFS(cfg.Data.PublicRoot), logger)),
				exercise.WithClassifier(editorial.NewClassifier(os.DirFS(cfg.Editorial.Root), cfg.Editorial.MasterGlob, cfg.Editorial.ReportGlob, nil, logger)),
				exercise.WithFallbackImage(cfg.Data.FallbackImage),
				exercise.WithLogger(logger),
			)

			sheets, err := svc.ListAll(ctx)
			if err != nil {
				return err
			}
			if err := writeExport(out, format, sheets); err != nil {
				return err
			}
			logger.Info("exported catalog", zap.String("path", out), zap.Int("exercises", len(sheets)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "data/exercises.csv", "output path")
	cmd.Flags().StringVar(&format, "format", "", "csv or json (default from the file extension)")
	return cmd
}

func writeExport(path, format string, sheets []exercise.Sheet) error {
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}

	var buf bytes.Buffer
	switch format {
	case "csv":
		if err := encodeCSV(&buf, sheets); err != nil {
			return err
		}
	case "json":
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sheets); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return atomic.WriteFile(path, &buf)
}

var csvHeader = []string{
	"code", "series", "title", "level", "equipment", "muscles", "objective",
	"dosage", "image", "origin", "overridden", "editorial_source", "degraded",
}

func encodeCSV(buf *bytes.Buffer, sheets []exercise.Sheet) error {
	w := csv.NewWriter(buf)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range sheets {
		if err := w.Write([]string{
			s.Code,
			s.Series,
			s.Title,
			s.Level,
			s.Equipment,
			s.Muscles,
			s.Objective,
			s.Dosage,
			s.Image,
			string(s.Origin),
			strconv.FormatBool(s.Overridden),
			string(s.EditorialSource),
			strconv.FormatBool(s.Degraded),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
