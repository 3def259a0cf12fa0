// Command report computes analytics snapshots for a set of shops and writes
// one CSV export per shop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"creator-analytics/internal/analytics"
	"creator-analytics/internal/config"
	"creator-analytics/internal/export"
	"creator-analytics/internal/models"
	"creator-analytics/internal/observability"
	"creator-analytics/internal/repository"
	"creator-analytics/internal/services"

	"github.com/schollz/progressbar/v3"
)

const dateLayout = "2006-01-02"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "report:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", os.Getenv("CONFIG_FILE"), "path to an optional YAML config file")
	shopList := fs.String("shops", "", "comma-separated shop IDs (default: every shop in the store)")
	from := fs.String("from", "", "first day to include, YYYY-MM-DD")
	to := fs.String("to", "", "last day to include, YYYY-MM-DD")
	outDir := fs.String("out", ".", "directory for the CSV files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dateRange, err := parseRange(*from, *to)
	if err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger := observability.NewLoggerTo(stderr, cfg.Logger)

	store, err := repository.Open(ctx, cfg.Database, cfg.Breaker, logger)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer store.Close()

	shops := splitShops(*shopList)
	if len(shops) == 0 {
		if shops, err = store.Shops(ctx); err != nil {
			return fmt.Errorf("list shops: %w", err)
		}
	}
	if len(shops) == 0 {
		return errors.New("no shops to report on")
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	snapshots := services.NewSnapshotService(store.Store, store.Store, services.Options{
		Horizon: cfg.Analytics.ForecastHorizon,
		Timeout: cfg.Analytics.SnapshotTimeout,
		Logger:  logger,
	})

	bar := progressbar.NewOptions(len(shops),
		progressbar.OptionSetWriter(stderr),
		progressbar.OptionSetDescription("snapshots"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	start := time.Now()
	var failed int
	for _, shop := range shops {
		if err := ctx.Err(); err != nil {
			return err
		}

		path, err := writeReport(ctx, snapshots, shop, dateRange, *outDir)
		_ = bar.Add(1)
		if err != nil {
			failed++
			logger.Error("snapshot failed", "shop_id", shop, "error", err)
			continue
		}
		fmt.Fprintln(stdout, path)
	}
	_ = bar.Finish()

	logger.Info("report complete",
		"shops", len(shops),
		"failed", failed,
		"duration", time.Since(start))

	if failed > 0 {
		return fmt.Errorf("%d of %d shops failed", failed, len(shops))
	}
	return nil
}

func writeReport(ctx context.Context, snapshots *services.SnapshotService, shop string, r *models.DateRange, dir string) (string, error) {
	snapshot, err := snapshots.Compute(ctx, shop, r)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, export.Filename(shop, r))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.WriteCSV(f, analytics.ToExportRows(*snapshot)); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, f.Close()
}

// parseRange turns inclusive calendar days into a half-open range. Both
// empty means all time.
func parseRange(from, to string) (*models.DateRange, error) {
	if from == "" && to == "" {
		return nil, nil
	}

	r := &models.DateRange{}
	if from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			return nil, fmt.Errorf("-from: %w", err)
		}
		r.Start = t
	}
	if to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return nil, fmt.Errorf("-to: %w", err)
		}
		if !r.Start.IsZero() && r.Start.After(t) {
			return nil, models.ErrInvalidDateRange
		}
		r.End = t.AddDate(0, 0, 1)
	}
	return r, nil
}

func splitShops(list string) []string {
	var shops []string
	for _, s := range strings.Split(list, ",") {
		if s = strings.TrimSpace(s); s != "" {
			shops = append(shops, s)
		}
	}
	return shops
}
