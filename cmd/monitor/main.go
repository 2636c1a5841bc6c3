package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/wms-platform/pharmacy-inventory/internal/domain"
	"github.com/wms-platform/pharmacy-inventory/internal/infrastructure/phpapi"
	"github.com/wms-platform/pharmacy-inventory/pkg/logging"
)

// Stock alert monitor. Fetches products once, evaluates the alert classes
// and exits with exitAlerting when anything is expired or out of stock, so
// it can run from cron or a health probe.

const (
	exitOK       = 0
	exitFailed   = 1
	exitAlerting = 2
)

type options struct {
	baseURL    string
	lowStock   int
	expiryDays int
	timeout    time.Duration
	jsonOutput bool
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	defaults := domain.DefaultAlertThresholds()

	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts := options{}
	fs.StringVar(&opts.baseURL, "base-url", envOr("PHP_API_BASE_URL", "http://localhost/pharmacy/api"), "PHP API base URL")
	fs.IntVar(&opts.lowStock, "low-stock", defaults.LowStockThreshold, "Low stock threshold (units)")
	fs.IntVar(&opts.expiryDays, "expiry-days", defaults.ExpiryWarningDays, "Expiry warning window (days)")
	fs.DurationVar(&opts.timeout, "timeout", 8*time.Second, "Request timeout")
	fs.BoolVar(&opts.jsonOutput, "json", false, "Print the summary as JSON")
	if err := fs.Parse(args); err != nil {
		return exitFailed
	}
	if opts.lowStock <= 0 || opts.expiryDays <= 0 {
		fmt.Fprintln(stderr, "low-stock and expiry-days must be positive")
		return exitFailed
	}

	config := phpapi.DefaultConfig(opts.baseURL)
	config.Timeout = opts.timeout
	client := phpapi.NewClient(config, logging.NewNop(), nil)

	products, err := client.ListProducts(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to fetch products: %v\n", err)
		return exitFailed
	}

	summary := domain.EvaluateAlerts(products, domain.AlertThresholds{
		LowStockThreshold: opts.lowStock,
		ExpiryWarningDays: opts.expiryDays,
	}, time.Now())

	if opts.jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			fmt.Fprintf(stderr, "Failed to encode summary: %v\n", err)
			return exitFailed
		}
	} else {
		printSummary(stdout, len(products), summary)
	}

	if summary.Class(domain.AlertExpired).Count > 0 || summary.Class(domain.AlertOutOfStock).Count > 0 {
		return exitAlerting
	}
	return exitOK
}

func printSummary(w io.Writer, productCount int, summary domain.AlertSummary) {
	fmt.Fprintf(w, "\n=== Stock alerts (%d products) ===\n", productCount)
	fmt.Fprintf(w, "Low stock threshold: %d units, expiry window: %d days\n\n",
		summary.Thresholds.LowStockThreshold, summary.Thresholds.ExpiryWarningDays)

	fmt.Fprintln(w, "Alert              Kind      Count")
	fmt.Fprintln(w, "-----------------  --------  -----")
	for _, class := range summary.Classes {
		fmt.Fprintf(w, "%-17s  %-8s  %5d\n", class.Key, class.Kind, class.Count)
	}

	fmt.Fprintln(w)
	for _, class := range summary.Classes {
		if class.Count > 0 {
			fmt.Fprintln(w, class.DetailText())
		}
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
