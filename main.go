package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/username/cryptotaxes/backend/src/config"
	"github.com/username/cryptotaxes/backend/src/database"
	"github.com/username/cryptotaxes/backend/src/logger"
	"github.com/username/cryptotaxes/backend/src/models"
	"github.com/username/cryptotaxes/backend/src/parsers"
	"github.com/username/cryptotaxes/backend/src/processors"
	"github.com/username/cryptotaxes/backend/src/services"
)

func main() {
	pnl := flag.Bool("pnl", false, "calculate realized gains/losses in addition to the consolidated ledger")
	year := flag.Int("year", 0, "tax year for the gain/loss summary (default from TAX_YEAR)")
	flag.Parse()

	config.LoadConfig()

	// Each run gets its own report directory; the run log lands there too.
	runDir := filepath.Join(config.Cfg.ReportDir, strconv.FormatInt(time.Now().UnixMilli(), 10))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create report directory %s: %v\n", runDir, err)
		os.Exit(1)
	}
	logFile, err := os.Create(filepath.Join(runDir, "cryptotaxes.log"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create run log: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger.InitLogger(config.Cfg.LogLevel, logFile)

	taxYear := config.Cfg.TaxYear
	if *year != 0 {
		taxYear = *year
	}

	txs, err := consolidate()
	if err != nil {
		logger.L.Error("Consolidation failed", "error", err)
		os.Exit(1)
	}

	reportSvc, err := services.NewReportService(runDir)
	if err != nil {
		logger.L.Error("Report setup failed", "error", err)
		os.Exit(1)
	}
	if err := reportSvc.WriteConsolidated(txs); err != nil {
		logger.L.Error("Failed to write consolidated ledger", "error", err)
		os.Exit(1)
	}

	if !*pnl {
		return
	}

	ledger := processors.NewCostBasisLedger()
	if err := ledger.Process(txs); err != nil {
		logger.L.Error("Ledger processing failed", "error", err)
		os.Exit(1)
	}
	if err := reportSvc.WriteRealizedEvents(ledger.RealizedEvents()); err != nil {
		logger.L.Error("Failed to write realized events", "error", err)
		os.Exit(1)
	}

	summary := reportSvc.Summarize(ledger.RealizedEvents(), ledger.Unaccounted(), taxYear)
	fmt.Printf("%d Gain/Loss: $%s\n", summary.Year, summary.YearGain.StringFixed(2))
	fmt.Printf("max unaccounted profit: $%s\n", summary.Unaccounted.StringFixed(2))
}

// consolidate runs adapters, merges, backfills prices and derives costs,
// returning the fully valued chronological sequence.
func consolidate() ([]models.Transaction, error) {
	sources := []struct {
		name string
		path string
	}{
		{"blockfi", config.Cfg.BlockFiCSVPath},
		{"coinbase", config.Cfg.CoinbaseCSVPath},
		{"coinbasepro", config.Cfg.CoinbaseProCSVPath},
		{"kraken", config.Cfg.KrakenCSVPath},
		{"uphold", config.Cfg.UpholdCSVPath},
	}

	var batches [][]models.Transaction
	for _, source := range sources {
		if source.path == "" {
			logger.L.Info("Source disabled, skipping", "source", source.name)
			continue
		}
		batch, err := parseSource(source.name, source.path)
		if err != nil {
			return nil, err
		}
		logger.L.Info("Source parsed", "source", source.name, "records", len(batch))
		batches = append(batches, batch)
	}

	processor := processors.NewTransactionProcessor()
	merged := processor.Merge(batches...)

	apiKeyBytes, err := os.ReadFile(config.Cfg.OracleAPIKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read oracle API key from %s: %w", config.Cfg.OracleAPIKeyPath, err)
	}

	var store *database.PriceStore
	if config.Cfg.PriceCacheDBPath != "" {
		database.InitDB(config.Cfg.PriceCacheDBPath)
		store = database.NewPriceStore(database.DB)
	}

	priceSvc := services.NewPriceService(
		config.Cfg.OracleBaseURL,
		strings.TrimSpace(string(apiKeyBytes)),
		config.Cfg.HTTPTimeout,
		config.Cfg.OracleRatePerSec,
		store,
	)

	resolved, err := services.BackfillPrices(merged, priceSvc)
	if err != nil {
		return nil, err
	}
	return processor.DeriveTotalCosts(resolved), nil
}

func parseSource(name, path string) ([]models.Transaction, error) {
	parser, err := parsers.GetParser(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", services.ErrParsingFailed, err)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s export %s: %w", name, path, err)
	}
	defer file.Close()

	txs, err := parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", services.ErrParsingFailed, name, err)
	}
	return txs, nil
}
