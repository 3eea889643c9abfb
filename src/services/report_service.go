package services

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/username/cryptotaxes/backend/src/logger"
	"github.com/username/cryptotaxes/backend/src/models"
	"github.com/username/cryptotaxes/backend/src/utils"
)

const (
	ConsolidatedFileName   = "consolidated.csv"
	RealizedEventsFileName = "8949.csv"

	// timestampLayout matches the consolidated ledger's ISO-8601 dates.
	timestampLayout = "2006-01-02T15:04:05"
)

// reportServiceImpl writes the run's tabular outputs into its report directory.
type reportServiceImpl struct {
	reportDir string
}

func NewReportService(reportDir string) (ReportService, error) {
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory %s: %w", reportDir, err)
	}
	return &reportServiceImpl{reportDir: reportDir}, nil
}

// WriteConsolidated persists the normalized ledger, one row per transaction in
// chronological order.
func (s *reportServiceImpl) WriteConsolidated(txs []models.Transaction) error {
	rows := make([][]string, 0, len(txs)+1)
	rows = append(rows, []string{"Date", "CryptoAsset", "Amount", "Spot Price (USD)", "Total Cost (USD)", "Source"})
	for _, tx := range txs {
		rows = append(rows, []string{
			tx.Timestamp.Format(timestampLayout),
			tx.Asset,
			tx.Amount.String(),
			nullDecimalString(tx.SpotPrice),
			nullDecimalString(tx.TotalCost),
			tx.Source,
		})
	}
	return s.writeCSV(ConsolidatedFileName, rows)
}

// WriteRealizedEvents persists the 8949-style gain/loss table in processing
// order.
func (s *reportServiceImpl) WriteRealizedEvents(events []models.RealizedEvent) error {
	rows := make([][]string, 0, len(events)+1)
	rows = append(rows, []string{"Description", "Date Acquired", "Date Sold", "Proceeds", "Cost", "Gains or losses"})
	for _, event := range events {
		rows = append(rows, []string{
			fmt.Sprintf("%s %s", utils.FormatQuantity(event.QuantityMatched), event.Asset),
			event.LotAcquiredAt.Format(timestampLayout),
			event.DisposalDate.Format(timestampLayout),
			event.Proceeds.String(),
			event.Cost.String(),
			event.GainOrLoss.String(),
		})
	}
	return s.writeCSV(RealizedEventsFileName, rows)
}

// Summarize sums gain/loss for events realized in the given calendar year, in
// processing order, alongside the final unaccounted total.
func (s *reportServiceImpl) Summarize(events []models.RealizedEvent, unaccounted decimal.Decimal, year int) models.LedgerSummary {
	yearGain := decimal.Zero
	for _, event := range events {
		if event.DisposalDate.Year() == year {
			yearGain = yearGain.Add(event.GainOrLoss)
		}
	}
	return models.LedgerSummary{
		Year:        year,
		YearGain:    yearGain,
		Unaccounted: unaccounted,
		EventCount:  len(events),
	}
}

func (s *reportServiceImpl) writeCSV(name string, rows [][]string) error {
	path := filepath.Join(s.reportDir, name)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	logger.L.Info("Report written", "path", path, "rows", len(rows)-1)
	return nil
}

func nullDecimalString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
