package usecase

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"daytrade/internal/domain/models"
	"daytrade/pkg/util"
)

// writeDatasetCSV materializes rows as a flat CSV with one column per
// feature. NaN values become empty cells.
func writeDatasetCSV(path string, rows []models.FeatureRow, features []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("csv: create dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := make([]string, 0, len(features)+4)
	header = append(header, "symbol", "date")
	header = append(header, features...)
	header = append(header, "next_ret", "y_up")
	if err := w.Write(header); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	record := make([]string, len(header))
	for _, r := range rows {
		record[0] = r.Symbol
		record[1] = r.Date.Format(util.DateLayout)
		for j, name := range features {
			record[2+j] = formatCell(r.Features[name])
		}
		record[len(record)-2] = formatCell(r.NextRet)
		record[len(record)-1] = strconv.Itoa(int(r.YUp))
		if err := w.Write(record); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	return nil
}

func formatCell(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
