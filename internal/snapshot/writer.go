package snapshot

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"bar-replay-lab/internal/domain"
)

// WriteCSV writes bars to one CSV file. The spread column is emitted only
// when every bar carries one; mixed inputs are a caller bug.
func WriteCSV(path string, bars []domain.Bar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)

	withSpread := len(bars) > 0
	for _, b := range bars {
		if !b.HasSpread {
			withSpread = false
			break
		}
	}

	header := []string{"time", "open", "high", "low", "close", "volume"}
	if withSpread {
		header = append(header, "spread")
	}
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}

	for _, b := range bars {
		record := []string{
			b.Timestamp.UTC().Format(time.RFC3339),
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(b.Volume),
		}
		if withSpread {
			record = append(record, formatFloat(b.Spread))
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush csv: %w", err)
	}
	return f.Close()
}

// WriteParquet writes bars to one Parquet file using the snapshot schema.
func WriteParquet(path string, bars []domain.Bar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	records := make([]barRecord, 0, len(bars))
	for _, b := range bars {
		rec := barRecord{
			Time:   b.Timestamp.UTC().UnixMilli(),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
		if b.HasSpread {
			spread := b.Spread
			rec.Spread = &spread
		}
		records = append(records, rec)
	}

	return parquet.WriteFile(path, records)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
