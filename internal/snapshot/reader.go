// Package snapshot reads and writes versioned bar snapshots on disk.
// A snapshot is a directory of CSV or Parquet files that together hold one
// symbol/timeframe history; files are loaded in lexical order and
// concatenated. Loading never sorts or validates bars, that is the replay
// gate's job.
package snapshot

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"bar-replay-lab/internal/domain"
)

// Snapshot formats.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// Accepted layouts for CSV time values, tried in order after epoch seconds.
var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// Reader loads bar snapshots from a directory.
type Reader struct {
	logger *log.Logger
}

// NewReader creates a snapshot Reader. A nil logger falls back to
// log.Default().
func NewReader(logger *log.Logger) *Reader {
	if logger == nil {
		logger = log.Default()
	}
	return &Reader{logger: logger}
}

// LoadDir reads every data file of the given format in dir, in lexical
// order, and returns the concatenated bars.
func (r *Reader) LoadDir(dir, format string) ([]domain.Bar, error) {
	files, err := DataFiles(dir, format)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s files found in %s", format, dir)
	}

	var bars []domain.Bar
	for _, f := range files {
		path := filepath.Join(dir, f.Name)

		var part []domain.Bar
		switch format {
		case FormatCSV:
			part, err = r.readCSVFile(path)
		case FormatParquet:
			part, err = readParquetFile(path)
		default:
			return nil, fmt.Errorf("unsupported snapshot format %q", format)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}

		bars = append(bars, part...)
		r.logger.Printf("loaded %s (%d rows)", f.Name, len(part))
	}

	return bars, nil
}

// readCSVFile parses one CSV file into bars. The header row names the
// columns; time, open, high, low and close are required. A tick_volume or
// real_volume column is aliased to volume with a log line, and a file with
// no volume column at all loads with volume 0 and a warning. Spread is
// optional and tracked per bar.
func (r *Reader) readCSVFile(path string) ([]domain.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	for _, required := range []string{"time", "open", "high", "low", "close"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}

	volCol, ok := cols["volume"]
	if !ok {
		if c, aliased := cols["tick_volume"]; aliased {
			r.logger.Printf("aliasing 'tick_volume' to 'volume' in %s", filepath.Base(path))
			volCol = c
		} else if c, aliased := cols["real_volume"]; aliased {
			r.logger.Printf("aliasing 'real_volume' to 'volume' in %s", filepath.Base(path))
			volCol = c
		} else {
			r.logger.Printf("warning: no volume column in %s; loading with volume 0", filepath.Base(path))
			volCol = -1
		}
	}

	spreadCol, hasSpread := cols["spread"]

	var bars []domain.Bar
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := parseCSVTime(record[cols["time"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		bar := domain.Bar{
			Timestamp: ts,
			Open:      parsePrice(record[cols["open"]]),
			High:      parsePrice(record[cols["high"]]),
			Low:       parsePrice(record[cols["low"]]),
			Close:     parsePrice(record[cols["close"]]),
			HasSpread: hasSpread,
		}
		if volCol >= 0 {
			bar.Volume = parsePrice(record[volCol])
		}
		if hasSpread {
			bar.Spread = parsePrice(record[spreadCol])
		}
		bars = append(bars, bar)
	}

	return bars, nil
}

// parseCSVTime accepts epoch seconds or one of csvTimeLayouts. An empty
// value maps to the zero time so the validation gate can count it as a null
// timestamp; anything else unparseable is a hard error.
func parseCSVTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}

	for _, layout := range csvTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unparseable time %q", s)
}

// parsePrice parses a float field, mapping empty or malformed values to NaN
// so the validation gate reports them instead of the loader.
func parsePrice(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// barRecord is the Parquet schema for snapshot bars. Spread is optional;
// a null spread marks a source with no spread data.
type barRecord struct {
	Time   int64    `parquet:"time,timestamp(millisecond)"`
	Open   float64  `parquet:"open"`
	High   float64  `parquet:"high"`
	Low    float64  `parquet:"low"`
	Close  float64  `parquet:"close"`
	Volume float64  `parquet:"volume"`
	Spread *float64 `parquet:"spread,optional"`
}

func readParquetFile(path string) ([]domain.Bar, error) {
	records, err := parquet.ReadFile[barRecord](path)
	if err != nil {
		return nil, err
	}

	bars := make([]domain.Bar, 0, len(records))
	for _, rec := range records {
		bar := domain.Bar{
			Timestamp: time.UnixMilli(rec.Time).UTC(),
			Open:      rec.Open,
			High:      rec.High,
			Low:       rec.Low,
			Close:     rec.Close,
			Volume:    rec.Volume,
		}
		if rec.Spread != nil {
			bar.Spread = *rec.Spread
			bar.HasSpread = true
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// DataFiles lists the snapshot's data files for one format, sorted by name.
func DataFiles(dir, format string) ([]domain.DataFile, error) {
	ext := "." + format

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}

	var files []domain.DataFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		files = append(files, domain.DataFile{Name: e.Name(), Size: info.Size()})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}
